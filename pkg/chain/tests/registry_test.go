package chain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenc-io/agenc-registry/pkg/chain"
	"github.com/agenc-io/agenc-registry/pkg/ledger"
	"github.com/agenc-io/agenc-registry/pkg/types"
)

func TestInitializeOnce(t *testing.T) {
	l := ledger.New(ledger.NewMemStore())
	c := chain.New(l, zap.NewNop())

	addr, err := c.Initialize(wallet(1))
	require.NoError(t, err)

	acc, err := l.GetAccount(addr)
	require.NoError(t, err)
	cfg := acc.(*types.RegistryConfig)
	assert.Equal(t, wallet(1), cfg.Authority)
	assert.Zero(t, cfg.TotalModels)

	_, err = c.Initialize(wallet(2))
	assert.ErrorIs(t, err, chain.ErrAlreadyInitialized)
}

func TestPublishModel(t *testing.T) {
	c, _ := setupChain(t)
	publisher := wallet(1)

	res, err := c.PublishModel(chain.PublishModelRequest{
		Caller:      publisher,
		Name:        "resnet-50",
		WeightsHash: types.Hash32{1},
		MetadataURI: "ipfs://QmMeta",
		License:     types.LicenseMIT,
	})
	require.NoError(t, err)

	acc, err := c.Ledger().GetAccount(res.Model)
	require.NoError(t, err)
	model := acc.(*types.Model)
	assert.Equal(t, publisher, model.Publisher)
	assert.Equal(t, "resnet-50", model.Name)
	assert.Equal(t, uint32(1), model.VersionCount)
	assert.False(t, model.Deprecated)

	acc, err = c.Ledger().GetAccount(res.Version)
	require.NoError(t, err)
	version := acc.(*types.ModelVersion)
	assert.Equal(t, res.Model, version.Model)
	assert.Equal(t, uint32(1), version.Version)

	cfg := getConfig(t, c)
	assert.Equal(t, uint64(1), cfg.TotalModels)
	assert.Equal(t, uint64(1), cfg.TotalVersions)
}

func TestPublishDuplicateName(t *testing.T) {
	c, _ := setupChain(t)
	publisher := wallet(1)

	req := chain.PublishModelRequest{
		Caller:      publisher,
		Name:        "resnet-50",
		MetadataURI: "ipfs://QmMeta",
		License:     types.LicenseMIT,
	}
	_, err := c.PublishModel(req)
	require.NoError(t, err)

	// Same publisher and name derives the same address.
	_, err = c.PublishModel(req)
	assert.ErrorIs(t, err, ledger.ErrAccountAlreadyExists)

	// A different publisher may reuse the name.
	req.Caller = wallet(2)
	_, err = c.PublishModel(req)
	assert.NoError(t, err)
}

func TestPublishValidation(t *testing.T) {
	c, _ := setupChain(t)

	base := chain.PublishModelRequest{
		Caller:      wallet(1),
		Name:        "valid",
		MetadataURI: "ipfs://QmMeta",
		License:     types.LicenseMIT,
	}

	req := base
	req.Name = ""
	_, err := c.PublishModel(req)
	assert.ErrorIs(t, err, chain.ErrInvalidArgument)

	req = base
	req.Name = strings.Repeat("x", types.MaxModelNameLen+1)
	_, err = c.PublishModel(req)
	assert.ErrorIs(t, err, chain.ErrInvalidArgument)

	req = base
	req.MetadataURI = strings.Repeat("x", types.MaxMetadataURILen+1)
	_, err = c.PublishModel(req)
	assert.ErrorIs(t, err, chain.ErrInvalidArgument)

	req = base
	req.License = types.License(9)
	_, err = c.PublishModel(req)
	assert.ErrorIs(t, err, chain.ErrInvalidArgument)

	// Nothing landed.
	cfg := getConfig(t, c)
	assert.Zero(t, cfg.TotalModels)
}

func TestAddVersion(t *testing.T) {
	c, clock := setupChain(t)
	publisher := wallet(1)

	res, err := c.PublishModel(chain.PublishModelRequest{
		Caller:      publisher,
		Name:        "bert",
		WeightsHash: types.Hash32{1},
		MetadataURI: "ipfs://QmV1",
		License:     types.LicenseApache2,
	})
	require.NoError(t, err)

	clock.Advance(60)
	versionAddr, err := c.AddVersion(chain.AddVersionRequest{
		Caller:      publisher,
		Model:       res.Model,
		WeightsHash: types.Hash32{2},
		MetadataURI: "ipfs://QmV2",
	})
	require.NoError(t, err)

	acc, err := c.Ledger().GetAccount(versionAddr)
	require.NoError(t, err)
	version := acc.(*types.ModelVersion)
	assert.Equal(t, uint32(2), version.Version)
	assert.Equal(t, types.Hash32{2}, version.WeightsHash)

	// The model rolls forward to the latest version.
	acc, err = c.Ledger().GetAccount(res.Model)
	require.NoError(t, err)
	model := acc.(*types.Model)
	assert.Equal(t, uint32(2), model.VersionCount)
	assert.Equal(t, types.Hash32{2}, model.WeightsHash)
	assert.Equal(t, "ipfs://QmV2", model.MetadataURI)
	assert.Equal(t, int64(baseTime+60), model.UpdatedAt)

	assert.Equal(t, uint64(2), getConfig(t, c).TotalVersions)
}

func TestAddVersionRequiresPublisher(t *testing.T) {
	c, _ := setupChain(t)

	res, err := c.PublishModel(chain.PublishModelRequest{
		Caller:      wallet(1),
		Name:        "bert",
		MetadataURI: "ipfs://QmV1",
		License:     types.LicenseMIT,
	})
	require.NoError(t, err)

	_, err = c.AddVersion(chain.AddVersionRequest{
		Caller:      wallet(2),
		Model:       res.Model,
		MetadataURI: "ipfs://QmV2",
	})
	assert.ErrorIs(t, err, chain.ErrUnauthorized)
}

func TestAddVersionOnDeprecated(t *testing.T) {
	c, _ := setupChain(t)
	publisher := wallet(1)

	res, err := c.PublishModel(chain.PublishModelRequest{
		Caller:      publisher,
		Name:        "old-model",
		MetadataURI: "ipfs://QmV1",
		License:     types.LicenseMIT,
	})
	require.NoError(t, err)
	require.NoError(t, c.DeprecateModel(publisher, res.Model))

	_, err = c.AddVersion(chain.AddVersionRequest{
		Caller:      publisher,
		Model:       res.Model,
		MetadataURI: "ipfs://QmV2",
	})
	assert.ErrorIs(t, err, chain.ErrModelDeprecated)

	// The rejected instruction left the model untouched.
	acc, err := c.Ledger().GetAccount(res.Model)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), acc.(*types.Model).VersionCount)
	assert.Equal(t, uint64(1), getConfig(t, c).TotalVersions)
}

func TestDeprecateTwice(t *testing.T) {
	c, _ := setupChain(t)
	publisher := wallet(1)

	res, err := c.PublishModel(chain.PublishModelRequest{
		Caller:      publisher,
		Name:        "old-model",
		MetadataURI: "ipfs://QmV1",
		License:     types.LicenseMIT,
	})
	require.NoError(t, err)

	require.NoError(t, c.DeprecateModel(publisher, res.Model))
	err = c.DeprecateModel(publisher, res.Model)
	assert.ErrorIs(t, err, chain.ErrAlreadyDeprecated)
}

func TestUpdateMetadataOnDeprecated(t *testing.T) {
	c, _ := setupChain(t)
	publisher := wallet(1)

	res, err := c.PublishModel(chain.PublishModelRequest{
		Caller:      publisher,
		Name:        "old-model",
		MetadataURI: "ipfs://QmV1",
		License:     types.LicenseMIT,
	})
	require.NoError(t, err)
	require.NoError(t, c.DeprecateModel(publisher, res.Model))

	// Metadata stays correctable after deprecation.
	require.NoError(t, c.UpdateMetadata(publisher, res.Model, "ipfs://QmFixed"))

	acc, err := c.Ledger().GetAccount(res.Model)
	require.NoError(t, err)
	model := acc.(*types.Model)
	assert.Equal(t, "ipfs://QmFixed", model.MetadataURI)
	assert.True(t, model.Deprecated)
}

func TestTransferOwnership(t *testing.T) {
	c, _ := setupChain(t)
	alice := wallet(1)
	bob := wallet(2)

	res, err := c.PublishModel(chain.PublishModelRequest{
		Caller:      alice,
		Name:        "shared",
		MetadataURI: "ipfs://QmV1",
		License:     types.LicenseMIT,
	})
	require.NoError(t, err)

	err = c.TransferOwnership(alice, res.Model, types.Address{})
	assert.ErrorIs(t, err, chain.ErrInvalidArgument)

	require.NoError(t, c.TransferOwnership(alice, res.Model, bob))

	// The old publisher loses control, the new one gains it.
	_, err = c.AddVersion(chain.AddVersionRequest{
		Caller:      alice,
		Model:       res.Model,
		MetadataURI: "ipfs://QmV2",
	})
	assert.ErrorIs(t, err, chain.ErrUnauthorized)

	_, err = c.AddVersion(chain.AddVersionRequest{
		Caller:      bob,
		Model:       res.Model,
		MetadataURI: "ipfs://QmV2",
	})
	assert.NoError(t, err)
}
