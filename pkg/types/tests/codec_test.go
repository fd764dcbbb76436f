package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenc-io/agenc-registry/pkg/types"
)

func TestModelRoundTrip(t *testing.T) {
	var publisher types.Address
	publisher[0] = 9
	var hash types.Hash32
	hash[31] = 0xff

	model := &types.Model{
		Publisher:    publisher,
		Name:         "llama-7b",
		WeightsHash:  hash,
		MetadataURI:  "ipfs://QmModelMeta",
		License:      types.LicenseApache2,
		VersionCount: 3,
		CreatedAt:    1700000000,
		UpdatedAt:    1700000100,
		Deprecated:   true,
		Bump:         255,
	}

	decoded, err := types.DecodeAccount(types.EncodeAccount(model))
	require.NoError(t, err)
	assert.Equal(t, model, decoded)
}

func TestTaskRoundTrip(t *testing.T) {
	var creator, escrow, mint, dep types.Address
	creator[0] = 1
	escrow[0] = 2
	mint[0] = 3
	dep[0] = 4

	task := &types.Task{
		TaskID:               [32]byte{5, 6, 7},
		Creator:              creator,
		RequiredCapabilities: types.CapCompute | types.CapInference,
		Description:          []byte("run inference batch"),
		ConstraintHash:       types.Hash32{8},
		RewardAmount:         5000,
		RewardMint:           &mint,
		MaxWorkers:           4,
		CurrentWorkers:       2,
		RequiredCompletions:  3,
		Completions:          1,
		Status:               types.TaskInProgress,
		Type:                 types.TaskCollaborative,
		MinReputation:        5000,
		DependsOn:            &dep,
		ProtocolFeeBps:       250,
		CreatedAt:            1700000000,
		Deadline:             1700086400,
		Escrow:               escrow,
		Result:               []byte("partial"),
		Bump:                 254,
	}

	decoded, err := types.DecodeAccount(types.EncodeAccount(task))
	require.NoError(t, err)
	assert.Equal(t, task, decoded)
}

func TestTaskRoundTripOptionalFieldsAbsent(t *testing.T) {
	task := &types.Task{
		TaskID:              [32]byte{1},
		RewardAmount:        100,
		MaxWorkers:          1,
		RequiredCompletions: 1,
		Description:         []byte("minimal"),
		Result:              []byte{0},
		Bump:                255,
	}

	decoded, err := types.DecodeAccount(types.EncodeAccount(task))
	require.NoError(t, err)

	got := decoded.(*types.Task)
	assert.Nil(t, got.RewardMint)
	assert.Nil(t, got.DependsOn)
	assert.Equal(t, task.RewardAmount, got.RewardAmount)
}

func TestAgentRoundTrip(t *testing.T) {
	var authority types.Address
	authority[0] = 11

	agent := &types.AgentRegistration{
		AgentID:        [32]byte{1, 2, 3, 4},
		Authority:      authority,
		Capabilities:   types.CapValidator | types.CapArbiter,
		Status:         types.AgentBusy,
		Endpoint:       "https://agent.example.com:8443",
		MetadataURI:    "ipfs://QmAgentMeta",
		RegisteredAt:   1700000000,
		LastActive:     1700000500,
		TasksCompleted: 12,
		TotalEarned:    90000,
		Reputation:     9975,
		ActiveTasks:    2,
		Stake:          2500,
		Bump:           253,
	}

	decoded, err := types.DecodeAccount(types.EncodeAccount(agent))
	require.NoError(t, err)
	assert.Equal(t, agent, decoded)
}

func TestDecodeKind(t *testing.T) {
	cfg := &types.RegistryConfig{Bump: 1}
	kind, err := types.DecodeKind(types.EncodeAccount(cfg))
	require.NoError(t, err)
	assert.Equal(t, types.KindConfig, kind)

	_, err = types.DecodeKind(nil)
	assert.ErrorIs(t, err, types.ErrTruncatedRecord)

	_, err = types.DecodeKind([]byte{0x7f})
	assert.ErrorIs(t, err, types.ErrUnknownKind)
}

func TestDecodeTruncated(t *testing.T) {
	encoded := types.EncodeAccount(&types.Escrow{Balance: 42, Bump: 1})

	_, err := types.DecodeAccount(encoded[:len(encoded)-4])
	assert.ErrorIs(t, err, types.ErrTruncatedRecord)
}
