package chain

import (
	"errors"
	"fmt"

	"github.com/agenc-io/agenc-registry/pkg/ledger"
	"github.com/agenc-io/agenc-registry/pkg/types"
)

// Initialize creates the singleton registry config with the caller as
// authority. Fails with ErrAlreadyInitialized if the config exists.
func (c *Chain) Initialize(authority types.Address) (types.Address, error) {
	addr, bump := types.ConfigAddress()
	err := c.execute("initialize", func(t *ledger.Txn, emit func(Event)) error {
		cfg := &types.RegistryConfig{
			Authority: authority,
			Bump:      bump,
		}
		if err := t.Create(addr, cfg); err != nil {
			if errors.Is(err, ledger.ErrAccountAlreadyExists) {
				return ErrAlreadyInitialized
			}
			return err
		}
		return nil
	})
	return addr, err
}

// PublishModelRequest carries the publishModel instruction arguments. The
// caller is the signing wallet. ExpectedModel, when nonzero, must match the
// derived model address.
type PublishModelRequest struct {
	Caller        types.Address
	Name          string
	WeightsHash   types.Hash32
	MetadataURI   string
	License       types.License
	ExpectedModel types.Address
}

// PublishResult reports the addresses created by publishModel.
type PublishResult struct {
	Model   types.Address `json:"model"`
	Version types.Address `json:"version"`
}

// PublishModel creates a Model and its first ModelVersion, and bumps both
// config counters. A publisher cannot reuse a model name: the derived
// address would collide and creation fails with AccountAlreadyExists.
func (c *Chain) PublishModel(req PublishModelRequest) (PublishResult, error) {
	var res PublishResult
	if err := validateModelName(req.Name); err != nil {
		return res, err
	}
	if err := validateMetadataURI(req.MetadataURI); err != nil {
		return res, err
	}
	if !req.License.Valid() {
		return res, fmt.Errorf("%w: license tag %d out of range", ErrInvalidArgument, req.License)
	}

	modelAddr, modelBump := types.ModelAddress(req.Caller, req.Name)
	if err := verifyExpected(req.ExpectedModel, modelAddr); err != nil {
		return res, err
	}
	versionAddr, versionBump := types.VersionAddress(modelAddr, 1)

	err := c.execute("publish_model", func(t *ledger.Txn, emit func(Event)) error {
		cfg, cfgAddr, err := readConfig(t)
		if err != nil {
			return err
		}
		now := c.now().Unix()

		model := &types.Model{
			Publisher:    req.Caller,
			Name:         req.Name,
			WeightsHash:  req.WeightsHash,
			MetadataURI:  req.MetadataURI,
			License:      req.License,
			VersionCount: 1,
			CreatedAt:    now,
			UpdatedAt:    now,
			Bump:         modelBump,
		}
		if err := t.Create(modelAddr, model); err != nil {
			return err
		}

		version := &types.ModelVersion{
			Model:       modelAddr,
			Version:     1,
			WeightsHash: req.WeightsHash,
			MetadataURI: req.MetadataURI,
			CreatedAt:   now,
			Bump:        versionBump,
		}
		if err := t.Create(versionAddr, version); err != nil {
			return err
		}

		cfg.TotalModels++
		cfg.TotalVersions++
		if err := t.Write(cfgAddr, cfg); err != nil {
			return err
		}

		emit(Event{
			Type:      EventModelPublished,
			Account:   modelAddr,
			Actor:     req.Caller,
			Timestamp: now,
			Data: map[string]interface{}{
				"name":         req.Name,
				"weights_hash": req.WeightsHash.String(),
				"metadata_uri": req.MetadataURI,
				"license":      req.License.String(),
			},
		})
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Model = modelAddr
	res.Version = versionAddr
	return res, nil
}

// AddVersionRequest carries the addVersion instruction arguments.
type AddVersionRequest struct {
	Caller      types.Address
	Model       types.Address
	WeightsHash types.Hash32
	MetadataURI string
}

// AddVersion appends the next ModelVersion and rolls the model's latest
// hash and URI forward. Deprecated models reject new versions.
func (c *Chain) AddVersion(req AddVersionRequest) (types.Address, error) {
	if err := validateMetadataURI(req.MetadataURI); err != nil {
		return types.Address{}, err
	}

	var versionAddr types.Address
	err := c.execute("add_version", func(t *ledger.Txn, emit func(Event)) error {
		model, err := readModel(t, req.Model)
		if err != nil {
			return err
		}
		if model.Publisher != req.Caller {
			return fmt.Errorf("%w: only the publisher may add versions", ErrUnauthorized)
		}
		if model.Deprecated {
			return ErrModelDeprecated
		}

		next := model.VersionCount + 1
		addr, bump := types.VersionAddress(req.Model, next)
		versionAddr = addr
		now := c.now().Unix()

		version := &types.ModelVersion{
			Model:       req.Model,
			Version:     next,
			WeightsHash: req.WeightsHash,
			MetadataURI: req.MetadataURI,
			CreatedAt:   now,
			Bump:        bump,
		}
		if err := t.Create(addr, version); err != nil {
			return err
		}

		model.WeightsHash = req.WeightsHash
		model.MetadataURI = req.MetadataURI
		model.VersionCount = next
		model.UpdatedAt = now
		if err := t.Write(req.Model, model); err != nil {
			return err
		}

		cfg, cfgAddr, err := readConfig(t)
		if err != nil {
			return err
		}
		cfg.TotalVersions++
		if err := t.Write(cfgAddr, cfg); err != nil {
			return err
		}

		emit(Event{
			Type:      EventVersionAdded,
			Account:   req.Model,
			Actor:     req.Caller,
			Timestamp: now,
			Data: map[string]interface{}{
				"version":      next,
				"weights_hash": req.WeightsHash.String(),
			},
		})
		return nil
	})
	return versionAddr, err
}

// UpdateMetadata repoints a model's metadata URI. Deliberately allowed on
// deprecated models so stale metadata can still be corrected.
func (c *Chain) UpdateMetadata(caller, modelAddr types.Address, newURI string) error {
	if err := validateMetadataURI(newURI); err != nil {
		return err
	}
	return c.execute("update_metadata", func(t *ledger.Txn, emit func(Event)) error {
		model, err := readModel(t, modelAddr)
		if err != nil {
			return err
		}
		if model.Publisher != caller {
			return fmt.Errorf("%w: only the publisher may update metadata", ErrUnauthorized)
		}

		now := c.now().Unix()
		oldURI := model.MetadataURI
		model.MetadataURI = newURI
		model.UpdatedAt = now
		if err := t.Write(modelAddr, model); err != nil {
			return err
		}

		emit(Event{
			Type:      EventMetadataUpdated,
			Account:   modelAddr,
			Actor:     caller,
			Timestamp: now,
			Data: map[string]interface{}{
				"old_metadata_uri": oldURI,
				"new_metadata_uri": newURI,
			},
		})
		return nil
	})
}

// DeprecateModel latches the model's deprecation flag. The latch is
// one-way: a second call fails with ErrAlreadyDeprecated rather than
// silently re-deprecating.
func (c *Chain) DeprecateModel(caller, modelAddr types.Address) error {
	return c.execute("deprecate_model", func(t *ledger.Txn, emit func(Event)) error {
		model, err := readModel(t, modelAddr)
		if err != nil {
			return err
		}
		if model.Publisher != caller {
			return fmt.Errorf("%w: only the publisher may deprecate", ErrUnauthorized)
		}
		if model.Deprecated {
			return ErrAlreadyDeprecated
		}

		now := c.now().Unix()
		model.Deprecated = true
		model.UpdatedAt = now
		if err := t.Write(modelAddr, model); err != nil {
			return err
		}

		emit(Event{
			Type:      EventModelDeprecated,
			Account:   modelAddr,
			Actor:     caller,
			Timestamp: now,
		})
		return nil
	})
}

// TransferOwnership hands the model to a new publisher. Deprecation does
// not restrict transfers.
func (c *Chain) TransferOwnership(caller, modelAddr, newOwner types.Address) error {
	if newOwner.IsZero() {
		return fmt.Errorf("%w: new owner address is zero", ErrInvalidArgument)
	}
	return c.execute("transfer_ownership", func(t *ledger.Txn, emit func(Event)) error {
		model, err := readModel(t, modelAddr)
		if err != nil {
			return err
		}
		if model.Publisher != caller {
			return fmt.Errorf("%w: only the publisher may transfer ownership", ErrUnauthorized)
		}

		now := c.now().Unix()
		model.Publisher = newOwner
		model.UpdatedAt = now
		if err := t.Write(modelAddr, model); err != nil {
			return err
		}

		emit(Event{
			Type:      EventOwnershipTransferred,
			Account:   modelAddr,
			Actor:     caller,
			Timestamp: now,
			Data: map[string]interface{}{
				"old_publisher": caller.String(),
				"new_publisher": newOwner.String(),
			},
		})
		return nil
	})
}

func validateModelName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: model name cannot be empty", ErrInvalidArgument)
	}
	if len(name) > types.MaxModelNameLen {
		return fmt.Errorf("%w: model name exceeds %d characters", ErrInvalidArgument, types.MaxModelNameLen)
	}
	return nil
}

func validateMetadataURI(uri string) error {
	if uri == "" {
		return fmt.Errorf("%w: metadata URI cannot be empty", ErrInvalidArgument)
	}
	if len(uri) > types.MaxMetadataURILen {
		return fmt.Errorf("%w: metadata URI exceeds %d characters", ErrInvalidArgument, types.MaxMetadataURILen)
	}
	return nil
}
