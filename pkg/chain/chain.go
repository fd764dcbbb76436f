package chain

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agenc-io/agenc-registry/pkg/ledger"
	"github.com/agenc-io/agenc-registry/pkg/types"
)

// Params are the protocol knobs that are not per-task.
type Params struct {
	// ArbiterMinStake is the stake an agent must have locked before it
	// may resolve disputes.
	ArbiterMinStake uint64
}

func DefaultParams() Params {
	return Params{
		ArbiterMinStake: 1000,
	}
}

// Reputation policy. Reputation is in basis points, capped at 10000.
const (
	reputationDefault      = types.MaxReputation
	reputationCompleted    = 25
	reputationParticipated = 5
	reputationDisputeLoss  = 500
	reputationSuspendFloor = 2500
)

// Chain applies wallet-signed instructions to the account ledger. Every
// instruction validates against current state and commits atomically; a
// failed validation leaves the ledger unchanged.
type Chain struct {
	ledger *ledger.Ledger
	params Params
	feed   *Feed
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Chain.
type Option func(*Chain)

// WithClock overrides the chain's time source.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

// WithParams overrides the default protocol parameters.
func WithParams(p Params) Option {
	return func(c *Chain) { c.params = p }
}

func New(l *ledger.Ledger, logger *zap.Logger, opts ...Option) *Chain {
	c := &Chain{
		ledger: l,
		params: DefaultParams(),
		feed:   NewFeed(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ledger exposes read-only access for the API layer.
func (c *Chain) Ledger() *ledger.Ledger {
	return c.ledger
}

// Events returns the committed-event feed.
func (c *Chain) Events() *Feed {
	return c.feed
}

// Fund credits a native balance. Development faucet; production deposits
// arrive from outside the core.
func (c *Chain) Fund(addr types.Address, amount uint64) error {
	return c.ledger.Execute(func(t *ledger.Txn) error {
		return t.Credit(addr, amount)
	})
}

// execute runs an instruction and publishes its events only after the
// commit succeeds.
func (c *Chain) execute(name string, fn func(t *ledger.Txn, emit func(Event)) error) error {
	var events []Event
	err := c.ledger.Execute(func(t *ledger.Txn) error {
		events = events[:0]
		return fn(t, func(ev Event) {
			events = append(events, ev)
		})
	})
	if err != nil {
		c.logger.Debug("instruction rejected",
			zap.String("instruction", name),
			zap.Error(err))
		return err
	}
	c.logger.Info("instruction committed",
		zap.String("instruction", name),
		zap.Int("events", len(events)))
	c.feed.publish(events)
	return nil
}

// verifyExpected rejects a caller-supplied address that does not match the
// derived one. A zero expected address skips the check.
func verifyExpected(expected, derived types.Address) error {
	if expected.IsZero() || expected == derived {
		return nil
	}
	return fmt.Errorf("%w: got %s, derived %s", ErrInvalidAddress, expected, derived)
}

// Typed read helpers around the account store.

func readConfig(t *ledger.Txn) (*types.RegistryConfig, types.Address, error) {
	addr, _ := types.ConfigAddress()
	acc, err := t.Read(addr, types.KindConfig)
	if err != nil {
		return nil, addr, err
	}
	return acc.(*types.RegistryConfig), addr, nil
}

func readModel(t *ledger.Txn, addr types.Address) (*types.Model, error) {
	acc, err := t.Read(addr, types.KindModel)
	if err != nil {
		return nil, err
	}
	return acc.(*types.Model), nil
}

func readAgent(t *ledger.Txn, addr types.Address) (*types.AgentRegistration, error) {
	acc, err := t.Read(addr, types.KindAgent)
	if err != nil {
		return nil, err
	}
	return acc.(*types.AgentRegistration), nil
}

func readTask(t *ledger.Txn, addr types.Address) (*types.Task, error) {
	acc, err := t.Read(addr, types.KindTask)
	if err != nil {
		return nil, err
	}
	return acc.(*types.Task), nil
}

func readClaim(t *ledger.Txn, addr types.Address) (*types.TaskClaim, error) {
	acc, err := t.Read(addr, types.KindClaim)
	if err != nil {
		return nil, err
	}
	return acc.(*types.TaskClaim), nil
}

func readEscrow(t *ledger.Txn, addr types.Address) (*types.Escrow, error) {
	acc, err := t.Read(addr, types.KindEscrow)
	if err != nil {
		return nil, err
	}
	return acc.(*types.Escrow), nil
}

// taskClaims returns all claim records for a task, keyed by claim address.
func taskClaims(t *ledger.Txn, task types.Address) (map[types.Address]*types.TaskClaim, error) {
	all, err := t.List(types.KindClaim)
	if err != nil {
		return nil, err
	}
	out := make(map[types.Address]*types.TaskClaim)
	for addr, acc := range all {
		claim := acc.(*types.TaskClaim)
		if claim.Task == task {
			out[addr] = claim
		}
	}
	return out, nil
}

func capReputation(rep uint32, delta int64) uint32 {
	v := int64(rep) + delta
	if v < 0 {
		return 0
	}
	if v > types.MaxReputation {
		return types.MaxReputation
	}
	return uint32(v)
}
