package chain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenc-io/agenc-registry/pkg/chain"
	"github.com/agenc-io/agenc-registry/pkg/ledger"
	"github.com/agenc-io/agenc-registry/pkg/types"
)

const baseTime = 1_700_000_000

// testClock is a hand-advanced time source so instruction timestamps are
// deterministic.
type testClock struct {
	now int64
}

func (c *testClock) Now() time.Time {
	return time.Unix(c.now, 0)
}

func (c *testClock) Advance(seconds int64) {
	c.now += seconds
}

func setupChain(t *testing.T) (*chain.Chain, *testClock) {
	t.Helper()

	clock := &testClock{now: baseTime}
	l := ledger.New(ledger.NewMemStore())
	c := chain.New(l, zap.NewNop(), chain.WithClock(clock.Now))

	_, err := c.Initialize(wallet(0xaa))
	require.NoError(t, err)

	return c, clock
}

// wallet derives a deterministic throwaway address from a single byte.
func wallet(b byte) types.Address {
	var a types.Address
	a[0] = b
	a[31] = b
	return a
}

func fund(t *testing.T, c *chain.Chain, addr types.Address, amount uint64) {
	t.Helper()
	require.NoError(t, c.Fund(addr, amount))
}

func registerAgent(t *testing.T, c *chain.Chain, authority types.Address, id byte, caps types.Capability, stake uint64) types.Address {
	t.Helper()

	if stake > 0 {
		fund(t, c, authority, stake)
	}
	addr, err := c.RegisterAgent(chain.RegisterAgentRequest{
		Caller:       authority,
		AgentID:      [32]byte{id},
		Capabilities: caps,
		Endpoint:     "https://agent.example.com",
		Stake:        stake,
	})
	require.NoError(t, err)
	return addr
}

func createTask(t *testing.T, c *chain.Chain, req chain.CreateTaskRequest) chain.CreateTaskResult {
	t.Helper()

	fund(t, c, req.Caller, req.RewardAmount)
	res, err := c.CreateTask(req)
	require.NoError(t, err)
	return res
}

// basicTask fills in a one-worker exclusive task paying reward with no fee.
func basicTask(creator types.Address, id byte, reward uint64) chain.CreateTaskRequest {
	return chain.CreateTaskRequest{
		Caller:              creator,
		TaskID:              [32]byte{id},
		RewardAmount:        reward,
		MaxWorkers:          1,
		RequiredCompletions: 1,
		Type:                types.TaskExclusive,
		Description:         []byte("test task"),
	}
}

func getTask(t *testing.T, c *chain.Chain, addr types.Address) *types.Task {
	t.Helper()
	acc, err := c.Ledger().GetAccount(addr)
	require.NoError(t, err)
	return acc.(*types.Task)
}

func getAgent(t *testing.T, c *chain.Chain, addr types.Address) *types.AgentRegistration {
	t.Helper()
	acc, err := c.Ledger().GetAccount(addr)
	require.NoError(t, err)
	return acc.(*types.AgentRegistration)
}

func getEscrow(t *testing.T, c *chain.Chain, addr types.Address) *types.Escrow {
	t.Helper()
	acc, err := c.Ledger().GetAccount(addr)
	require.NoError(t, err)
	return acc.(*types.Escrow)
}

func getClaim(t *testing.T, c *chain.Chain, task, agent types.Address) *types.TaskClaim {
	t.Helper()
	addr, _ := types.ClaimAddress(task, agent)
	acc, err := c.Ledger().GetAccount(addr)
	require.NoError(t, err)
	return acc.(*types.TaskClaim)
}

func getConfig(t *testing.T, c *chain.Chain) *types.RegistryConfig {
	t.Helper()
	addr, _ := types.ConfigAddress()
	acc, err := c.Ledger().GetAccount(addr)
	require.NoError(t, err)
	return acc.(*types.RegistryConfig)
}

func balance(t *testing.T, c *chain.Chain, addr types.Address) uint64 {
	t.Helper()
	bal, err := c.Ledger().Balance(addr)
	require.NoError(t, err)
	return bal
}
