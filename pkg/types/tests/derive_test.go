package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenc-io/agenc-registry/pkg/types"
)

func TestDeriveDeterministic(t *testing.T) {
	a1, b1 := types.Derive([]byte("seed-a"), []byte("seed-b"))
	a2, b2 := types.Derive([]byte("seed-a"), []byte("seed-b"))

	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
	assert.False(t, a1.IsZero())
}

func TestDeriveDistinctSeeds(t *testing.T) {
	a1, _ := types.Derive([]byte("seed-a"))
	a2, _ := types.Derive([]byte("seed-b"))

	assert.NotEqual(t, a1, a2)
}

func TestModelAddressPerPublisher(t *testing.T) {
	var alice, bob types.Address
	alice[0] = 1
	bob[0] = 2

	aliceModel, _ := types.ModelAddress(alice, "resnet-50")
	bobModel, _ := types.ModelAddress(bob, "resnet-50")
	aliceOther, _ := types.ModelAddress(alice, "resnet-101")

	// Same name under different publishers derives different addresses;
	// same publisher with a different name does too.
	assert.NotEqual(t, aliceModel, bobModel)
	assert.NotEqual(t, aliceModel, aliceOther)
}

func TestVersionAddressSequence(t *testing.T) {
	var publisher types.Address
	publisher[0] = 7
	model, _ := types.ModelAddress(publisher, "bert-base")

	v1, _ := types.VersionAddress(model, 1)
	v2, _ := types.VersionAddress(model, 2)

	assert.NotEqual(t, v1, v2)
}

func TestClaimAddressPairing(t *testing.T) {
	var task, agentA, agentB types.Address
	task[0] = 1
	agentA[0] = 2
	agentB[0] = 3

	claimA, _ := types.ClaimAddress(task, agentA)
	claimB, _ := types.ClaimAddress(task, agentB)

	assert.NotEqual(t, claimA, claimB)
}

func TestAddressHexRoundTrip(t *testing.T) {
	addr, _ := types.Derive([]byte("round-trip"))

	parsed, err := types.AddressFromHex(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	_, err = types.AddressFromHex("not-hex")
	assert.Error(t, err)

	_, err = types.AddressFromHex("abcd")
	assert.Error(t, err)
}

func TestCapabilityHasAll(t *testing.T) {
	caps := types.CapCompute | types.CapInference | types.CapValidator

	assert.True(t, caps.HasAll(types.CapCompute))
	assert.True(t, caps.HasAll(types.CapCompute|types.CapValidator))
	assert.False(t, caps.HasAll(types.CapArbiter))
	assert.False(t, caps.HasAll(types.CapCompute|types.CapArbiter))

	// Empty requirement is always satisfied.
	assert.True(t, types.Capability(0).HasAll(0))
}

func TestCapabilityNames(t *testing.T) {
	caps := types.CapArbiter | types.CapValidator

	assert.ElementsMatch(t, []string{"Arbiter", "Validator"}, caps.Names())
	assert.Empty(t, types.Capability(0).Names())
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, types.LicenseCustom.Valid())
	assert.False(t, types.License(5).Valid())

	assert.True(t, types.TaskCompetitive.Valid())
	assert.False(t, types.TaskType(3).Valid())

	assert.True(t, types.OutcomeSplit.Valid())
	assert.False(t, types.DisputeOutcome(3).Valid())
}

func TestTaskStatusTerminal(t *testing.T) {
	assert.True(t, types.TaskCompleted.Terminal())
	assert.True(t, types.TaskCancelled.Terminal())
	assert.False(t, types.TaskOpen.Terminal())
	assert.False(t, types.TaskDisputed.Terminal())
}
