package chain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenc-io/agenc-registry/pkg/chain"
	"github.com/agenc-io/agenc-registry/pkg/types"
)

func drain(ch <-chan chain.Event) []chain.Event {
	var out []chain.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestEventsEmittedAfterCommit(t *testing.T) {
	c, _ := setupChain(t)

	events, cancel := c.Events().Subscribe()
	defer cancel()

	_, err := c.PublishModel(chain.PublishModelRequest{
		Caller:      wallet(1),
		Name:        "resnet-50",
		MetadataURI: "ipfs://QmMeta",
		License:     types.LicenseMIT,
	})
	require.NoError(t, err)

	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, chain.EventModelPublished, got[0].Type)
	assert.Equal(t, wallet(1), got[0].Actor)
	assert.Equal(t, "resnet-50", got[0].Data["name"])
}

func TestNoEventsOnRejectedInstruction(t *testing.T) {
	c, _ := setupChain(t)

	events, cancel := c.Events().Subscribe()
	defer cancel()

	_, err := c.PublishModel(chain.PublishModelRequest{
		Caller:      wallet(1),
		Name:        "",
		MetadataURI: "ipfs://QmMeta",
	})
	require.Error(t, err)

	assert.Empty(t, drain(events))
}

func TestSettlementEventSequence(t *testing.T) {
	c, _ := setupChain(t)
	creator := wallet(1)
	worker := wallet(2)
	validatorAuth := wallet(3)

	agentAddr := registerAgent(t, c, worker, 1, types.CapCompute, 0)
	validatorAddr := registerAgent(t, c, validatorAuth, 2, types.CapValidator, 0)

	events, cancel := c.Events().Subscribe()
	defer cancel()

	res := createTask(t, c, basicTask(creator, 1, 1000))
	require.NoError(t, c.ClaimTask(worker, agentAddr, res.Task))
	require.NoError(t, c.SubmitCompletion(worker, agentAddr, res.Task, []byte("done")))
	require.NoError(t, c.ValidateCompletion(validatorAuth, validatorAddr, res.Task, true))

	got := drain(events)
	typesSeen := make([]chain.EventType, 0, len(got))
	for _, ev := range got {
		typesSeen = append(typesSeen, ev.Type)
	}
	assert.Equal(t, []chain.EventType{
		chain.EventTaskCreated,
		chain.EventTaskClaimed,
		chain.EventCompletionSubmitted,
		chain.EventTaskCompleted,
	}, typesSeen)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	c, _ := setupChain(t)

	events, cancel := c.Events().Subscribe()
	cancel()

	_, ok := <-events
	assert.False(t, ok)
}
