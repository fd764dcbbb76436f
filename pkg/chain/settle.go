package chain

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/agenc-io/agenc-registry/pkg/ledger"
	"github.com/agenc-io/agenc-registry/pkg/types"
)

// Settlement releases a task's escrow according to its type: Exclusive
// pays the single claimant, Collaborative splits evenly across accepted
// completions, Competitive pays the first submission only. The protocol
// fee is moved to the config treasury. The escrow must land on exactly
// zero; anything else aborts the instruction with ErrEscrowImbalance.

type settledClaim struct {
	addr  types.Address
	claim *types.TaskClaim
}

// settle completes the task and distributes its escrow.
func (c *Chain) settle(t *ledger.Txn, taskAddr types.Address, task *types.Task, now int64, emit func(Event)) error {
	escrow, err := readEscrow(t, task.Escrow)
	if err != nil {
		return err
	}
	all, err := sortedClaims(t, taskAddr)
	if err != nil {
		return err
	}
	winners, losers := pickWinners(task, all)
	if len(winners) == 0 {
		return fmt.Errorf("%w: no accepted completion to pay", ErrInvalidArgument)
	}

	fee := task.RewardAmount * uint64(task.ProtocolFeeBps) / 10000
	net := task.RewardAmount - fee

	if err := c.payout(t, escrow, winners, losers, net, task.Type, now); err != nil {
		return err
	}
	if err := c.collectFee(t, escrow, fee); err != nil {
		return err
	}
	if escrow.Balance != 0 {
		return fmt.Errorf("%w: %d units left", ErrEscrowImbalance, escrow.Balance)
	}
	if err := t.Write(task.Escrow, escrow); err != nil {
		return err
	}

	task.Status = types.TaskCompleted
	task.CompletedAt = now
	if err := t.Write(taskAddr, task); err != nil {
		return err
	}

	emit(Event{
		Type:      EventTaskCompleted,
		Account:   taskAddr,
		Actor:     task.Creator,
		Timestamp: now,
		Data: map[string]interface{}{
			"net_reward": net,
			"fee":        fee,
			"workers":    len(winners),
		},
	})
	return nil
}

// settleSplit divides the escrow between workers and the creator after a
// split dispute verdict. The fee is still collected; the worker half is
// split evenly, with rounding leftovers going to the creator.
func (c *Chain) settleSplit(t *ledger.Txn, taskAddr types.Address, task *types.Task, now int64, emit func(Event)) error {
	escrow, err := readEscrow(t, task.Escrow)
	if err != nil {
		return err
	}
	all, err := sortedClaims(t, taskAddr)
	if err != nil {
		return err
	}
	winners, losers := pickWinners(task, all)
	if len(winners) == 0 {
		return fmt.Errorf("%w: no claimant to pay", ErrInvalidArgument)
	}

	fee := task.RewardAmount * uint64(task.ProtocolFeeBps) / 10000
	net := task.RewardAmount - fee
	workerPool := net / 2
	perWorker := workerPool / uint64(len(winners))
	paid := perWorker * uint64(len(winners))
	creatorShare := net - paid

	for _, w := range winners {
		if err := c.payWorker(t, escrow, w, perWorker, now); err != nil {
			return err
		}
	}
	for _, l := range losers {
		if err := c.releaseLoser(t, l, task.Type, now); err != nil {
			return err
		}
	}
	if escrow.Balance < creatorShare {
		return fmt.Errorf("%w: %d units short of creator share", ErrEscrowImbalance, creatorShare-escrow.Balance)
	}
	escrow.Balance -= creatorShare
	if err := t.Credit(task.Creator, creatorShare); err != nil {
		return err
	}
	if err := c.collectFee(t, escrow, fee); err != nil {
		return err
	}
	if escrow.Balance != 0 {
		return fmt.Errorf("%w: %d units left", ErrEscrowImbalance, escrow.Balance)
	}
	if err := t.Write(task.Escrow, escrow); err != nil {
		return err
	}

	task.Status = types.TaskCompleted
	task.CompletedAt = now
	return t.Write(taskAddr, task)
}

// refund returns the full escrow balance to the creator.
func (c *Chain) refund(t *ledger.Txn, task *types.Task) error {
	escrow, err := readEscrow(t, task.Escrow)
	if err != nil {
		return err
	}
	if err := t.Credit(task.Creator, escrow.Balance); err != nil {
		return err
	}
	escrow.Balance = 0
	return t.Write(task.Escrow, escrow)
}

// payout distributes pool across winners and releases losers.
func (c *Chain) payout(t *ledger.Txn, escrow *types.Escrow, winners, losers []settledClaim, pool uint64, taskType types.TaskType, now int64) error {
	share := pool / uint64(len(winners))
	remainder := pool - share*uint64(len(winners))

	for i, w := range winners {
		amount := share
		if i == 0 {
			// Integer-division remainder goes to the earliest claimant
			// so the escrow lands on exactly zero.
			amount += remainder
		}
		if err := c.payWorker(t, escrow, w, amount, now); err != nil {
			return err
		}
	}
	for _, l := range losers {
		if err := c.releaseLoser(t, l, taskType, now); err != nil {
			return err
		}
	}
	return nil
}

// payWorker pays one accepted claim and updates the agent's bookkeeping.
func (c *Chain) payWorker(t *ledger.Txn, escrow *types.Escrow, w settledClaim, amount uint64, now int64) error {
	if escrow.Balance < amount {
		return fmt.Errorf("%w: %d units short paying %s", ErrEscrowImbalance, amount-escrow.Balance, w.claim.Agent)
	}
	escrow.Balance -= amount

	w.claim.Status = types.ClaimAccepted
	w.claim.Payout = amount
	if err := t.Write(w.addr, w.claim); err != nil {
		return err
	}

	agent, err := readAgent(t, w.claim.Agent)
	if err != nil {
		return err
	}
	agent.TasksCompleted++
	agent.TotalEarned += amount
	agent.Reputation = capReputation(agent.Reputation, reputationCompleted)
	agent.LastActive = now
	releaseAgentSlot(agent)
	if err := t.Write(w.claim.Agent, agent); err != nil {
		return err
	}
	return t.Credit(agent.Authority, amount)
}

// releaseLoser closes a non-winning claim. Competitive losers keep a
// reputation credit for honest participation but receive no funds.
func (c *Chain) releaseLoser(t *ledger.Txn, l settledClaim, taskType types.TaskType, now int64) error {
	l.claim.Status = types.ClaimRejected
	if err := t.Write(l.addr, l.claim); err != nil {
		return err
	}

	agent, err := readAgent(t, l.claim.Agent)
	if err != nil {
		return err
	}
	if taskType == types.TaskCompetitive {
		agent.Reputation = capReputation(agent.Reputation, reputationParticipated)
	}
	agent.LastActive = now
	releaseAgentSlot(agent)
	return t.Write(l.claim.Agent, agent)
}

// penalizeClaimant is applied when a dispute resolves against the workers.
func (c *Chain) penalizeClaimant(t *ledger.Txn, l settledClaim, now int64) error {
	l.claim.Status = types.ClaimRejected
	if err := t.Write(l.addr, l.claim); err != nil {
		return err
	}

	agent, err := readAgent(t, l.claim.Agent)
	if err != nil {
		return err
	}
	agent.Reputation = capReputation(agent.Reputation, -reputationDisputeLoss)
	agent.LastActive = now
	releaseAgentSlot(agent)
	if agent.Reputation < reputationSuspendFloor {
		agent.Status = types.AgentSuspended
	}
	return t.Write(l.claim.Agent, agent)
}

// releaseAgentSlot drops the agent's active-task count and resumes Active
// status once nothing is in flight.
func releaseAgentSlot(agent *types.AgentRegistration) {
	if agent.ActiveTasks > 0 {
		agent.ActiveTasks--
	}
	if agent.Status == types.AgentBusy && agent.ActiveTasks == 0 {
		agent.Status = types.AgentActive
	}
}

func (c *Chain) collectFee(t *ledger.Txn, escrow *types.Escrow, fee uint64) error {
	if fee == 0 {
		return nil
	}
	if escrow.Balance < fee {
		return fmt.Errorf("%w: %d units short of fee", ErrEscrowImbalance, fee-escrow.Balance)
	}
	escrow.Balance -= fee

	cfg, cfgAddr, err := readConfig(t)
	if err != nil {
		return err
	}
	cfg.Treasury += fee
	return t.Write(cfgAddr, cfg)
}

// sortedClaims returns a task's claims ordered by claim time, then claim
// address, so settlement is deterministic.
func sortedClaims(t *ledger.Txn, taskAddr types.Address) ([]settledClaim, error) {
	byAddr, err := taskClaims(t, taskAddr)
	if err != nil {
		return nil, err
	}
	out := make([]settledClaim, 0, len(byAddr))
	for addr, claim := range byAddr {
		out = append(out, settledClaim{addr: addr, claim: claim})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].claim.ClaimedAt != out[j].claim.ClaimedAt {
			return out[i].claim.ClaimedAt < out[j].claim.ClaimedAt
		}
		return bytes.Compare(out[i].addr[:], out[j].addr[:]) < 0
	})
	return out, nil
}

// pickWinners splits claims into paid and unpaid sets. Submitted claims
// win; if nothing was submitted (a dispute released mid-flight), every
// claimant shares. Competitive tasks pay only the earliest submission.
func pickWinners(task *types.Task, claims []settledClaim) (winners, losers []settledClaim) {
	for _, sc := range claims {
		if sc.claim.Status == types.ClaimSubmitted {
			winners = append(winners, sc)
		} else {
			losers = append(losers, sc)
		}
	}
	if len(winners) == 0 {
		return claims, nil
	}
	if task.Type == types.TaskCompetitive && len(winners) > 1 {
		sort.SliceStable(winners, func(i, j int) bool {
			return winners[i].claim.SubmittedAt < winners[j].claim.SubmittedAt
		})
		losers = append(losers, winners[1:]...)
		winners = winners[:1]
	}
	return winners, losers
}
