package chain

import (
	"fmt"

	"github.com/agenc-io/agenc-registry/pkg/ledger"
	"github.com/agenc-io/agenc-registry/pkg/types"
)

// DisputeTask flags an in-flight task for arbitration. Only the creator or
// a claimant may dispute. Disputed tasks stay disputed until an arbiter
// resolves them; the core runs no timeout sweeps.
func (c *Chain) DisputeTask(caller, taskAddr types.Address) error {
	return c.execute("dispute_task", func(t *ledger.Txn, emit func(Event)) error {
		task, err := readTask(t, taskAddr)
		if err != nil {
			return err
		}
		if task.Status != types.TaskInProgress && task.Status != types.TaskPendingValidation {
			return ErrTaskNotInProgress
		}

		if task.Creator != caller {
			if err := c.requireClaimant(t, taskAddr, caller); err != nil {
				return err
			}
		}

		now := c.now().Unix()
		task.Status = types.TaskDisputed
		if err := t.Write(taskAddr, task); err != nil {
			return err
		}

		emit(Event{
			Type:      EventTaskDisputed,
			Account:   taskAddr,
			Actor:     caller,
			Timestamp: now,
		})
		return nil
	})
}

// requireClaimant checks that caller is the authority of some agent with a
// claim on the task.
func (c *Chain) requireClaimant(t *ledger.Txn, taskAddr, caller types.Address) error {
	claims, err := taskClaims(t, taskAddr)
	if err != nil {
		return err
	}
	for _, claim := range claims {
		agent, err := readAgent(t, claim.Agent)
		if err != nil {
			return err
		}
		if agent.Authority == caller {
			return nil
		}
	}
	return fmt.Errorf("%w: only the creator or a claimant may dispute", ErrUnauthorized)
}

// ResolveDispute applies an arbiter's verdict to a disputed task. The
// arbiter agent needs the Arbiter capability, stake at or above the
// protocol minimum, and no claim on the task.
func (c *Chain) ResolveDispute(caller, arbiterAddr, taskAddr types.Address, outcome types.DisputeOutcome) error {
	if !outcome.Valid() {
		return fmt.Errorf("%w: outcome %d out of range", ErrInvalidArgument, outcome)
	}
	return c.execute("resolve_dispute", func(t *ledger.Txn, emit func(Event)) error {
		arbiter, err := readAgent(t, arbiterAddr)
		if err != nil {
			return err
		}
		if arbiter.Authority != caller {
			return fmt.Errorf("%w: caller is not the arbiter authority", ErrUnauthorized)
		}
		if !arbiter.Capabilities.HasAll(types.CapArbiter) {
			return fmt.Errorf("%w: arbiter capability required", ErrCapabilityMismatch)
		}
		if arbiter.Stake < c.params.ArbiterMinStake {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientStake, arbiter.Stake, c.params.ArbiterMinStake)
		}

		task, err := readTask(t, taskAddr)
		if err != nil {
			return err
		}
		if task.Status != types.TaskDisputed {
			return ErrTaskNotDisputed
		}
		claimAddr, _ := types.ClaimAddress(taskAddr, arbiterAddr)
		if _, err := readClaim(t, claimAddr); err == nil {
			return ErrSelfValidation
		}

		now := c.now().Unix()
		switch outcome {
		case types.OutcomeRelease:
			if err := c.settle(t, taskAddr, task, now, emit); err != nil {
				return err
			}
		case types.OutcomeSplit:
			if err := c.settleSplit(t, taskAddr, task, now, emit); err != nil {
				return err
			}
		case types.OutcomeRefund:
			if err := c.refund(t, task); err != nil {
				return err
			}
			claims, err := sortedClaims(t, taskAddr)
			if err != nil {
				return err
			}
			for _, sc := range claims {
				if err := c.penalizeClaimant(t, sc, now); err != nil {
					return err
				}
			}
			task.Status = types.TaskCancelled
			if err := t.Write(taskAddr, task); err != nil {
				return err
			}
		}

		arbiter.LastActive = now
		if err := t.Write(arbiterAddr, arbiter); err != nil {
			return err
		}

		emit(Event{
			Type:      EventDisputeResolved,
			Account:   taskAddr,
			Actor:     arbiterAddr,
			Timestamp: now,
			Data: map[string]interface{}{
				"outcome": outcome.String(),
				"status":  task.Status.String(),
			},
		})
		return nil
	})
}

// CancelTask refunds an unclaimed task. Tasks with workers cannot be
// cancelled; the creator must dispute instead.
func (c *Chain) CancelTask(caller, taskAddr types.Address) error {
	return c.execute("cancel_task", func(t *ledger.Txn, emit func(Event)) error {
		task, err := readTask(t, taskAddr)
		if err != nil {
			return err
		}
		if task.Creator != caller {
			return fmt.Errorf("%w: only the creator may cancel", ErrUnauthorized)
		}
		if task.Status != types.TaskOpen || task.CurrentWorkers != 0 {
			return ErrTaskNotCancellable
		}

		if err := c.refund(t, task); err != nil {
			return err
		}

		now := c.now().Unix()
		task.Status = types.TaskCancelled
		if err := t.Write(taskAddr, task); err != nil {
			return err
		}

		emit(Event{
			Type:      EventTaskCancelled,
			Account:   taskAddr,
			Actor:     caller,
			Timestamp: now,
		})
		return nil
	})
}
