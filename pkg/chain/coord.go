package chain

import (
	"fmt"
	"math"

	"github.com/agenc-io/agenc-registry/pkg/ledger"
	"github.com/agenc-io/agenc-registry/pkg/types"
)

// maxRewardAmount keeps reward*feeBps inside uint64 at settlement.
const maxRewardAmount = math.MaxUint64 / 10000

// RegisterAgentRequest carries the registerAgent instruction arguments.
type RegisterAgentRequest struct {
	Caller        types.Address
	AgentID       [32]byte
	Capabilities  types.Capability
	Endpoint      string
	MetadataURI   string
	Stake         uint64
	ExpectedAgent types.Address
}

// RegisterAgent creates an agent registration, locking the requested stake
// from the caller's balance. New agents start Active with full reputation.
func (c *Chain) RegisterAgent(req RegisterAgentRequest) (types.Address, error) {
	if req.Capabilities == 0 {
		return types.Address{}, fmt.Errorf("%w: capabilities cannot be empty", ErrInvalidArgument)
	}
	if req.Endpoint == "" {
		return types.Address{}, fmt.Errorf("%w: endpoint cannot be empty", ErrInvalidArgument)
	}
	if len(req.Endpoint) > types.MaxEndpointLen {
		return types.Address{}, fmt.Errorf("%w: endpoint exceeds %d characters", ErrInvalidArgument, types.MaxEndpointLen)
	}
	if len(req.MetadataURI) > types.MaxMetadataURILen {
		return types.Address{}, fmt.Errorf("%w: metadata URI exceeds %d characters", ErrInvalidArgument, types.MaxMetadataURILen)
	}

	addr, bump := types.AgentAddress(req.AgentID)
	if err := verifyExpected(req.ExpectedAgent, addr); err != nil {
		return types.Address{}, err
	}

	err := c.execute("register_agent", func(t *ledger.Txn, emit func(Event)) error {
		now := c.now().Unix()

		if req.Stake > 0 {
			if err := t.Debit(req.Caller, req.Stake); err != nil {
				return err
			}
		}

		agent := &types.AgentRegistration{
			AgentID:      req.AgentID,
			Authority:    req.Caller,
			Capabilities: req.Capabilities,
			Status:       types.AgentActive,
			Endpoint:     req.Endpoint,
			MetadataURI:  req.MetadataURI,
			RegisteredAt: now,
			LastActive:   now,
			Reputation:   reputationDefault,
			Stake:        req.Stake,
			Bump:         bump,
		}
		if err := t.Create(addr, agent); err != nil {
			return err
		}

		emit(Event{
			Type:      EventAgentRegistered,
			Account:   addr,
			Actor:     req.Caller,
			Timestamp: now,
			Data: map[string]interface{}{
				"capabilities": agent.Capabilities.Names(),
				"endpoint":     req.Endpoint,
				"stake":        req.Stake,
			},
		})
		return nil
	})
	if err != nil {
		return types.Address{}, err
	}
	return addr, nil
}

// CreateTaskRequest carries the createTask instruction arguments.
type CreateTaskRequest struct {
	Caller               types.Address
	TaskID               [32]byte
	RequiredCapabilities types.Capability
	Description          []byte
	ConstraintHash       types.Hash32
	RewardAmount         uint64
	RewardMint           *types.Address
	MaxWorkers           uint16
	RequiredCompletions  uint16
	Type                 types.TaskType
	MinReputation        uint32
	Deadline             int64
	DependsOn            *types.Address
	ProtocolFeeBps       uint16
	ExpectedTask         types.Address
}

// CreateTaskResult reports the addresses created by createTask.
type CreateTaskResult struct {
	Task   types.Address `json:"task"`
	Escrow types.Address `json:"escrow"`
}

// CreateTask creates a task and its escrow atomically, locking the full
// reward from the creator. The protocol fee is carved out of the reward at
// settlement, so the escrow holds exactly RewardAmount.
func (c *Chain) CreateTask(req CreateTaskRequest) (CreateTaskResult, error) {
	var res CreateTaskResult
	if err := validateCreateTask(&req); err != nil {
		return res, err
	}

	taskAddr, taskBump := types.TaskAddress(req.Caller, req.TaskID)
	if err := verifyExpected(req.ExpectedTask, taskAddr); err != nil {
		return res, err
	}
	escrowAddr, escrowBump := types.EscrowAddress(taskAddr)

	err := c.execute("create_task", func(t *ledger.Txn, emit func(Event)) error {
		now := c.now().Unix()
		if req.Deadline != 0 && req.Deadline <= now {
			return fmt.Errorf("%w: deadline is in the past", ErrInvalidArgument)
		}
		if req.DependsOn != nil {
			// The predecessor must exist; it only has to be Completed by
			// the time the task is claimed.
			if _, err := readTask(t, *req.DependsOn); err != nil {
				return err
			}
		}

		if err := t.Debit(req.Caller, req.RewardAmount); err != nil {
			return err
		}

		task := &types.Task{
			TaskID:               req.TaskID,
			Creator:              req.Caller,
			RequiredCapabilities: req.RequiredCapabilities,
			Description:          req.Description,
			ConstraintHash:       req.ConstraintHash,
			RewardAmount:         req.RewardAmount,
			RewardMint:           req.RewardMint,
			MaxWorkers:           req.MaxWorkers,
			RequiredCompletions:  req.RequiredCompletions,
			Status:               types.TaskOpen,
			Type:                 req.Type,
			MinReputation:        req.MinReputation,
			DependsOn:            req.DependsOn,
			ProtocolFeeBps:       req.ProtocolFeeBps,
			CreatedAt:            now,
			Deadline:             req.Deadline,
			Escrow:               escrowAddr,
			Bump:                 taskBump,
		}
		if err := t.Create(taskAddr, task); err != nil {
			return err
		}

		escrow := &types.Escrow{
			Task:    taskAddr,
			Balance: req.RewardAmount,
			Bump:    escrowBump,
		}
		if err := t.Create(escrowAddr, escrow); err != nil {
			return err
		}

		emit(Event{
			Type:      EventTaskCreated,
			Account:   taskAddr,
			Actor:     req.Caller,
			Timestamp: now,
			Data: map[string]interface{}{
				"reward_amount": req.RewardAmount,
				"task_type":     req.Type.String(),
				"max_workers":   req.MaxWorkers,
			},
		})
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Task = taskAddr
	res.Escrow = escrowAddr
	return res, nil
}

func validateCreateTask(req *CreateTaskRequest) error {
	if req.RewardAmount == 0 {
		return fmt.Errorf("%w: reward amount must be positive", ErrInvalidArgument)
	}
	if req.RewardAmount > maxRewardAmount {
		return fmt.Errorf("%w: reward amount exceeds %d", ErrInvalidArgument, uint64(maxRewardAmount))
	}
	if req.MaxWorkers < 1 {
		return fmt.Errorf("%w: max workers must be at least 1", ErrInvalidArgument)
	}
	if req.RequiredCompletions < 1 {
		return fmt.Errorf("%w: required completions must be at least 1", ErrInvalidArgument)
	}
	if req.RequiredCompletions > req.MaxWorkers {
		return fmt.Errorf("%w: required completions exceed max workers", ErrInvalidArgument)
	}
	if req.Type == types.TaskExclusive && (req.MaxWorkers != 1 || req.RequiredCompletions != 1) {
		return fmt.Errorf("%w: exclusive tasks require exactly one worker and one completion", ErrInvalidArgument)
	}
	if !req.Type.Valid() {
		return fmt.Errorf("%w: task type %d out of range", ErrInvalidArgument, req.Type)
	}
	if req.ProtocolFeeBps > 10000 {
		return fmt.Errorf("%w: protocol fee exceeds 10000 bps", ErrInvalidArgument)
	}
	if len(req.Description) > types.MaxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d bytes", ErrInvalidArgument, types.MaxDescriptionLen)
	}
	return nil
}

// ClaimTask records an agent's claim on a task. The caller must be the
// agent's authority; the agent must be Active, hold every required
// capability bit and clear the reputation gate. Claims are serialized by
// the ledger, so the claimant past MaxWorkers observes ErrTaskFull.
func (c *Chain) ClaimTask(caller, agentAddr, taskAddr types.Address) error {
	return c.execute("claim_task", func(t *ledger.Txn, emit func(Event)) error {
		agent, err := readAgent(t, agentAddr)
		if err != nil {
			return err
		}
		if agent.Authority != caller {
			return fmt.Errorf("%w: caller is not the agent authority", ErrUnauthorized)
		}
		task, err := readTask(t, taskAddr)
		if err != nil {
			return err
		}

		now := c.now().Unix()
		if task.Deadline != 0 && now > task.Deadline {
			return ErrDeadlineExceeded
		}
		switch task.Status {
		case types.TaskOpen, types.TaskInProgress:
		default:
			return ErrTaskNotOpen
		}
		// An in-progress exclusive task is full by definition, so the
		// worker-slot check covers it.
		if task.CurrentWorkers >= task.MaxWorkers {
			return ErrTaskFull
		}
		if agent.Status != types.AgentActive {
			return fmt.Errorf("%w: agent status is %s", ErrAgentNotActive, agent.Status)
		}
		if !agent.Capabilities.HasAll(task.RequiredCapabilities) {
			return ErrCapabilityMismatch
		}
		if agent.Reputation < task.MinReputation {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientReputation, agent.Reputation, task.MinReputation)
		}
		if task.DependsOn != nil {
			dep, err := readTask(t, *task.DependsOn)
			if err != nil {
				return err
			}
			if dep.Status != types.TaskCompleted {
				return ErrDependencyNotMet
			}
		}

		claimAddr, claimBump := types.ClaimAddress(taskAddr, agentAddr)
		claim := &types.TaskClaim{
			Task:      taskAddr,
			Agent:     agentAddr,
			Status:    types.ClaimActive,
			ClaimedAt: now,
			Bump:      claimBump,
		}
		if err := t.Create(claimAddr, claim); err != nil {
			return err
		}

		task.CurrentWorkers++
		task.Status = types.TaskInProgress
		if err := t.Write(taskAddr, task); err != nil {
			return err
		}

		agent.ActiveTasks++
		agent.LastActive = now
		if task.Type == types.TaskExclusive {
			agent.Status = types.AgentBusy
		}
		if err := t.Write(agentAddr, agent); err != nil {
			return err
		}

		emit(Event{
			Type:      EventTaskClaimed,
			Account:   taskAddr,
			Actor:     agentAddr,
			Timestamp: now,
			Data: map[string]interface{}{
				"current_workers": task.CurrentWorkers,
			},
		})
		return nil
	})
}

// SubmitCompletion records a claimant's result. When the completion target
// is reached (first submission for competitive tasks), the task moves to
// PendingValidation and waits for a validator.
func (c *Chain) SubmitCompletion(caller, agentAddr, taskAddr types.Address, result []byte) error {
	if len(result) > types.MaxResultLen {
		return fmt.Errorf("%w: result exceeds %d bytes", ErrInvalidArgument, types.MaxResultLen)
	}
	return c.execute("submit_completion", func(t *ledger.Txn, emit func(Event)) error {
		agent, err := readAgent(t, agentAddr)
		if err != nil {
			return err
		}
		if agent.Authority != caller {
			return fmt.Errorf("%w: caller is not the agent authority", ErrUnauthorized)
		}
		task, err := readTask(t, taskAddr)
		if err != nil {
			return err
		}
		if task.Status != types.TaskInProgress {
			return ErrTaskNotInProgress
		}

		claimAddr, _ := types.ClaimAddress(taskAddr, agentAddr)
		claim, err := readClaim(t, claimAddr)
		if err != nil {
			return err
		}
		if claim.Status != types.ClaimActive {
			return ErrAlreadySubmitted
		}

		now := c.now().Unix()
		claim.Status = types.ClaimSubmitted
		claim.SubmittedAt = now
		if err := t.Write(claimAddr, claim); err != nil {
			return err
		}

		task.Completions++
		task.Result = result
		if taskReadyForValidation(task) {
			task.Status = types.TaskPendingValidation
		}
		if err := t.Write(taskAddr, task); err != nil {
			return err
		}

		agent.LastActive = now
		if err := t.Write(agentAddr, agent); err != nil {
			return err
		}

		emit(Event{
			Type:      EventCompletionSubmitted,
			Account:   taskAddr,
			Actor:     agentAddr,
			Timestamp: now,
			Data: map[string]interface{}{
				"completions": task.Completions,
				"status":      task.Status.String(),
			},
		})
		return nil
	})
}

// taskReadyForValidation reports whether the completion target is reached.
// Competitive tasks close on the first submission.
func taskReadyForValidation(task *types.Task) bool {
	if task.Type == types.TaskCompetitive {
		return task.Completions >= 1
	}
	return task.Completions >= task.RequiredCompletions
}

// ValidateCompletion is the validator's verdict on a pending task. The
// validator agent needs the Validator capability and must not hold a claim
// on the task. Accepting settles the escrow; rejecting opens a dispute.
func (c *Chain) ValidateCompletion(caller, validatorAddr, taskAddr types.Address, accept bool) error {
	return c.execute("validate_completion", func(t *ledger.Txn, emit func(Event)) error {
		validator, err := readAgent(t, validatorAddr)
		if err != nil {
			return err
		}
		if validator.Authority != caller {
			return fmt.Errorf("%w: caller is not the validator authority", ErrUnauthorized)
		}
		if !validator.Capabilities.HasAll(types.CapValidator) {
			return fmt.Errorf("%w: validator capability required", ErrCapabilityMismatch)
		}

		task, err := readTask(t, taskAddr)
		if err != nil {
			return err
		}
		if task.Status != types.TaskPendingValidation {
			return ErrTaskNotPendingValidation
		}

		claimAddr, _ := types.ClaimAddress(taskAddr, validatorAddr)
		if _, err := readClaim(t, claimAddr); err == nil {
			return ErrSelfValidation
		}

		now := c.now().Unix()
		if !accept {
			task.Status = types.TaskDisputed
			if err := t.Write(taskAddr, task); err != nil {
				return err
			}
			emit(Event{
				Type:      EventTaskDisputed,
				Account:   taskAddr,
				Actor:     validatorAddr,
				Timestamp: now,
				Data:      map[string]interface{}{"reason": "validation rejected"},
			})
			return nil
		}

		if err := c.settle(t, taskAddr, task, now, emit); err != nil {
			return err
		}

		validator.LastActive = now
		return t.Write(validatorAddr, validator)
	})
}
