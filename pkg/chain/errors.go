package chain

import "errors"

// Every validation failure aborts the whole instruction and surfaces one of
// these specific kinds; nothing is retried and nothing is swallowed.
var (
	// ErrUnauthorized is returned when the signer does not match the
	// owning key of the account being mutated.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidArgument covers length and range violations.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidAddress is returned when a caller-supplied address does
	// not match the derived address for the same inputs.
	ErrInvalidAddress = errors.New("address does not match derivation")

	ErrAlreadyInitialized = errors.New("registry already initialized")
	ErrModelDeprecated    = errors.New("model is deprecated")
	ErrAlreadyDeprecated  = errors.New("model is already deprecated")

	ErrTaskNotOpen              = errors.New("task is not open for claims")
	ErrTaskNotInProgress        = errors.New("task is not in progress")
	ErrTaskNotPendingValidation = errors.New("task is not pending validation")
	ErrTaskNotDisputed          = errors.New("task is not disputed")
	ErrTaskNotCancellable       = errors.New("task is not cancellable")
	ErrTaskFull                 = errors.New("task worker slots are full")
	ErrCapabilityMismatch       = errors.New("agent capabilities do not cover task requirements")
	ErrInsufficientReputation   = errors.New("agent reputation below task minimum")
	ErrDependencyNotMet         = errors.New("dependency task is not completed")
	ErrDeadlineExceeded         = errors.New("task deadline has passed")
	ErrAgentNotActive           = errors.New("agent is not active")
	ErrAlreadySubmitted         = errors.New("completion already submitted for this claim")
	ErrSelfValidation           = errors.New("validator holds a claim on the task")
	ErrInsufficientStake        = errors.New("stake below protocol minimum")

	// ErrEscrowImbalance indicates a settlement logic defect: the escrow
	// did not reach exactly zero. The transition aborts; the imbalance is
	// never silently dropped.
	ErrEscrowImbalance = errors.New("escrow balance nonzero after settlement")
)
