package types

// License identifies the distribution terms attached to a published model.
// The integer values are part of the binary account layout.
type License uint8

const (
	LicenseMIT License = iota
	LicenseApache2
	LicenseGPL3
	LicenseCreativeCommons
	LicenseCustom
)

func (l License) Valid() bool {
	return l <= LicenseCustom
}

func (l License) String() string {
	switch l {
	case LicenseMIT:
		return "MIT"
	case LicenseApache2:
		return "Apache-2.0"
	case LicenseGPL3:
		return "GPL-3.0"
	case LicenseCreativeCommons:
		return "CreativeCommons"
	case LicenseCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// AgentStatus tracks an agent registration through its lifecycle.
type AgentStatus uint8

const (
	AgentInactive AgentStatus = iota
	AgentActive
	AgentBusy
	AgentSuspended
)

func (s AgentStatus) String() string {
	switch s {
	case AgentInactive:
		return "Inactive"
	case AgentActive:
		return "Active"
	case AgentBusy:
		return "Busy"
	case AgentSuspended:
		return "Suspended"
	default:
		return "Unknown"
	}
}

// TaskStatus tracks a task through its lifecycle.
type TaskStatus uint8

const (
	TaskOpen TaskStatus = iota
	TaskInProgress
	TaskPendingValidation
	TaskCompleted
	TaskCancelled
	TaskDisputed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskOpen:
		return "Open"
	case TaskInProgress:
		return "InProgress"
	case TaskPendingValidation:
		return "PendingValidation"
	case TaskCompleted:
		return "Completed"
	case TaskCancelled:
		return "Cancelled"
	case TaskDisputed:
		return "Disputed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transitions are possible from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}

// TaskType selects the settlement policy for a task's escrow.
type TaskType uint8

const (
	// TaskExclusive pays a single worker the full net reward.
	TaskExclusive TaskType = iota
	// TaskCollaborative splits the net reward evenly across workers with
	// accepted completions.
	TaskCollaborative
	// TaskCompetitive pays the first accepted completion only.
	TaskCompetitive
)

func (t TaskType) Valid() bool {
	return t <= TaskCompetitive
}

func (t TaskType) String() string {
	switch t {
	case TaskExclusive:
		return "Exclusive"
	case TaskCollaborative:
		return "Collaborative"
	case TaskCompetitive:
		return "Competitive"
	default:
		return "Unknown"
	}
}

// ClaimStatus tracks a single agent's claim on a task.
type ClaimStatus uint8

const (
	ClaimActive ClaimStatus = iota
	ClaimSubmitted
	ClaimAccepted
	ClaimRejected
)

func (s ClaimStatus) String() string {
	switch s {
	case ClaimActive:
		return "Active"
	case ClaimSubmitted:
		return "Submitted"
	case ClaimAccepted:
		return "Accepted"
	case ClaimRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// DisputeOutcome is the arbiter's verdict on a disputed task.
type DisputeOutcome uint8

const (
	// OutcomeRelease pays workers as if the task completed normally.
	OutcomeRelease DisputeOutcome = iota
	// OutcomeRefund returns the full escrow to the creator.
	OutcomeRefund
	// OutcomeSplit divides the escrow between workers and the creator.
	OutcomeSplit
)

func (o DisputeOutcome) Valid() bool {
	return o <= OutcomeSplit
}

func (o DisputeOutcome) String() string {
	switch o {
	case OutcomeRelease:
		return "Release"
	case OutcomeRefund:
		return "Refund"
	case OutcomeSplit:
		return "Split"
	default:
		return "Unknown"
	}
}
