package types

// Field length limits enforced on mutating instructions.
const (
	MaxModelNameLen   = 64
	MaxMetadataURILen = 128
	MaxEndpointLen    = 256
	MaxDescriptionLen = 256
	MaxResultLen      = 256
)

// Reputation is expressed in basis points: 10000 = 100%.
const MaxReputation = 10000

// Kind is the account type discriminator, stored as the first byte of every
// encoded record so external readers can decode raw storage.
type Kind uint8

const (
	KindConfig Kind = iota + 1
	KindModel
	KindModelVersion
	KindAgent
	KindTask
	KindClaim
	KindEscrow
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindModel:
		return "model"
	case KindModelVersion:
		return "version"
	case KindAgent:
		return "agent"
	case KindTask:
		return "task"
	case KindClaim:
		return "claim"
	case KindEscrow:
		return "escrow"
	default:
		return "unknown"
	}
}

// Account is implemented by every ledger record type.
type Account interface {
	Kind() Kind
}

// RegistryConfig is the per-deployment singleton. Created once by the
// initialize instruction, mutated by every publish and add-version, never
// destroyed. Treasury accumulates protocol fees deducted at settlement.
type RegistryConfig struct {
	Authority     Address `json:"authority"`
	TotalModels   uint64  `json:"total_models"`
	TotalVersions uint64  `json:"total_versions"`
	Treasury      uint64  `json:"treasury"`
	Bump          uint8   `json:"bump"`
}

func (*RegistryConfig) Kind() Kind { return KindConfig }

// Model is a permanent model-weights registry entry. The name is part of
// the address derivation and immutable after creation; WeightsHash and
// MetadataURI always reflect the latest version.
type Model struct {
	Publisher    Address `json:"publisher"`
	Name         string  `json:"name"`
	WeightsHash  Hash32  `json:"weights_hash"`
	MetadataURI  string  `json:"metadata_uri"`
	License      License `json:"license"`
	VersionCount uint32  `json:"version_count"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
	Deprecated   bool    `json:"is_deprecated"`
	Bump         uint8   `json:"bump"`
}

func (*Model) Kind() Kind { return KindModel }

// ModelVersion is an immutable snapshot of one published version.
type ModelVersion struct {
	Model       Address `json:"model"`
	Version     uint32  `json:"version"`
	WeightsHash Hash32  `json:"weights_hash"`
	MetadataURI string  `json:"metadata_uri"`
	CreatedAt   int64   `json:"created_at"`
	Bump        uint8   `json:"bump"`
}

func (*ModelVersion) Kind() Kind { return KindModelVersion }

// AgentRegistration records a coordination-registry agent, its capability
// set, stake and reputation.
type AgentRegistration struct {
	AgentID        [32]byte    `json:"agent_id"`
	Authority      Address     `json:"authority"`
	Capabilities   Capability  `json:"capabilities"`
	Status         AgentStatus `json:"status"`
	Endpoint       string      `json:"endpoint"`
	MetadataURI    string      `json:"metadata_uri"`
	RegisteredAt   int64       `json:"registered_at"`
	LastActive     int64       `json:"last_active"`
	TasksCompleted uint32      `json:"tasks_completed"`
	TotalEarned    uint64      `json:"total_earned"`
	Reputation     uint32      `json:"reputation"`
	ActiveTasks    uint32      `json:"active_tasks"`
	Stake          uint64      `json:"stake"`
	Bump           uint8       `json:"bump"`
}

func (*AgentRegistration) Kind() Kind { return KindAgent }

// Task is a unit of coordinated work with an associated escrow.
type Task struct {
	TaskID               [32]byte   `json:"task_id"`
	Creator              Address    `json:"creator"`
	RequiredCapabilities Capability `json:"required_capabilities"`
	Description          []byte     `json:"description"`
	ConstraintHash       Hash32     `json:"constraint_hash"`
	RewardAmount         uint64     `json:"reward_amount"`
	RewardMint           *Address   `json:"reward_mint,omitempty"`
	MaxWorkers           uint16     `json:"max_workers"`
	CurrentWorkers       uint16     `json:"current_workers"`
	RequiredCompletions  uint16     `json:"required_completions"`
	Completions          uint16     `json:"completions"`
	Status               TaskStatus `json:"status"`
	Type                 TaskType   `json:"task_type"`
	MinReputation        uint32     `json:"min_reputation"`
	DependsOn            *Address   `json:"depends_on,omitempty"`
	ProtocolFeeBps       uint16     `json:"protocol_fee_bps"`
	CreatedAt            int64      `json:"created_at"`
	Deadline             int64      `json:"deadline"`
	CompletedAt          int64      `json:"completed_at"`
	Escrow               Address    `json:"escrow"`
	Result               []byte     `json:"result,omitempty"`
	Bump                 uint8      `json:"bump"`
}

func (*Task) Kind() Kind { return KindTask }

// TaskClaim is the per-(task, agent) claim record used for multi-worker
// bookkeeping and settlement.
type TaskClaim struct {
	Task        Address     `json:"task"`
	Agent       Address     `json:"agent"`
	Status      ClaimStatus `json:"status"`
	ClaimedAt   int64       `json:"claimed_at"`
	SubmittedAt int64       `json:"submitted_at"`
	Payout      uint64      `json:"payout"`
	Bump        uint8       `json:"bump"`
}

func (*TaskClaim) Kind() Kind { return KindClaim }

// Escrow holds the reward funds locked at task creation. Balance must be
// exactly zero after final settlement or refund.
type Escrow struct {
	Task    Address `json:"task"`
	Balance uint64  `json:"balance"`
	Bump    uint8   `json:"bump"`
}

func (*Escrow) Kind() Kind { return KindEscrow }
