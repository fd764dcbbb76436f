package types

import (
	"crypto/sha256"
	"encoding/binary"
)

// Seed tags for address derivation. These match the seed strings the
// browsing client uses, so client-side and node-side derivation agree.
const (
	SeedProtocol = "protocol"
	SeedModel    = "model"
	SeedVersion  = "version"
	SeedAgent    = "agent"
	SeedTask     = "task"
	SeedClaim    = "claim"
	SeedEscrow   = "escrow"
)

// derivePrefix domain-separates derived account addresses from other uses
// of the hash.
const derivePrefix = "agenc:account:v1"

// Derive maps a seed list to a deterministic account address and a
// collision-avoidance bump. The bump is searched downward from 255; a
// candidate is rejected only if it collides with the reserved zero
// address, so in practice the first candidate wins. Derive is a pure
// function: callers must verify that a supplied account address matches
// the derived one before acting on it.
func Derive(seeds ...[]byte) (Address, uint8) {
	for bump := 255; bump >= 0; bump-- {
		if addr, ok := deriveWithBump(seeds, uint8(bump)); ok {
			return addr, uint8(bump)
		}
	}
	// Unreachable: 256 independent digests cannot all be zero.
	return Address{}, 0
}

func deriveWithBump(seeds [][]byte, bump uint8) (Address, bool) {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write([]byte{bump})
	h.Write([]byte(derivePrefix))

	var addr Address
	copy(addr[:], h.Sum(nil))
	if addr.IsZero() {
		return Address{}, false
	}
	return addr, true
}

// ConfigAddress derives the well-known singleton config address.
func ConfigAddress() (Address, uint8) {
	return Derive([]byte(SeedProtocol))
}

// ModelAddress derives a model address from its publisher and the SHA-256
// of its name, so one publisher cannot register the same name twice.
func ModelAddress(publisher Address, name string) (Address, uint8) {
	nameHash := sha256.Sum256([]byte(name))
	return Derive([]byte(SeedModel), publisher[:], nameHash[:])
}

// VersionAddress derives a model version address from the model address
// and the version number as 4 little-endian bytes.
func VersionAddress(model Address, version uint32) (Address, uint8) {
	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], version)
	return Derive([]byte(SeedVersion), model[:], v[:])
}

// AgentAddress derives an agent registration address from its identity bytes.
func AgentAddress(agentID [32]byte) (Address, uint8) {
	return Derive([]byte(SeedAgent), agentID[:])
}

// TaskAddress derives a task address from its creator and identity bytes.
func TaskAddress(creator Address, taskID [32]byte) (Address, uint8) {
	return Derive([]byte(SeedTask), creator[:], taskID[:])
}

// ClaimAddress derives the claim record address for a (task, agent) pair.
func ClaimAddress(task, agent Address) (Address, uint8) {
	return Derive([]byte(SeedClaim), task[:], agent[:])
}

// EscrowAddress derives the escrow address owned by a task.
func EscrowAddress(task Address) (Address, uint8) {
	return Derive([]byte(SeedEscrow), task[:])
}
