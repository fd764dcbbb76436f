package types

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Binary account layout: a 1-byte kind discriminator followed by the
// account's fields in declaration order, little-endian. Strings and byte
// payloads carry a u32 length prefix; optional addresses carry a 1-byte
// presence flag. The layout is a contract with external readers: the
// browsing client decodes raw records without invoking node logic.

var (
	ErrTruncatedRecord = errors.New("truncated account record")
	ErrUnknownKind     = errors.New("unknown account kind")
)

type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) u16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }
func (e *encoder) u32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *encoder) i64(v int64)  { e.u64(uint64(v)) }

func (e *encoder) bool(v bool) {
	if v {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *encoder) addr(a Address) { e.buf = append(e.buf, a[:]...) }
func (e *encoder) hash(h Hash32)  { e.buf = append(e.buf, h[:]...) }

func (e *encoder) bytes(b []byte) {
	e.u32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) str(s string) { e.bytes([]byte(s)) }

func (e *encoder) optAddr(a *Address) {
	if a == nil {
		e.u8(0)
		return
	}
	e.u8(1)
	e.addr(*a)
}

type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.buf) {
		d.err = ErrTruncatedRecord
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) i64() int64 { return int64(d.u64()) }

func (d *decoder) bool() bool { return d.u8() == 1 }

func (d *decoder) addr() Address {
	var a Address
	copy(a[:], d.take(len(a)))
	return a
}

func (d *decoder) hash() Hash32 {
	var h Hash32
	copy(h[:], d.take(len(h)))
	return h
}

func (d *decoder) bytes() []byte {
	n := int(d.u32())
	if d.err != nil {
		return nil
	}
	b := d.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (d *decoder) str() string { return string(d.bytes()) }

func (d *decoder) optAddr() *Address {
	if d.u8() == 0 {
		return nil
	}
	a := d.addr()
	return &a
}

// EncodeAccount serializes an account into its fixed binary layout.
func EncodeAccount(a Account) []byte {
	e := &encoder{buf: make([]byte, 0, 256)}
	e.u8(uint8(a.Kind()))

	switch acc := a.(type) {
	case *RegistryConfig:
		e.addr(acc.Authority)
		e.u64(acc.TotalModels)
		e.u64(acc.TotalVersions)
		e.u64(acc.Treasury)
		e.u8(acc.Bump)
	case *Model:
		e.addr(acc.Publisher)
		e.str(acc.Name)
		e.hash(acc.WeightsHash)
		e.str(acc.MetadataURI)
		e.u8(uint8(acc.License))
		e.u32(acc.VersionCount)
		e.i64(acc.CreatedAt)
		e.i64(acc.UpdatedAt)
		e.bool(acc.Deprecated)
		e.u8(acc.Bump)
	case *ModelVersion:
		e.addr(acc.Model)
		e.u32(acc.Version)
		e.hash(acc.WeightsHash)
		e.str(acc.MetadataURI)
		e.i64(acc.CreatedAt)
		e.u8(acc.Bump)
	case *AgentRegistration:
		e.buf = append(e.buf, acc.AgentID[:]...)
		e.addr(acc.Authority)
		e.u64(uint64(acc.Capabilities))
		e.u8(uint8(acc.Status))
		e.str(acc.Endpoint)
		e.str(acc.MetadataURI)
		e.i64(acc.RegisteredAt)
		e.i64(acc.LastActive)
		e.u32(acc.TasksCompleted)
		e.u64(acc.TotalEarned)
		e.u32(acc.Reputation)
		e.u32(acc.ActiveTasks)
		e.u64(acc.Stake)
		e.u8(acc.Bump)
	case *Task:
		e.buf = append(e.buf, acc.TaskID[:]...)
		e.addr(acc.Creator)
		e.u64(uint64(acc.RequiredCapabilities))
		e.bytes(acc.Description)
		e.hash(acc.ConstraintHash)
		e.u64(acc.RewardAmount)
		e.optAddr(acc.RewardMint)
		e.u16(acc.MaxWorkers)
		e.u16(acc.CurrentWorkers)
		e.u16(acc.RequiredCompletions)
		e.u16(acc.Completions)
		e.u8(uint8(acc.Status))
		e.u8(uint8(acc.Type))
		e.u32(acc.MinReputation)
		e.optAddr(acc.DependsOn)
		e.u16(acc.ProtocolFeeBps)
		e.i64(acc.CreatedAt)
		e.i64(acc.Deadline)
		e.i64(acc.CompletedAt)
		e.addr(acc.Escrow)
		e.bytes(acc.Result)
		e.u8(acc.Bump)
	case *TaskClaim:
		e.addr(acc.Task)
		e.addr(acc.Agent)
		e.u8(uint8(acc.Status))
		e.i64(acc.ClaimedAt)
		e.i64(acc.SubmittedAt)
		e.u64(acc.Payout)
		e.u8(acc.Bump)
	case *Escrow:
		e.addr(acc.Task)
		e.u64(acc.Balance)
		e.u8(acc.Bump)
	}
	return e.buf
}

// DecodeKind returns the discriminator of an encoded record without
// decoding the body.
func DecodeKind(data []byte) (Kind, error) {
	if len(data) == 0 {
		return 0, ErrTruncatedRecord
	}
	k := Kind(data[0])
	if k < KindConfig || k > KindEscrow {
		return 0, fmt.Errorf("%w: %d", ErrUnknownKind, data[0])
	}
	return k, nil
}

// DecodeAccount deserializes a record from its fixed binary layout.
func DecodeAccount(data []byte) (Account, error) {
	kind, err := DecodeKind(data)
	if err != nil {
		return nil, err
	}
	d := &decoder{buf: data, off: 1}

	var acc Account
	switch kind {
	case KindConfig:
		acc = &RegistryConfig{
			Authority:     d.addr(),
			TotalModels:   d.u64(),
			TotalVersions: d.u64(),
			Treasury:      d.u64(),
			Bump:          d.u8(),
		}
	case KindModel:
		acc = &Model{
			Publisher:    d.addr(),
			Name:         d.str(),
			WeightsHash:  d.hash(),
			MetadataURI:  d.str(),
			License:      License(d.u8()),
			VersionCount: d.u32(),
			CreatedAt:    d.i64(),
			UpdatedAt:    d.i64(),
			Deprecated:   d.bool(),
			Bump:         d.u8(),
		}
	case KindModelVersion:
		acc = &ModelVersion{
			Model:       d.addr(),
			Version:     d.u32(),
			WeightsHash: d.hash(),
			MetadataURI: d.str(),
			CreatedAt:   d.i64(),
			Bump:        d.u8(),
		}
	case KindAgent:
		a := &AgentRegistration{}
		copy(a.AgentID[:], d.take(32))
		a.Authority = d.addr()
		a.Capabilities = Capability(d.u64())
		a.Status = AgentStatus(d.u8())
		a.Endpoint = d.str()
		a.MetadataURI = d.str()
		a.RegisteredAt = d.i64()
		a.LastActive = d.i64()
		a.TasksCompleted = d.u32()
		a.TotalEarned = d.u64()
		a.Reputation = d.u32()
		a.ActiveTasks = d.u32()
		a.Stake = d.u64()
		a.Bump = d.u8()
		acc = a
	case KindTask:
		t := &Task{}
		copy(t.TaskID[:], d.take(32))
		t.Creator = d.addr()
		t.RequiredCapabilities = Capability(d.u64())
		t.Description = d.bytes()
		t.ConstraintHash = d.hash()
		t.RewardAmount = d.u64()
		t.RewardMint = d.optAddr()
		t.MaxWorkers = d.u16()
		t.CurrentWorkers = d.u16()
		t.RequiredCompletions = d.u16()
		t.Completions = d.u16()
		t.Status = TaskStatus(d.u8())
		t.Type = TaskType(d.u8())
		t.MinReputation = d.u32()
		t.DependsOn = d.optAddr()
		t.ProtocolFeeBps = d.u16()
		t.CreatedAt = d.i64()
		t.Deadline = d.i64()
		t.CompletedAt = d.i64()
		t.Escrow = d.addr()
		t.Result = d.bytes()
		t.Bump = d.u8()
		acc = t
	case KindClaim:
		acc = &TaskClaim{
			Task:        d.addr(),
			Agent:       d.addr(),
			Status:      ClaimStatus(d.u8()),
			ClaimedAt:   d.i64(),
			SubmittedAt: d.i64(),
			Payout:      d.u64(),
			Bump:        d.u8(),
		}
	case KindEscrow:
		acc = &Escrow{
			Task:    d.addr(),
			Balance: d.u64(),
			Bump:    d.u8(),
		}
	}

	if d.err != nil {
		return nil, fmt.Errorf("decoding %s record: %w", kind, d.err)
	}
	return acc, nil
}
