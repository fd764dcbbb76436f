package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/agenc-io/agenc-registry/pkg/types"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrInsufficientFunds    = errors.New("insufficient funds")
)

// Key prefixes inside the backend store.
var (
	accountPrefix = []byte{'a'}
	balancePrefix = []byte{'b'}
)

func accountKey(addr types.Address) []byte {
	return append(append([]byte{}, accountPrefix...), addr[:]...)
}

func balanceKey(addr types.Address) []byte {
	return append(append([]byte{}, balancePrefix...), addr[:]...)
}

// Ledger holds every typed account record and native balance. Each address
// holds at most one account of one type at a time. All mutations go through
// Execute, which applies an instruction's reads and writes atomically: the
// write set is buffered in a Txn overlay and committed in a single backend
// batch, or discarded entirely on error.
type Ledger struct {
	store Store
	mu    sync.Mutex
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Execute runs one instruction against the ledger. Instructions are
// serialized: concurrent Execute calls apply one at a time, so a claim
// racing a cancel observes exactly one winning view of the task state.
func (l *Ledger) Execute(fn func(*Txn) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	txn := &Txn{
		ledger: l,
		writes: make(map[string][]byte),
	}
	if err := fn(txn); err != nil {
		return err
	}
	return l.store.Commit(txn.writes)
}

// GetAccount reads and decodes a committed account record.
func (l *Ledger) GetAccount(addr types.Address) (types.Account, error) {
	raw, ok, err := l.store.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return types.DecodeAccount(raw)
}

// Balance returns the committed native balance of an address.
func (l *Ledger) Balance(addr types.Address) (uint64, error) {
	raw, ok, err := l.store.Get(balanceKey(addr))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return binary.LittleEndian.Uint64(raw), nil
}

// List returns every committed account of the given kind, keyed by address.
func (l *Ledger) List(kind types.Kind) (map[types.Address]types.Account, error) {
	out := make(map[types.Address]types.Account)
	err := l.store.Iterate(accountPrefix, func(key, value []byte) error {
		recKind, err := types.DecodeKind(value)
		if err != nil {
			return err
		}
		if recKind != kind {
			return nil
		}
		acc, err := types.DecodeAccount(value)
		if err != nil {
			return err
		}
		var addr types.Address
		copy(addr[:], key[len(accountPrefix):])
		out[addr] = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Compact asks the backend to reclaim space.
func (l *Ledger) Compact() error {
	return l.store.Compact()
}

func (l *Ledger) Close() error {
	return l.store.Close()
}

// Txn is the staged write set of a single instruction. Reads see the
// overlay first, then committed state; nothing is visible to other readers
// until the whole instruction commits.
type Txn struct {
	ledger *Ledger
	writes map[string][]byte
}

func (t *Txn) get(key []byte) ([]byte, bool, error) {
	if staged, ok := t.writes[string(key)]; ok {
		return staged, true, nil
	}
	return t.ledger.store.Get(key)
}

// Create stages a new account record. It fails if the address already
// holds an account of any type.
func (t *Txn) Create(addr types.Address, acc types.Account) error {
	key := accountKey(addr)
	_, exists, err := t.get(key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s at %s", ErrAccountAlreadyExists, acc.Kind(), addr)
	}
	t.writes[string(key)] = types.EncodeAccount(acc)
	return nil
}

// Read decodes the account at addr, requiring the expected kind.
func (t *Txn) Read(addr types.Address, kind types.Kind) (types.Account, error) {
	raw, ok, err := t.get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrAccountNotFound, kind, addr)
	}
	acc, err := types.DecodeAccount(raw)
	if err != nil {
		return nil, err
	}
	if acc.Kind() != kind {
		return nil, fmt.Errorf("%w: %s holds %s, want %s", ErrAccountNotFound, addr, acc.Kind(), kind)
	}
	return acc, nil
}

// Write stages an update to an existing account.
func (t *Txn) Write(addr types.Address, acc types.Account) error {
	key := accountKey(addr)
	_, exists, err := t.get(key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s %s", ErrAccountNotFound, acc.Kind(), addr)
	}
	t.writes[string(key)] = types.EncodeAccount(acc)
	return nil
}

// List returns every account of the given kind visible to this txn,
// staged writes included.
func (t *Txn) List(kind types.Kind) (map[types.Address]types.Account, error) {
	out := make(map[types.Address]types.Account)
	collect := func(key, value []byte) error {
		recKind, err := types.DecodeKind(value)
		if err != nil {
			return err
		}
		if recKind != kind {
			return nil
		}
		acc, err := types.DecodeAccount(value)
		if err != nil {
			return err
		}
		var addr types.Address
		copy(addr[:], key[len(accountPrefix):])
		out[addr] = acc
		return nil
	}

	if err := t.ledger.store.Iterate(accountPrefix, collect); err != nil {
		return nil, err
	}
	for key, value := range t.writes {
		if len(key) == 0 || key[0] != accountPrefix[0] {
			continue
		}
		if err := collect([]byte(key), value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Balance returns the effective native balance of addr inside this txn.
func (t *Txn) Balance(addr types.Address) (uint64, error) {
	raw, ok, err := t.get(balanceKey(addr))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return binary.LittleEndian.Uint64(raw), nil
}

func (t *Txn) setBalance(addr types.Address, amount uint64) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint64(raw, amount)
	t.writes[string(balanceKey(addr))] = raw
}

// Credit adds amount to the native balance of addr.
func (t *Txn) Credit(addr types.Address, amount uint64) error {
	current, err := t.Balance(addr)
	if err != nil {
		return err
	}
	t.setBalance(addr, current+amount)
	return nil
}

// Debit removes amount from the native balance of addr.
func (t *Txn) Debit(addr types.Address, amount uint64) error {
	current, err := t.Balance(addr)
	if err != nil {
		return err
	}
	if current < amount {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientFunds, addr, current, amount)
	}
	t.setBalance(addr, current-amount)
	return nil
}
