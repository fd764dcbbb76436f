package ledger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenc-io/agenc-registry/pkg/ledger"
	"github.com/agenc-io/agenc-registry/pkg/types"
)

func setupLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	return ledger.New(ledger.NewMemStore())
}

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func TestCreateAndRead(t *testing.T) {
	l := setupLedger(t)
	escrowAddr := addr(1)

	err := l.Execute(func(txn *ledger.Txn) error {
		return txn.Create(escrowAddr, &types.Escrow{Task: addr(2), Balance: 500, Bump: 255})
	})
	require.NoError(t, err)

	acc, err := l.GetAccount(escrowAddr)
	require.NoError(t, err)
	escrow := acc.(*types.Escrow)
	assert.Equal(t, uint64(500), escrow.Balance)
}

func TestCreateDuplicateFails(t *testing.T) {
	l := setupLedger(t)
	a := addr(1)

	err := l.Execute(func(txn *ledger.Txn) error {
		return txn.Create(a, &types.Escrow{Balance: 1})
	})
	require.NoError(t, err)

	err = l.Execute(func(txn *ledger.Txn) error {
		return txn.Create(a, &types.Escrow{Balance: 2})
	})
	assert.ErrorIs(t, err, ledger.ErrAccountAlreadyExists)
}

func TestReadKindMismatch(t *testing.T) {
	l := setupLedger(t)
	a := addr(1)

	err := l.Execute(func(txn *ledger.Txn) error {
		return txn.Create(a, &types.Escrow{Balance: 1})
	})
	require.NoError(t, err)

	err = l.Execute(func(txn *ledger.Txn) error {
		_, readErr := txn.Read(a, types.KindTask)
		return readErr
	})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestWriteMissingAccountFails(t *testing.T) {
	l := setupLedger(t)

	err := l.Execute(func(txn *ledger.Txn) error {
		return txn.Write(addr(1), &types.Escrow{Balance: 1})
	})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestExecuteRollsBackOnError(t *testing.T) {
	l := setupLedger(t)
	boom := errors.New("boom")

	err := l.Execute(func(txn *ledger.Txn) error {
		if err := txn.Create(addr(1), &types.Escrow{Balance: 100}); err != nil {
			return err
		}
		if err := txn.Credit(addr(2), 999); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// Nothing from the failed instruction is visible.
	_, err = l.GetAccount(addr(1))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	balance, err := l.Balance(addr(2))
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestTxnOverlayVisibleWithinInstruction(t *testing.T) {
	l := setupLedger(t)
	a := addr(1)

	err := l.Execute(func(txn *ledger.Txn) error {
		if err := txn.Create(a, &types.Escrow{Balance: 100}); err != nil {
			return err
		}
		// Staged create must be readable before commit.
		acc, err := txn.Read(a, types.KindEscrow)
		if err != nil {
			return err
		}
		escrow := acc.(*types.Escrow)
		escrow.Balance = 50
		return txn.Write(a, escrow)
	})
	require.NoError(t, err)

	acc, err := l.GetAccount(a)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), acc.(*types.Escrow).Balance)
}

func TestBalances(t *testing.T) {
	l := setupLedger(t)
	wallet := addr(5)

	err := l.Execute(func(txn *ledger.Txn) error {
		return txn.Credit(wallet, 1000)
	})
	require.NoError(t, err)

	err = l.Execute(func(txn *ledger.Txn) error {
		return txn.Debit(wallet, 400)
	})
	require.NoError(t, err)

	balance, err := l.Balance(wallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), balance)

	err = l.Execute(func(txn *ledger.Txn) error {
		return txn.Debit(wallet, 601)
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// The failed debit changed nothing.
	balance, err = l.Balance(wallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), balance)
}

func TestListByKind(t *testing.T) {
	l := setupLedger(t)

	err := l.Execute(func(txn *ledger.Txn) error {
		if err := txn.Create(addr(1), &types.Escrow{Balance: 1}); err != nil {
			return err
		}
		if err := txn.Create(addr(2), &types.Escrow{Balance: 2}); err != nil {
			return err
		}
		return txn.Create(addr(3), &types.TaskClaim{Task: addr(1), Agent: addr(9)})
	})
	require.NoError(t, err)

	escrows, err := l.List(types.KindEscrow)
	require.NoError(t, err)
	assert.Len(t, escrows, 2)

	claims, err := l.List(types.KindClaim)
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestTxnListSeesStagedWrites(t *testing.T) {
	l := setupLedger(t)

	err := l.Execute(func(txn *ledger.Txn) error {
		return txn.Create(addr(1), &types.TaskClaim{Task: addr(7), Agent: addr(8)})
	})
	require.NoError(t, err)

	err = l.Execute(func(txn *ledger.Txn) error {
		if err := txn.Create(addr(2), &types.TaskClaim{Task: addr(7), Agent: addr(9)}); err != nil {
			return err
		}
		claims, err := txn.List(types.KindClaim)
		if err != nil {
			return err
		}
		assert.Len(t, claims, 2)
		return nil
	})
	require.NoError(t, err)
}
