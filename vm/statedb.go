package vm

import (
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/state"
)

// StateDB is the journaled persistent store the host executes against.
type StateDB interface {
	GetState(common.Address, common.Hash) (common.Hash, error)
	SetState(common.Address, common.Hash, common.Hash)
	Snapshot() int
	RevertToSnapshot(int) error
	HasWritesSince(int) bool

	Begin(label string) state.Savepoint
	Rollback(state.Savepoint) error
	Changes(state.Savepoint) ([]state.SlotChange, error)

	Commit() error
	Discard()
}

var _ StateDB = (*state.StateDB)(nil)
