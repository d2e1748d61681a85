package state

import (
	"fmt"

	"github.com/vaporyorg/util-contracts/log"
	"github.com/vaporyorg/util-contracts/simerrors"
)

// Savepoint marks a point the store can be rolled back to. Savepoints nest:
// rolling back or releasing an outer savepoint invalidates inner ones.
type Savepoint struct {
	revision int
	label    string
}

func (sp Savepoint) String() string {
	return fmt.Sprintf("%s#%d", sp.label, sp.revision)
}

// Begin opens a savepoint.
func (s *StateDB) Begin(label string) Savepoint {
	sp := Savepoint{revision: s.Snapshot(), label: label}
	log.Trace(log.StateMonitoring, "savepoint begin", "savepoint", sp.String(), "journal", len(s.journal))
	return sp
}

// Rollback undoes every write made since sp was opened.
func (s *StateDB) Rollback(sp Savepoint) error {
	if err := s.RevertToSnapshot(sp.revision); err != nil {
		return fmt.Errorf("rollback %s: %w", sp, err)
	}
	return nil
}

// Release keeps the writes made since sp and forgets sp.
func (s *StateDB) Release(sp Savepoint) error {
	idx := s.revisionIndex(sp.revision)
	if idx < 0 {
		return fmt.Errorf("release %s: %w", sp, simerrors.ErrSavepointUnknown)
	}
	s.validRevisions = s.validRevisions[:idx]
	return nil
}

// Changes returns the net writes made since sp was opened.
func (s *StateDB) Changes(sp Savepoint) ([]SlotChange, error) {
	return s.ChangesSince(sp.revision)
}
