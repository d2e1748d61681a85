package state

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vaporyorg/util-contracts/common"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
	"golang.org/x/exp/slices"
)

// DumpEntry is one non-zero slot.
type DumpEntry struct {
	Slot  common.Hash `json:"slot"`
	Value common.Hash `json:"value"`
}

// Dump is the current (committed + uncommitted) store of one unit, ordered
// by slot.
type Dump struct {
	Unit  common.Address `json:"unit"`
	Slots []DumpEntry    `json:"slots"`
}

// Dump returns the non-zero slots of unit.
func (s *StateDB) Dump(unit common.Address) (*Dump, error) {
	committed, err := s.backend.Slots(unit)
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", unit.Hex(), err)
	}
	for id, v := range s.dirty {
		if id.unit == unit {
			committed[id.slot] = v
		}
	}
	d := &Dump{Unit: unit, Slots: make([]DumpEntry, 0, len(committed))}
	for slot, v := range committed {
		if v == (common.Hash{}) {
			continue
		}
		d.Slots = append(d.Slots, DumpEntry{Slot: slot, Value: v})
	}
	slices.SortFunc(d.Slots, func(a, b DumpEntry) int {
		return bytes.Compare(a.Slot[:], b.Slot[:])
	})
	return d, nil
}

// asObject keys the dump by slot so the JSON diff aligns entries by slot
// rather than by array position.
func (d *Dump) asObject() map[string]interface{} {
	slots := make(map[string]interface{}, len(d.Slots))
	for _, e := range d.Slots {
		slots[e.Slot.Hex()] = e.Value.Hex()
	}
	return map[string]interface{}{
		"unit":  d.Unit.Hex(),
		"slots": slots,
	}
}

// DiffDumps renders the difference between two dumps. modified is false
// when they are identical, in which case the rendering is empty.
func DiffDumps(before, after *Dump) (rendered string, modified bool, err error) {
	left, err := json.Marshal(before.asObject())
	if err != nil {
		return "", false, err
	}
	right, err := json.Marshal(after.asObject())
	if err != nil {
		return "", false, err
	}
	delta, err := gojsondiff.New().Compare(left, right)
	if err != nil {
		return "", false, fmt.Errorf("diff dumps: %w", err)
	}
	if !delta.Modified() {
		return "", false, nil
	}
	var leftObj interface{}
	if err := json.Unmarshal(left, &leftObj); err != nil {
		return "", true, err
	}
	asciiFmt := formatter.NewAsciiFormatter(leftObj, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       false,
	})
	rendered, err = asciiFmt.Format(delta)
	if err != nil {
		return "", true, fmt.Errorf("format diff: %w", err)
	}
	return rendered, true, nil
}

// Apply returns a copy of d with the changes to d.Unit applied.
func (d *Dump) Apply(changes []SlotChange) *Dump {
	values := make(map[common.Hash]common.Hash, len(d.Slots))
	for _, e := range d.Slots {
		values[e.Slot] = e.Value
	}
	for _, c := range changes {
		if c.Unit == d.Unit {
			values[c.Slot] = c.After
		}
	}
	out := &Dump{Unit: d.Unit, Slots: make([]DumpEntry, 0, len(values))}
	for slot, v := range values {
		if v != (common.Hash{}) {
			out.Slots = append(out.Slots, DumpEntry{Slot: slot, Value: v})
		}
	}
	slices.SortFunc(out.Slots, func(a, b DumpEntry) int {
		return bytes.Compare(a.Slot[:], b.Slot[:])
	})
	return out
}
