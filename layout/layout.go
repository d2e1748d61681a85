// Package layout describes where a unit keeps its fields in its persistent
// store. A Layout is owned by the unit's definition and versioned with it,
// so callers derive slot addresses from the descriptor instead of
// re-deriving the storage rules themselves.
//
// The rules are the usual word-addressed ones:
//
//	scalar   lives at its base slot
//	packed   several sub-word fields share one slot, least-significant first
//	array    the base slot holds the length; element i is at keccak(base)+i
//	mapping  the value for key k is at keccak(pad32(k) ++ pad32(base))
//	struct   members occupy consecutive slots from the base slot
package layout

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/simerrors"
)

type Kind int

const (
	Scalar Kind = iota
	Packed
	Array
	Mapping
	Struct
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Packed:
		return "packed"
	case Array:
		return "array"
	case Mapping:
		return "mapping"
	case Struct:
		return "struct"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for _, c := range []Kind{Scalar, Packed, Array, Mapping, Struct} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown field kind %q", b)
}

// Field is one entry of a layout. Struct members use Slot relative to the
// struct's base slot.
type Field struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Slot uint64 `json:"slot"`
	// Offset and Width are in bytes and only used by Packed fields.
	Offset int `json:"offset,omitempty"`
	Width  int `json:"width,omitempty"`
	// ElemWords is the number of words per Array element (default 1).
	ElemWords uint64  `json:"elemWords,omitempty"`
	Members   []Field `json:"members,omitempty"`
}

func ScalarField(name string, slot uint64) Field {
	return Field{Name: name, Kind: Scalar, Slot: slot}
}

func PackedField(name string, slot uint64, offset, width int) Field {
	return Field{Name: name, Kind: Packed, Slot: slot, Offset: offset, Width: width}
}

func ArrayField(name string, slot uint64) Field {
	return Field{Name: name, Kind: Array, Slot: slot, ElemWords: 1}
}

func MappingField(name string, slot uint64) Field {
	return Field{Name: name, Kind: Mapping, Slot: slot}
}

func StructField(name string, slot uint64, members ...Field) Field {
	return Field{Name: name, Kind: Struct, Slot: slot, Members: members}
}

// Words is the number of consecutive slots the field spans at its base.
func (f Field) Words() uint64 {
	if f.Kind != Struct {
		return 1
	}
	var end uint64
	for _, m := range f.Members {
		if e := m.Slot + m.Words(); e > end {
			end = e
		}
	}
	return end
}

// Extract returns the Width bytes of a packed field from its slot word.
func (f Field) Extract(word common.Hash) []byte {
	if f.Kind != Packed {
		return word.Bytes()
	}
	end := common.HashLength - f.Offset
	out := make([]byte, f.Width)
	copy(out, word[end-f.Width:end])
	return out
}

// Insert returns word with the packed field set to value (big-endian,
// truncated to Width bytes), leaving sibling bytes untouched.
func (f Field) Insert(word common.Hash, value []byte) common.Hash {
	if f.Kind != Packed {
		return common.BytesToHash(value)
	}
	end := common.HashLength - f.Offset
	for i := end - f.Width; i < end; i++ {
		word[i] = 0
	}
	if len(value) > f.Width {
		value = value[len(value)-f.Width:]
	}
	copy(word[end-len(value):end], value)
	return word
}

// Layout is a versioned set of field descriptors.
type Layout struct {
	Name    string  `json:"name"`
	Version uint32  `json:"version"`
	Fields  []Field `json:"fields"`

	index map[string]int
}

// New validates fields and builds a layout.
func New(name string, version uint32, fields ...Field) (*Layout, error) {
	l := &Layout{Name: name, Version: version, Fields: fields}
	if err := l.init(); err != nil {
		return nil, err
	}
	return l, nil
}

// MustNew is New for layouts declared as package variables.
func MustNew(name string, version uint32, fields ...Field) *Layout {
	l, err := New(name, version, fields...)
	if err != nil {
		panic(err)
	}
	return l
}

// ID identifies the layout and its version, e.g. "Fixture@v1".
func (l *Layout) ID() string {
	return fmt.Sprintf("%s@v%d", l.Name, l.Version)
}

type occupant struct {
	name   string
	packed bool
	from   int
	to     int
}

func (l *Layout) init() error {
	l.index = make(map[string]int, len(l.Fields))
	used := make(map[uint64][]occupant)
	for i, f := range l.Fields {
		if f.Name == "" || strings.Contains(f.Name, ".") {
			return fmt.Errorf("%s: field name %q: %w", l.ID(), f.Name, simerrors.ErrLayoutInvalid)
		}
		if _, dup := l.index[f.Name]; dup {
			return fmt.Errorf("%s: duplicate field %q: %w", l.ID(), f.Name, simerrors.ErrLayoutInvalid)
		}
		l.index[f.Name] = i
		if err := claim(used, f, 0, l.ID()); err != nil {
			return err
		}
	}
	return nil
}

// claim records the byte ranges f occupies and rejects overlaps.
func claim(used map[uint64][]occupant, f Field, base uint64, id string) error {
	switch f.Kind {
	case Struct:
		if len(f.Members) == 0 {
			return fmt.Errorf("%s: struct %q has no members: %w", id, f.Name, simerrors.ErrLayoutInvalid)
		}
		names := make(map[string]bool)
		for _, m := range f.Members {
			if names[m.Name] || m.Name == "" || strings.Contains(m.Name, ".") {
				return fmt.Errorf("%s: struct %q member %q: %w", id, f.Name, m.Name, simerrors.ErrLayoutInvalid)
			}
			names[m.Name] = true
			if err := claim(used, m, base+f.Slot, id); err != nil {
				return err
			}
		}
		return nil
	case Array:
		if f.ElemWords == 0 {
			return fmt.Errorf("%s: array %q has zero-word elements: %w", id, f.Name, simerrors.ErrLayoutInvalid)
		}
	}

	o := occupant{name: f.Name, from: 0, to: common.HashLength}
	if f.Kind == Packed {
		if f.Width <= 0 || f.Offset < 0 || f.Offset+f.Width > common.HashLength {
			return fmt.Errorf("%s: packed %q offset %d width %d: %w", id, f.Name, f.Offset, f.Width, simerrors.ErrLayoutInvalid)
		}
		o = occupant{name: f.Name, packed: true, from: f.Offset, to: f.Offset + f.Width}
	}
	slot := base + f.Slot
	for _, prev := range used[slot] {
		if !prev.packed || !o.packed || (o.from < prev.to && prev.from < o.to) {
			return fmt.Errorf("%s: %q overlaps %q in slot %d: %w", id, f.Name, prev.name, slot, simerrors.ErrLayoutInvalid)
		}
	}
	used[slot] = append(used[slot], o)
	return nil
}

// Resolve finds a field by path ("foobar.bar" for struct members) and
// returns it together with its absolute base slot.
func (l *Layout) Resolve(path string) (Field, common.Hash, error) {
	if l.index == nil {
		if err := l.init(); err != nil {
			return Field{}, common.Hash{}, err
		}
	}
	parts := strings.Split(path, ".")
	i, ok := l.index[parts[0]]
	if !ok {
		return Field{}, common.Hash{}, fmt.Errorf("%s: %q: %w", l.ID(), path, simerrors.ErrLayoutField)
	}
	f := l.Fields[i]
	base := f.Slot
	for _, p := range parts[1:] {
		if f.Kind != Struct {
			return Field{}, common.Hash{}, fmt.Errorf("%s: %q is a %s: %w", l.ID(), f.Name, f.Kind, simerrors.ErrLayoutKind)
		}
		found := false
		for _, m := range f.Members {
			if m.Name == p {
				base += m.Slot
				f = m
				found = true
				break
			}
		}
		if !found {
			return Field{}, common.Hash{}, fmt.Errorf("%s: %q: %w", l.ID(), path, simerrors.ErrLayoutField)
		}
	}
	return f, common.Uint64ToHash(base), nil
}

// Slot derives the slot holding path. Arrays take an optional element
// index (without one the length slot is returned); mappings take exactly
// one key; other kinds take none.
func (l *Layout) Slot(path string, keys ...common.Hash) (common.Hash, error) {
	f, base, err := l.Resolve(path)
	if err != nil {
		return common.Hash{}, err
	}
	switch f.Kind {
	case Array:
		switch len(keys) {
		case 0:
			return base, nil
		case 1:
			index := common.HashToInt(keys[0])
			return ArrayElementSlot(base, index, f.ElemWords), nil
		}
	case Mapping:
		if len(keys) == 1 {
			return MappingSlot(keys[0], base), nil
		}
	default:
		if len(keys) == 0 {
			return base, nil
		}
	}
	return common.Hash{}, fmt.Errorf("%s: %q (%s) with %d keys: %w", l.ID(), path, f.Kind, len(keys), simerrors.ErrLayoutKeys)
}

// DataSlot is where the elements of an array based at base start.
func DataSlot(base common.Hash) common.Hash {
	return common.Keccak256(base[:])
}

// ArrayElementSlot returns keccak(base) + index*elemWords, wrapping modulo
// 2^256.
func ArrayElementSlot(base common.Hash, index *uint256.Int, elemWords uint64) common.Hash {
	if elemWords == 0 {
		elemWords = 1
	}
	off := new(uint256.Int).Mul(index, uint256.NewInt(elemWords))
	return common.AddToHash(DataSlot(base), off)
}

// MappingSlot returns keccak(pad32(key) ++ pad32(base)).
func MappingSlot(key, base common.Hash) common.Hash {
	return common.Keccak256(key[:], base[:])
}
