package units

import (
	"fmt"

	"github.com/vaporyorg/util-contracts/accessible"
	"github.com/vaporyorg/util-contracts/layout"
	"github.com/vaporyorg/util-contracts/vm"
	"golang.org/x/exp/slices"
)

const (
	KindFixture = "fixture"
	KindLibrary = "library"
	KindRelay   = "relay"
	KindView    = "view"
)

var builders = map[string]func() (*vm.Contract, error){
	KindFixture: NewFixture,
	KindLibrary: NewLibrary,
	KindRelay:   NewRelay,
	KindView:    accessible.NewView,
}

// Layouts maps a unit kind to the layout of its store.
var Layouts = map[string]*layout.Layout{
	KindFixture: FixtureLayout,
}

// Build returns a fresh unit of the named kind.
func Build(kind string) (*vm.Contract, error) {
	b, ok := builders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown unit kind %q (have %v)", kind, Kinds())
	}
	return b()
}

// Kinds lists the built-in unit kinds.
func Kinds() []string {
	out := make([]string, 0, len(builders))
	for k := range builders {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
