package vm

import (
	"fmt"

	"github.com/vaporyorg/util-contracts/common"
	"github.com/xlab/treeprint"
)

// TraceFrame records one call frame and its nested frames.
type TraceFrame struct {
	Kind     CallKind
	Caller   common.Address
	Self     common.Address
	Code     common.Address
	Depth    int
	Static   bool
	Input    []byte
	Output   []byte
	Success  bool
	Err      error
	GasIn    uint64
	GasUsed  uint64
	Children []*TraceFrame
}

const traceBytes = 36

func abbrev(b []byte) string {
	if len(b) <= traceBytes {
		return fmt.Sprintf("0x%x", b)
	}
	return fmt.Sprintf("0x%x..(%d bytes)", b[:traceBytes], len(b))
}

func (f *TraceFrame) label() string {
	status := "ok"
	if !f.Success {
		status = "FAIL"
		if f.Err != nil {
			if _, isRevert := f.Err.(*RevertError); !isRevert {
				status = "FAIL " + f.Err.Error()
			}
		}
	}
	target := common.ShortAddr(f.Code)
	if f.Self != f.Code {
		target = fmt.Sprintf("%s as %s", common.ShortAddr(f.Code), common.ShortAddr(f.Self))
	}
	ro := ""
	if f.Static {
		ro = " ro"
	}
	return fmt.Sprintf("%s %s%s in=%s out=%s gas=%d [%s]",
		f.Kind, target, ro, abbrev(f.Input), abbrev(f.Output), f.GasUsed, status)
}

// Tree renders the frame and its descendants.
func (f *TraceFrame) Tree() treeprint.Tree {
	tree := treeprint.NewWithRoot(f.label())
	f.addChildren(tree)
	return tree
}

func (f *TraceFrame) addChildren(branch treeprint.Tree) {
	for _, child := range f.Children {
		child.addChildren(branch.AddBranch(child.label()))
	}
}

func (f *TraceFrame) String() string {
	return f.Tree().String()
}

// Walk visits f and every descendant depth-first.
func (f *TraceFrame) Walk(fn func(*TraceFrame)) {
	fn(f)
	for _, c := range f.Children {
		c.Walk(fn)
	}
}
