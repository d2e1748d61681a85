package vm

// Program is the executable code of a unit. Run returns the frame's
// return data, or an error that fails the frame: a *RevertError carries
// a reason to the caller, any other error fails it with an empty reason.
type Program interface {
	Run(env *Env, input []byte) ([]byte, error)
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(env *Env, input []byte) ([]byte, error)

func (f ProgramFunc) Run(env *Env, input []byte) ([]byte, error) {
	return f(env, input)
}

// CallKind selects how a callee's code is bound to storage and identity.
type CallKind int

const (
	// Call runs the callee's code against the callee's own store.
	Call CallKind = iota
	// DelegateCall runs the callee's code against the caller's store, with
	// the caller's identity and the caller's caller as sender.
	DelegateCall
	// StaticCall is Call in a read-only context.
	StaticCall
)

func (k CallKind) String() string {
	switch k {
	case Call:
		return "CALL"
	case DelegateCall:
		return "DELEGATECALL"
	case StaticCall:
		return "STATICCALL"
	}
	return "UNKNOWN"
}
