package accessible_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaporyorg/util-contracts/accessible"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/layout"
	"github.com/vaporyorg/util-contracts/simerrors"
	"github.com/vaporyorg/util-contracts/state"
	"github.com/vaporyorg/util-contracts/storage"
	"github.com/vaporyorg/util-contracts/units"
	"github.com/vaporyorg/util-contracts/vm"
)

var (
	alice   = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	fixture = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	library = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	relay   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	view    = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	empty   = common.HexToAddress("0x00000000000000000000000000000000000000ee")

	slotFoo = common.Uint64ToHash(0)
	slotBaz = common.Uint64ToHash(2)
)

type world struct {
	host *vm.Host
	fix  *vm.Contract
	lib  *vm.Contract
	rel  *vm.Contract
	view *vm.Contract
	in   *accessible.Inspector
}

func newWorld(t *testing.T, cfg vm.Config) *world {
	t.Helper()
	w := &world{host: vm.NewHost(state.New(storage.NewMemoryBackend()), cfg)}
	var err error
	w.fix, err = units.NewFixture()
	require.NoError(t, err)
	w.lib, err = units.NewLibrary()
	require.NoError(t, err)
	w.rel, err = units.NewRelay()
	require.NoError(t, err)
	w.view, err = accessible.NewView()
	require.NoError(t, err)
	require.NoError(t, w.host.Deploy(fixture, w.fix))
	require.NoError(t, w.host.Deploy(library, w.lib))
	require.NoError(t, w.host.Deploy(relay, w.rel))
	require.NoError(t, w.host.Deploy(view, w.view))
	w.in = accessible.NewInspector(w.host, alice)
	return w
}

func (w *world) execute(t *testing.T, to common.Address, c *vm.Contract, method string, args ...interface{}) *vm.Result {
	t.Helper()
	input, err := c.Pack(method, args...)
	require.NoError(t, err)
	res, err := w.host.Execute(context.Background(), vm.Message{From: alice, To: to, Input: input})
	require.NoError(t, err)
	return res
}

func (w *world) mustExecute(t *testing.T, to common.Address, c *vm.Contract, method string, args ...interface{}) []byte {
	t.Helper()
	res := w.execute(t, to, c, method, args...)
	require.True(t, res.Success, "%s: %s", method, res.Outcome)
	return res.Data
}

func (w *world) words(t *testing.T, start common.Hash, n uint64) []common.Hash {
	t.Helper()
	words, err := w.in.Words(context.Background(), fixture, start, n)
	require.NoError(t, err)
	return words
}

func (w *world) libCall(t *testing.T, method string, args ...interface{}) []byte {
	t.Helper()
	input, err := w.lib.Pack(method, args...)
	require.NoError(t, err)
	return input
}

func word(v uint64) common.Hash { return common.Uint64ToHash(v) }

func TestReadScalar(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	w.mustExecute(t, fixture, w.fix, "setFoo", big.NewInt(42))

	raw, err := w.in.Read(context.Background(), fixture, slotFoo, 1)
	require.NoError(t, err)
	assert.Equal(t, word(42).Bytes(), raw)
}

func TestReadArray(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	w.mustExecute(t, fixture, w.fix, "setBaz", []*big.Int{big.NewInt(42), big.NewInt(1337)})

	assert.Equal(t, []common.Hash{word(2)}, w.words(t, slotBaz, 1))
	assert.Equal(t, []common.Hash{word(42), word(1337)}, w.words(t, common.Keccak256(slotBaz.Bytes()), 2))
}

func TestReadIsLayoutAgnostic(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	w.mustExecute(t, fixture, w.fix, "setFoo", big.NewInt(7))
	w.mustExecute(t, fixture, w.fix, "setFoobar", big.NewInt(8), big.NewInt(9))

	// one read spanning written and unwritten slots
	assert.Equal(t, []common.Hash{word(7), {}, {}, {}, word(8), word(9), {}}, w.words(t, slotFoo, 7))

	raw, err := w.in.Read(context.Background(), fixture, slotFoo, 0)
	require.NoError(t, err)
	assert.Empty(t, raw)

	// slot indices wrap around the top of the address space
	top := common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	assert.Equal(t, []common.Hash{{}, word(7)}, w.words(t, top, 2))
}

func TestReadOtherUnitsStore(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	other := common.HexToAddress("0x00000000000000000000000000000000000000f2")
	require.NoError(t, w.host.Deploy(other, w.fix))
	w.mustExecute(t, fixture, w.fix, "setFoo", big.NewInt(1))
	w.mustExecute(t, other, w.fix, "setFoo", big.NewInt(2))

	raw, err := w.in.Read(context.Background(), other, slotFoo, 1)
	require.NoError(t, err)
	assert.Equal(t, word(2).Bytes(), raw)
}

func TestReadOutOfGas(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	_, err := w.in.Read(context.Background(), fixture, slotFoo, 1<<40)
	require.Error(t, err)
	assert.ErrorIs(t, err, simerrors.ErrOutOfGas)
}

func TestLayoutRoundTrip(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	ctx := context.Background()
	l := units.FixtureLayout

	w.mustExecute(t, fixture, w.fix, "setFoo", big.NewInt(42))
	w.mustExecute(t, fixture, w.fix, "setBar", big.NewInt(1234))
	w.mustExecute(t, fixture, w.fix, "setBam", uint64(77))
	w.mustExecute(t, fixture, w.fix, "setBaz", []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)})
	w.mustExecute(t, fixture, w.fix, "setQuxKeyValue", big.NewInt(5), big.NewInt(55))
	w.mustExecute(t, fixture, w.fix, "setFoobar", big.NewInt(10), big.NewInt(20))
	// overwriting bar must not touch bam in the same slot
	w.mustExecute(t, fixture, w.fix, "setBar", big.NewInt(4321))

	r := w.in.Reader(ctx, fixture)
	cases := []struct {
		path string
		keys []common.Hash
		want uint64
	}{
		{"foo", nil, 42},
		{"bar", nil, 4321},
		{"bam", nil, 77},
		{"baz", nil, 3},
		{"baz", []common.Hash{word(2)}, 3},
		{"qux", []common.Hash{word(5)}, 55},
		{"qux", []common.Hash{word(6)}, 0},
		{"foobar.foo", nil, 10},
		{"foobar.bar", nil, 20},
	}
	for _, c := range cases {
		v, err := l.ReadUint(r, c.path, c.keys...)
		require.NoError(t, err, c.path)
		assert.Equal(t, c.want, v.Uint64(), c.path)
	}

	elems, err := l.ReadArray(r, "baz")
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{word(1), word(2), word(3)}, elems)

	raw, err := w.in.ReadField(ctx, fixture, l, "foobar")
	require.NoError(t, err)
	assert.Equal(t, common.WordsToBytes([]common.Hash{word(10), word(20)}), raw)

	// shrinking the array clears the dropped elements
	w.mustExecute(t, fixture, w.fix, "setBaz", []*big.Int{big.NewInt(9)})
	assert.Equal(t, []common.Hash{word(9), {}, {}}, w.words(t, layout.DataSlot(slotBaz), 3))
}

func TestSimulateDoesNotPersist(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	w.mustExecute(t, fixture, w.fix, "setFoo", big.NewInt(42))

	// a committing invocation: the borrowed write is observable in the
	// return value only
	ret := w.mustExecute(t, fixture, w.fix, "simulate", library, w.libCall(t, "setAndGetFoo", big.NewInt(1337)))
	data, err := accessible.UnpackBytes(ret)
	require.NoError(t, err)
	outs, err := w.lib.Unpack("setAndGetFoo", data)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1337), outs[0])

	assert.Equal(t, []common.Hash{word(42)}, w.words(t, slotFoo, 1))
}

func TestSimulateMatchesDelegate(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	w.mustExecute(t, fixture, w.fix, "setFoo", big.NewInt(3))
	payload := w.libCall(t, "setAndGetFoo", big.NewInt(4))

	res, err := w.in.Simulate(context.Background(), fixture, library, payload)
	require.NoError(t, err)
	require.True(t, res.Success)
	simulated := res.Data

	ret := w.mustExecute(t, fixture, w.fix, "delegate", library, payload)
	direct, err := accessible.UnpackBytes(ret)
	require.NoError(t, err)

	assert.Equal(t, direct, simulated)
	// the non-simulated entry point commits
	assert.Equal(t, []common.Hash{word(4)}, w.words(t, slotFoo, 1))
}

func TestSimulateFailureReasonVerbatim(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	cases := []struct {
		name    string
		payload []byte
		want    []byte
	}{
		{"message", w.libCall(t, "doRevertWithReason", "Foo"), vm.EncodeRevertMessage("Foo")},
		{"empty", w.libCall(t, "doRevert"), nil},
		// a reason carrying envelope bytes must not be unwrapped again
		{"embedded-envelope", w.libCall(t, "doRevertWithReason", string(accessible.EncodeEnvelope(true, []byte("x")))), nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			direct := w.execute(t, fixture, w.fix, "delegate", library, c.payload)
			require.False(t, direct.Success)

			sim := w.execute(t, fixture, w.fix, "simulate", library, c.payload)
			require.False(t, sim.Success)
			assert.Equal(t, direct.Data, sim.Data, "byte-for-byte")
			if c.want != nil {
				assert.Equal(t, c.want, sim.Data)
			}
			assert.NotContains(t, string(sim.Data), "simulate")
		})
	}
}

func TestSimulateThroughRelay(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	w.mustExecute(t, fixture, w.fix, "setFoo", big.NewInt(1))

	res := w.execute(t, relay, w.rel, "simulateThrough", fixture, library, w.libCall(t, "doRevertWithReason", "Foo"))
	require.False(t, res.Success)
	assert.Equal(t, vm.EncodeRevertMessage("Foo"), res.Data)
	msg, ok := vm.DecodeRevertMessage(res.Data)
	require.True(t, ok)
	assert.Equal(t, "Foo", msg)

	ret := w.mustExecute(t, relay, w.rel, "simulateThrough", fixture, library, w.libCall(t, "setAndGetFoo", big.NewInt(2)))
	data, err := accessible.UnpackBytes(ret)
	require.NoError(t, err)
	assert.Equal(t, word(2).Bytes(), data)
	assert.Equal(t, []common.Hash{word(1)}, w.words(t, slotFoo, 1))
}

func TestSimulateFromReadOnlyContext(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	payload := w.libCall(t, "setAndGetFoo", big.NewInt(7))

	ret := w.mustExecute(t, view, w.view, "viewSimulate", fixture, library, payload)
	data, err := accessible.UnpackBytes(ret)
	require.NoError(t, err)
	assert.Equal(t, word(7).Bytes(), data)

	failed := w.execute(t, view, w.view, "viewSimulate", fixture, library, w.libCall(t, "doRevertWithReason", "Foo"))
	require.False(t, failed.Success)
	assert.Equal(t, vm.EncodeRevertMessage("Foo"), failed.Data)

	res := w.execute(t, view, w.view, "viewDelegate", fixture, library, payload)
	require.False(t, res.Success)
	assert.Empty(t, res.Data)
	var protected bool
	res.Trace.Walk(func(f *vm.TraceFrame) {
		if f.Kind == vm.StaticCall && f.Err != nil {
			protected = protected || assert.ErrorIs(t, f.Err, simerrors.ErrWriteProtection)
		}
	})
	assert.True(t, protected)

	assert.Equal(t, []common.Hash{{}}, w.words(t, slotFoo, 1))
}

func TestQueryContext(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	ctx := context.Background()
	payload := w.libCall(t, "setAndGetFoo", big.NewInt(7))

	res, err := w.in.Simulate(ctx, fixture, library, payload)
	require.NoError(t, err)
	assert.True(t, res.Success)

	input, err := accessible.PackDelegate(library, payload)
	require.NoError(t, err)
	res, err = w.host.Query(ctx, vm.Message{From: alice, To: fixture, Input: input})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, simerrors.ErrWriteProtection)

	// a read-only borrowed execution that does not write passes both ways
	res, err = w.host.Query(ctx, vm.Message{From: alice, To: fixture, Input: mustPackDelegate(t, library, w.libCall(t, "getFoo"))})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func mustPackDelegate(t *testing.T, target common.Address, payload []byte) []byte {
	input, err := accessible.PackDelegate(target, payload)
	require.NoError(t, err)
	return input
}

func TestSimulateNoCodeTarget(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	res, err := w.in.Simulate(context.Background(), fixture, empty, []byte{0xde, 0xad})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Empty(t, res.Data)
}

func TestSimulateEmptyPayloadUsesFallback(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	res, err := w.in.Simulate(context.Background(), fixture, library, nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	// borrowed code runs as the fixture
	assert.Equal(t, common.BytesToHash(fixture.Bytes()).Bytes(), res.Data)
}

func TestSimulateAndRevertAlwaysFails(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	res := w.execute(t, fixture, w.fix, "simulateAndRevert", library, w.libCall(t, "setAndGetFoo", big.NewInt(5)))
	require.False(t, res.Success)

	ok, data, err := accessible.DecodeEnvelope(res.Data)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, word(5).Bytes(), data)
	assert.Equal(t, []common.Hash{{}}, w.words(t, slotFoo, 1))
}

func TestSimulateExhaustion(t *testing.T) {
	t.Run("gas", func(t *testing.T) {
		w := newWorld(t, vm.DefaultConfig())
		input, err := accessible.PackSimulate(library, w.libCall(t, "setAndGetFoo", big.NewInt(5)))
		require.NoError(t, err)
		res, err := w.host.Execute(context.Background(), vm.Message{From: alice, To: fixture, Input: input, Gas: 5_000})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Empty(t, res.Data)
	})

	t.Run("depth", func(t *testing.T) {
		cfg := vm.DefaultConfig()
		cfg.MaxDepth = 0
		w := newWorld(t, cfg)
		res := w.execute(t, fixture, w.fix, "simulate", library, w.libCall(t, "getFoo"))
		assert.False(t, res.Success)
		assert.Empty(t, res.Data)
		require.Len(t, res.Trace.Children, 1)
		assert.ErrorIs(t, res.Trace.Children[0].Err, simerrors.ErrDepthExceeded)
	})
}

func TestPreviewReportsWrites(t *testing.T) {
	w := newWorld(t, vm.DefaultConfig())
	w.mustExecute(t, fixture, w.fix, "setFoo", big.NewInt(42))

	sim, err := w.in.Preview(context.Background(), fixture, library, w.libCall(t, "setAndGetFoo", big.NewInt(9)))
	require.NoError(t, err)
	require.True(t, sim.Success)
	require.Len(t, sim.Changes, 1)
	assert.Equal(t, fixture, sim.Changes[0].Unit)
	assert.Equal(t, slotFoo, sim.Changes[0].Slot)
	assert.Equal(t, word(42), sim.Changes[0].Before)
	assert.Equal(t, word(9), sim.Changes[0].After)

	assert.Equal(t, []common.Hash{word(42)}, w.words(t, slotFoo, 1))
}
