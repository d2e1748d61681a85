package rpc

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaporyorg/util-contracts/accessible"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/config"
	"github.com/vaporyorg/util-contracts/units"
	"github.com/vaporyorg/util-contracts/vm"
)

const testWorld = `
[[unit]]
address = "0x00000000000000000000000000000000000000f1"
kind = "fixture"
[unit.storage]
"0" = "42"

[[unit]]
address = "0x00000000000000000000000000000000000000b1"
kind = "library"
`

var (
	fixture = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	library = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func setup(t *testing.T) (*Conn, func()) {
	t.Helper()
	cfg, err := config.Parse(testWorld)
	require.NoError(t, err)
	w, err := config.Open(cfg)
	require.NoError(t, err)

	srv := NewServer(context.Background(), w)
	ts := httptest.NewServer(srv.Handler())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"))
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		ts.Close()
		srv.Close()
		w.Close()
	}
}

func assertJSON(t *testing.T, want string, got interface{}) {
	t.Helper()
	raw, err := json.Marshal(got)
	require.NoError(t, err)
	opts := jsondiff.DefaultConsoleOptions()
	diff, explain := jsondiff.Compare([]byte(want), raw, &opts)
	assert.Equal(t, jsondiff.FullMatch, diff, explain)
}

func libCall(t *testing.T, method string, args ...interface{}) []byte {
	t.Helper()
	lib, err := units.NewLibrary()
	require.NoError(t, err)
	input, err := lib.Pack(method, args...)
	require.NoError(t, err)
	return input
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestUnits(t *testing.T) {
	conn, done := setup(t)
	defer done()
	out, err := conn.Units(testCtx(t))
	require.NoError(t, err)
	assertJSON(t, `[
		{"address":"0x00000000000000000000000000000000000000f1","kind":"fixture","layout":"Fixture@v1"},
		{"address":"0x00000000000000000000000000000000000000b1","kind":"library"}
	]`, out)
}

func TestRead(t *testing.T) {
	conn, done := setup(t)
	defer done()
	out, err := conn.Read(testCtx(t), fixture, common.Hash{}, 2)
	require.NoError(t, err)
	assertJSON(t, `{
		"data":"0x000000000000000000000000000000000000000000000000000000000000002a0000000000000000000000000000000000000000000000000000000000000000",
		"words":[
			"0x000000000000000000000000000000000000000000000000000000000000002a",
			"0x0000000000000000000000000000000000000000000000000000000000000000"
		]
	}`, out)
}

func TestReadField(t *testing.T) {
	conn, done := setup(t)
	defer done()
	ctx := testCtx(t)
	out, err := conn.ReadField(ctx, fixture, "foo")
	require.NoError(t, err)
	assertJSON(t, `{
		"layout":"Fixture@v1","field":"foo",
		"slot":"0x0000000000000000000000000000000000000000000000000000000000000000",
		"value":"0x000000000000000000000000000000000000000000000000000000000000002a"
	}`, out)

	_, err = conn.ReadField(ctx, fixture, "nope")
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, CodeInvalidParams, rerr.Code)
	assert.Equal(t, "LayoutField", rerr.Name)

	_, err = conn.ReadField(ctx, library, "foo")
	require.ErrorAs(t, err, &rerr)
}

func TestSimulateAndPreview(t *testing.T) {
	conn, done := setup(t)
	defer done()
	ctx := testCtx(t)

	out, err := conn.Simulate(ctx, fixture, library, libCall(t, "setAndGetFoo", big.NewInt(7)))
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, common.Uint64ToHash(7).Bytes(), []byte(out.Data))

	out, err = conn.Simulate(ctx, fixture, library, libCall(t, "doRevertWithReason", "Foo"))
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "Foo", out.Message)
	assert.Equal(t, vm.EncodeRevertMessage("Foo"), []byte(out.Data))

	prev, err := conn.Preview(ctx, fixture, library, libCall(t, "setAndGetFoo", big.NewInt(7)))
	require.NoError(t, err)
	require.Len(t, prev.Changes, 1)
	assertJSON(t, `[{
		"slot":"0x0000000000000000000000000000000000000000000000000000000000000000",
		"before":"0x000000000000000000000000000000000000000000000000000000000000002a",
		"after":"0x0000000000000000000000000000000000000000000000000000000000000007"
	}]`, prev.Changes)

	rd, err := conn.Read(ctx, fixture, common.Hash{}, 1)
	require.NoError(t, err)
	assert.Equal(t, common.Uint64ToHash(42), rd.Words[0])
}

func TestCallQueryAndSubscribe(t *testing.T) {
	conn, done := setup(t)
	defer done()
	ctx := testCtx(t)
	require.NoError(t, conn.Subscribe(ctx))

	delegate, err := accessible.PackDelegate(library, libCall(t, "setAndGetFoo", big.NewInt(9)))
	require.NoError(t, err)

	q, err := conn.Query(ctx, fixture, delegate)
	require.NoError(t, err)
	assert.False(t, q.Success)
	assert.Equal(t, "WriteProtection", q.Error)

	c, err := conn.Execute(ctx, fixture, delegate)
	require.NoError(t, err)
	require.True(t, c.Success)

	select {
	case n := <-conn.Notifications:
		assert.Equal(t, NotifyCommitted, n.Method)
		var committed Committed
		require.NoError(t, json.Unmarshal(n.Result, &committed))
		assert.Equal(t, fixture, committed.Unit)
	case <-ctx.Done():
		t.Fatal("no commit notification")
	}

	rd, err := conn.Read(ctx, fixture, common.Hash{}, 1)
	require.NoError(t, err)
	assert.Equal(t, common.Uint64ToHash(9), rd.Words[0])
}

func TestUnknownMethod(t *testing.T) {
	conn, done := setup(t)
	defer done()
	err := conn.Call(testCtx(t), "unit_nope", nil, nil)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, CodeMethodNotFound, rerr.Code)

	err = conn.Call(testCtx(t), MethodRead, nil, nil)
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, CodeInvalidParams, rerr.Code)
}
