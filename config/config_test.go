package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/simerrors"
	"github.com/vaporyorg/util-contracts/vm"
)

const worldTOML = `
datadir = "data"
log_level = "debug"
gas_limit = 1000000
max_depth = 64
rpc_addr = "127.0.0.1:9999"

[[unit]]
address = "0x00000000000000000000000000000000000000f1"
kind = "fixture"
[unit.storage]
"0" = "42"
"0x2" = "0x2"

[[unit]]
address = "0x00000000000000000000000000000000000000b1"
kind = "library"

[[unit]]
address = "0x0000000000000000000000000000000000000051"
kind = "script"
script = "echo.js"
`

func writeWorld(t *testing.T, doc string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.js"), []byte(`function main(i) { return i }`), 0o644))
	path := filepath.Join(dir, "world.toml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, vm.DefaultConfig(), cfg.VM)
	assert.Empty(t, cfg.DataDir)
	require.Len(t, cfg.Units, 4)
	assert.Equal(t, DefaultView, cfg.Units[3].Address)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeWorld(t, worldTOML)
	cfg, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, uint64(1_000_000), cfg.VM.GasLimit)
	assert.Equal(t, 64, cfg.VM.MaxDepth)
	assert.Equal(t, vm.DefaultConfig().SstoreGas, cfg.VM.SstoreGas)
	assert.Equal(t, "127.0.0.1:9999", cfg.RPCAddr)
	assert.Equal(t, Default().From, cfg.From)

	require.Len(t, cfg.Units, 3)
	assert.Equal(t, "fixture", cfg.Units[0].Kind)
	assert.Equal(t, common.Uint64ToHash(42), cfg.Units[0].Storage[common.Uint64ToHash(0)])
	assert.Equal(t, common.Uint64ToHash(2), cfg.Units[0].Storage[common.Uint64ToHash(2)])
	assert.Equal(t, filepath.Join(dir, "echo.js"), cfg.Units[2].Script)
}

func TestLoadRejects(t *testing.T) {
	unit := "[[unit]]\naddress = \"0x00000000000000000000000000000000000000f1\"\nkind = \"fixture\"\n"
	dup := unit + unit
	cases := map[string]string{
		"unknown key":  `bogus = 1`,
		"bad address":  "[[unit]]\naddress = \"0x12\"\nkind = \"fixture\"",
		"unknown kind": "[[unit]]\naddress = \"0x00000000000000000000000000000000000000f1\"\nkind = \"nope\"",
		"no script":    "[[unit]]\naddress = \"0x00000000000000000000000000000000000000f1\"\nkind = \"script\"",
		"zero gas":     `gas_limit = 0`,
		"bad word":     "[[unit]]\naddress = \"0x00000000000000000000000000000000000000f1\"\nkind = \"fixture\"\n[unit.storage]\n\"0\" = \"-1\"",
		"duplicate":    dup,
		"same slot":    unit + "[unit.storage]\n\"1\" = \"2\"\n\"0x01\" = \"3\"",
	}
	for name, doc := range cases {
		_, err := Load(writeWorld(t, doc))
		assert.ErrorIs(t, err, simerrors.ErrConfig, name)
	}
}

func TestOpenSeedsOnce(t *testing.T) {
	path := writeWorld(t, worldTOML)
	cfg, err := Load(path)
	require.NoError(t, err)

	w, err := Open(cfg)
	require.NoError(t, err)
	fixture := cfg.Units[0].Address
	words, err := w.Inspector.Words(context.Background(), fixture, common.Hash{}, 3)
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{common.Uint64ToHash(42), {}, common.Uint64ToHash(2)}, words)

	// a write through the host survives a reopen; the seed does not
	// overwrite it
	l, err := w.Layout(fixture)
	require.NoError(t, err)
	assert.Equal(t, "Fixture@v1", l.ID())
	k, ok := w.Kind(fixture)
	require.True(t, ok)
	assert.Equal(t, "fixture", k)

	w.State.SetState(fixture, common.Hash{}, common.Uint64ToHash(7))
	require.NoError(t, w.State.Commit())
	require.NoError(t, w.Close())

	w, err = Open(cfg)
	require.NoError(t, err)
	defer w.Close()
	words, err = w.Inspector.Words(context.Background(), fixture, common.Hash{}, 1)
	require.NoError(t, err)
	assert.Equal(t, common.Uint64ToHash(7), words[0])

	_, err = w.Layout(cfg.Units[1].Address)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	cfg, err := Parse(`log_json = true`)
	require.NoError(t, err)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, Default().Units, cfg.Units)
}
