// Package config loads the unitctl world file: substrate limits, logging,
// the data directory, the RPC endpoint, and which units to deploy with what
// initial storage.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/simerrors"
	"github.com/vaporyorg/util-contracts/units"
	"github.com/vaporyorg/util-contracts/vm"
)

// KindScript deploys the JavaScript unit named by Unit.Script.
const KindScript = "script"

type Config struct {
	DataDir      string
	LogLevel     string
	LogJSON      bool
	LogModules   string
	CacheSize    int
	RPCAddr      string
	OTLPEndpoint string
	From         common.Address
	VM           vm.Config
	Units        []Unit
}

// Unit is one deployment.
type Unit struct {
	Address common.Address
	Kind    string
	Script  string
	// Storage is written when the unit's store is empty at startup.
	Storage map[common.Hash]common.Hash
}

// Default units, deployed when the world file names none.
var (
	DefaultFixture = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	DefaultLibrary = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	DefaultRelay   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	DefaultView    = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

func Default() *Config {
	return &Config{
		LogLevel:  "info",
		CacheSize: 4096,
		RPCAddr:   "127.0.0.1:8646",
		From:      common.HexToAddress("0x00000000000000000000000000000000000a11ce"),
		VM:        vm.DefaultConfig(),
		Units: []Unit{
			{Address: DefaultFixture, Kind: units.KindFixture},
			{Address: DefaultLibrary, Kind: units.KindLibrary},
			{Address: DefaultRelay, Kind: units.KindRelay},
			{Address: DefaultView, Kind: units.KindView},
		},
	}
}

// world.toml key mapping.
type fileConfig struct {
	DataDir      string     `toml:"datadir"`
	LogLevel     string     `toml:"log_level"`
	LogJSON      bool       `toml:"log_json"`
	LogModules   string     `toml:"log_modules"`
	CacheSize    int        `toml:"cache_size"`
	GasLimit     uint64     `toml:"gas_limit"`
	MaxDepth     int        `toml:"max_depth"`
	RPCAddr      string     `toml:"rpc_addr"`
	OTLPEndpoint string     `toml:"otlp_endpoint"`
	From         string     `toml:"from"`
	Units        []fileUnit `toml:"unit"`
}

type fileUnit struct {
	Address string            `toml:"address"`
	Kind    string            `toml:"kind"`
	Script  string            `toml:"script"`
	Storage map[string]string `toml:"storage"`
}

// Load reads path over the defaults. Relative datadir and script paths are
// resolved against the directory of path.
func Load(path string) (*Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %v: %w", path, err, simerrors.ErrConfig)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load config %s: unknown keys %v: %w", path, undecoded, simerrors.ErrConfig)
	}
	return fromFile(raw, meta, filepath.Dir(path))
}

// Parse is Load for an in-memory document; relative paths stay relative.
func Parse(doc string) (*Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(doc, &raw)
	if err != nil {
		return nil, fmt.Errorf("parse config: %v: %w", err, simerrors.ErrConfig)
	}
	return fromFile(raw, meta, "")
}

func fromFile(raw fileConfig, meta toml.MetaData, dir string) (*Config, error) {
	cfg := Default()
	if meta.IsDefined("datadir") {
		cfg.DataDir = resolve(dir, strings.TrimSpace(raw.DataDir))
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_json") {
		cfg.LogJSON = raw.LogJSON
	}
	if meta.IsDefined("log_modules") {
		cfg.LogModules = strings.TrimSpace(raw.LogModules)
	}
	if meta.IsDefined("cache_size") {
		cfg.CacheSize = raw.CacheSize
	}
	if meta.IsDefined("gas_limit") {
		cfg.VM.GasLimit = raw.GasLimit
	}
	if meta.IsDefined("max_depth") {
		cfg.VM.MaxDepth = raw.MaxDepth
	}
	if meta.IsDefined("rpc_addr") {
		cfg.RPCAddr = strings.TrimSpace(raw.RPCAddr)
	}
	if meta.IsDefined("otlp_endpoint") {
		cfg.OTLPEndpoint = strings.TrimSpace(raw.OTLPEndpoint)
	}
	if meta.IsDefined("from") {
		addr, err := common.ParseAddress(strings.TrimSpace(raw.From))
		if err != nil {
			return nil, fmt.Errorf("from: %v: %w", err, simerrors.ErrConfig)
		}
		cfg.From = addr
	}

	if meta.IsDefined("unit") {
		cfg.Units = nil
	}
	for i, fu := range raw.Units {
		u, err := fu.toUnit(dir)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", i, err)
		}
		cfg.Units = append(cfg.Units, u)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (fu fileUnit) toUnit(dir string) (Unit, error) {
	addr, err := common.ParseAddress(strings.TrimSpace(fu.Address))
	if err != nil {
		return Unit{}, fmt.Errorf("address: %v: %w", err, simerrors.ErrConfig)
	}
	u := Unit{Address: addr, Kind: strings.TrimSpace(fu.Kind)}
	if fu.Script != "" {
		u.Script = resolve(dir, strings.TrimSpace(fu.Script))
	}
	if len(fu.Storage) > 0 {
		u.Storage = make(map[common.Hash]common.Hash, len(fu.Storage))
		for k, v := range fu.Storage {
			slot, err := common.ParseWord(k)
			if err != nil {
				return Unit{}, fmt.Errorf("storage slot: %v: %w", err, simerrors.ErrConfig)
			}
			if _, ok := u.Storage[slot]; ok {
				return Unit{}, fmt.Errorf("storage slot %s given twice: %w", slot.Hex(), simerrors.ErrConfig)
			}
			word, err := common.ParseWord(v)
			if err != nil {
				return Unit{}, fmt.Errorf("storage value at %s: %v: %w", k, err, simerrors.ErrConfig)
			}
			u.Storage[slot] = word
		}
	}
	return u, nil
}

func resolve(dir, p string) string {
	if p == "" || dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Validate checks limits and unit deployments.
func (c *Config) Validate() error {
	if c.VM.GasLimit == 0 {
		return fmt.Errorf("gas_limit must be positive: %w", simerrors.ErrConfig)
	}
	if c.VM.MaxDepth < 0 {
		return fmt.Errorf("max_depth %d is negative: %w", c.VM.MaxDepth, simerrors.ErrConfig)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive: %w", simerrors.ErrConfig)
	}
	seen := make(map[common.Address]bool, len(c.Units))
	for _, u := range c.Units {
		if seen[u.Address] {
			return fmt.Errorf("unit %s deployed twice: %w", u.Address.Hex(), simerrors.ErrConfig)
		}
		seen[u.Address] = true
		switch {
		case u.Kind == KindScript:
			if u.Script == "" {
				return fmt.Errorf("script unit %s has no script: %w", u.Address.Hex(), simerrors.ErrConfig)
			}
		case u.Script != "":
			return fmt.Errorf("unit %s of kind %q has a script: %w", u.Address.Hex(), u.Kind, simerrors.ErrConfig)
		default:
			if _, err := units.Build(u.Kind); err != nil {
				return fmt.Errorf("unit %s: %v: %w", u.Address.Hex(), err, simerrors.ErrConfig)
			}
		}
	}
	return nil
}
