package config

import (
	"fmt"

	"github.com/vaporyorg/util-contracts/accessible"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/layout"
	"github.com/vaporyorg/util-contracts/log"
	"github.com/vaporyorg/util-contracts/script"
	"github.com/vaporyorg/util-contracts/state"
	"github.com/vaporyorg/util-contracts/storage"
	"github.com/vaporyorg/util-contracts/units"
	"github.com/vaporyorg/util-contracts/vm"
)

// World is a host with the configured units deployed on it.
type World struct {
	Config    *Config
	Backend   *storage.CachedBackend
	State     *state.StateDB
	Host      *vm.Host
	Inspector *accessible.Inspector

	kinds map[common.Address]string
}

// Open builds the backend, deploys every unit and seeds the stores that
// are still empty.
func Open(cfg *Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var inner storage.SlotBackend
	if cfg.DataDir == "" {
		inner = storage.NewMemoryBackend()
	} else {
		db, err := storage.NewLevelDBBackend(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		inner = db
	}
	backend, err := storage.NewCachedBackend(inner, cfg.CacheSize)
	if err != nil {
		inner.Close()
		return nil, err
	}

	w := &World{
		Config:  cfg,
		Backend: backend,
		State:   state.New(backend),
		kinds:   make(map[common.Address]string),
	}
	w.Host = vm.NewHost(w.State, cfg.VM)
	w.Inspector = accessible.NewInspector(w.Host, cfg.From)

	if err := w.deploy(); err != nil {
		backend.Close()
		return nil, err
	}
	return w, nil
}

func (w *World) deploy() error {
	seeded := 0
	for _, u := range w.Config.Units {
		var prog vm.Program
		if u.Kind == KindScript {
			p, err := script.Load(u.Script)
			if err != nil {
				return fmt.Errorf("unit %s: %w", u.Address.Hex(), err)
			}
			prog = p
		} else {
			c, err := units.Build(u.Kind)
			if err != nil {
				return fmt.Errorf("unit %s: %w", u.Address.Hex(), err)
			}
			prog = c
		}
		if err := w.Host.Deploy(u.Address, prog); err != nil {
			return err
		}
		w.kinds[u.Address] = u.Kind

		if len(u.Storage) == 0 {
			continue
		}
		existing, err := w.Backend.Slots(u.Address)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			continue
		}
		for slot, v := range u.Storage {
			w.State.SetState(u.Address, slot, v)
			seeded++
		}
	}
	if seeded > 0 {
		log.Info(log.HostMonitoring, "seeded initial storage", "slots", seeded)
	}
	return w.State.Commit()
}

// Kind returns the configured kind of unit.
func (w *World) Kind(unit common.Address) (string, bool) {
	k, ok := w.kinds[unit]
	return k, ok
}

// Layout returns the storage layout of unit, if its kind has one.
func (w *World) Layout(unit common.Address) (*layout.Layout, error) {
	k, ok := w.kinds[unit]
	if !ok {
		return nil, fmt.Errorf("%s is not a configured unit", unit.Hex())
	}
	l, ok := units.Layouts[k]
	if !ok {
		return nil, fmt.Errorf("unit %s of kind %q has no storage layout", unit.Hex(), k)
	}
	return l, nil
}

func (w *World) Close() error {
	hits, misses := w.Backend.Stats()
	log.Debug(log.StateMonitoring, "slot cache", "hits", hits, "misses", misses)
	return w.Backend.Close()
}
