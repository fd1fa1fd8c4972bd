package valuation

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quantumauth-io/nexuslend-client/internal/assets"
	"github.com/quantumauth-io/nexuslend-client/internal/mirror"
)

// Source is the part of the mirror the engine observes.
type Source interface {
	Snapshot() mirror.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// Engine keeps the Report of the latest mirror snapshot.
type Engine struct {
	source Source
	assets []assets.Asset
	user   common.Address

	mu     sync.RWMutex
	latest Report
}

func NewEngine(source Source, list []assets.Asset, user common.Address) *Engine {
	e := &Engine{source: source, assets: list, user: user}
	e.Recompute()
	return e
}

// Run recomputes on every mirror change until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	changes, cancel := e.source.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			e.Recompute()
		}
	}
}

// Recompute derives a fresh Report from the current snapshot.
func (e *Engine) Recompute() Report {
	r := Compute(e.source.Snapshot(), e.assets, e.user)

	e.mu.Lock()
	defer e.mu.Unlock()
	if r.Version >= e.latest.Version {
		e.latest = r
	}
	return e.latest
}

// Report returns the latest Report.
func (e *Engine) Report() Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}
