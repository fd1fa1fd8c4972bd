package mirror

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is an immutable view of the mirror at one version.
type Snapshot struct {
	entries map[Key]Entry
	Version uint64
}

// NewSnapshot builds a snapshot from explicit entries.
func NewSnapshot(entries map[Key]Entry) Snapshot {
	cp := make(map[Key]Entry, len(entries))
	for k, e := range entries {
		cp[k] = e
	}
	return Snapshot{entries: cp}
}

func (s Snapshot) Get(key Key) Entry {
	return s.entries[key]
}

// Int returns the integer value of key and whether it is loaded. The value is
// nil when not loaded.
func (s Snapshot) Int(key Key) (*big.Int, bool) {
	e := s.entries[key]
	if !e.Loaded {
		return nil, false
	}
	return e.Int(), true
}

// Position returns the loaded position of user in asset.
func (s Snapshot) Position(user, asset common.Address) (Position, bool) {
	e := s.entries[PositionKey(user, asset)]
	if !e.Loaded {
		return Position{}, false
	}
	return e.Position(), true
}
