package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PriceEntry is the per-model price in credits per one million tokens.
type PriceEntry struct {
	ModelName        string `json:"model_name" db:"model_name"`
	InputPricePer1M  int64  `json:"input_price_per_1m" db:"input_price_per_1m"`
	OutputPricePer1M int64  `json:"output_price_per_1m" db:"output_price_per_1m"`
	IsActive         bool   `json:"is_active" db:"is_active"`
}

// Validate checks a single entry
func (e PriceEntry) Validate() error {
	if e.ModelName == "" {
		return ErrEmptyModelName
	}
	if e.InputPricePer1M < 0 || e.OutputPricePer1M < 0 {
		return fmt.Errorf("%w: %s", ErrNegativePrice, e.ModelName)
	}
	return nil
}

// PriceList is an immutable snapshot of model prices. A price change is
// published as a new snapshot.
type PriceList struct {
	id        uuid.UUID
	entries   []PriceEntry
	createdAt time.Time
}

// NewPriceList creates a new price list snapshot
func NewPriceList(entries []PriceEntry) (*PriceList, error) {
	return RestorePriceList(uuid.New(), time.Now().UTC(), entries)
}

// RestorePriceList rebuilds a stored snapshot, applying the same validation as NewPriceList
func RestorePriceList(id uuid.UUID, createdAt time.Time, entries []PriceEntry) (*PriceList, error) {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[e.ModelName]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModel, e.ModelName)
		}
		seen[e.ModelName] = struct{}{}
	}

	copied := make([]PriceEntry, len(entries))
	copy(copied, entries)

	return &PriceList{
		id:        id,
		entries:   copied,
		createdAt: createdAt,
	}, nil
}

// ID returns the snapshot id
func (p *PriceList) ID() uuid.UUID {
	return p.id
}

// CreatedAt returns when the snapshot was published
func (p *PriceList) CreatedAt() time.Time {
	return p.createdAt
}

// Entries returns a copy of all entries, active or not
func (p *PriceList) Entries() []PriceEntry {
	out := make([]PriceEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// ActivePrices returns the active entries in their original order
func (p *PriceList) ActivePrices() []PriceEntry {
	active := make([]PriceEntry, 0, len(p.entries))
	for _, e := range p.entries {
		if e.IsActive {
			active = append(active, e)
		}
	}
	return active
}

// Lookup finds the active entry for a model
func (p *PriceList) Lookup(modelName string) (PriceEntry, bool) {
	for _, e := range p.entries {
		if e.IsActive && e.ModelName == modelName {
			return e, true
		}
	}
	return PriceEntry{}, false
}
