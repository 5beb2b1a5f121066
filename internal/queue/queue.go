// Package queue holds work the gateway could not finish inline so an
// operator can reconcile it later. Two backends are available:
//
//  1. Memory: no persistence, lost on restart. Suitable for development.
//  2. Redis: a hash per queue, shared by every gateway process.
package queue

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DeadLetterQueue defines the interface for handling failed items
type DeadLetterQueue interface {
	// Add records a failed item with the reason and the error that caused it
	Add(ctx context.Context, reason string, payload any, cause error) (string, error)

	// List returns items oldest first, at most maxItems when maxItems > 0
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove deletes an item once it has been handled
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem represents an item in the dead letter queue
type DeadLetterItem struct {
	ID        string          `json:"id"`
	Reason    string          `json:"reason"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func newDeadLetterItem(reason string, payload any, cause error) (DeadLetterItem, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return DeadLetterItem{}, err
	}

	item := DeadLetterItem{
		ID:        uuid.NewString(),
		Reason:    reason,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}
	if cause != nil {
		item.Error = cause.Error()
	}
	return item, nil
}

func sortAndTrim(items []DeadLetterItem, maxItems int) []DeadLetterItem {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}
