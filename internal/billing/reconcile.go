package billing

import (
	"context"

	"github.com/google/uuid"

	"llm_billing_gateway/internal/metrics"
	"llm_billing_gateway/internal/models"
	"llm_billing_gateway/internal/queue"
	"llm_billing_gateway/internal/utils"
)

// Reconciliation reasons
const (
	ReasonUnpricedModel        = "unpriced_model"
	ReasonPriceListUnavailable = "price_list_unavailable"
	ReasonLedgerWriteFailed    = "ledger_write_failed"
	ReasonBalanceApplyFailed   = "balance_apply_failed"
)

// ReconciliationItem is usage that needs an operator to settle it by hand
type ReconciliationItem struct {
	UserID        uuid.UUID    `json:"user_id"`
	RequestID     string       `json:"request_id,omitempty"`
	TransactionID *uuid.UUID   `json:"transaction_id,omitempty"`
	Usage         models.Usage `json:"usage"`
	Cost          int64        `json:"cost"`
}

// Reconciler files reconciliation items onto a dead letter queue
type Reconciler struct {
	dlq     queue.DeadLetterQueue
	metrics metrics.Recorder
	logger  *utils.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(dlq queue.DeadLetterQueue, recorder metrics.Recorder) *Reconciler {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Reconciler{
		dlq:     dlq,
		metrics: recorder,
		logger:  utils.NewLogger("reconcile"),
	}
}

// Flag records an item. It never fails the caller; a queue error is logged.
func (r *Reconciler) Flag(ctx context.Context, reason string, item ReconciliationItem, cause error) {
	r.metrics.Reconciliation(reason)

	id, err := r.dlq.Add(context.WithoutCancel(ctx), reason, item, cause)
	if err != nil {
		r.logger.Error("Failed to enqueue reconciliation item",
			"reason", reason,
			"user_id", item.UserID,
			"request_id", item.RequestID,
			"cost", item.Cost,
			"error", err,
		)
		return
	}

	r.logger.Warn("Flagged usage for reconciliation",
		"id", id,
		"reason", reason,
		"user_id", item.UserID,
		"model", item.Usage.ModelName,
		"cause", cause,
	)
}

// Pending lists queued items, oldest first
func (r *Reconciler) Pending(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	return r.dlq.List(ctx, maxItems)
}

// Resolve removes a settled item
func (r *Reconciler) Resolve(ctx context.Context, id string) error {
	return r.dlq.Remove(ctx, id)
}
