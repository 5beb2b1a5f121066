package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"llm_billing_gateway/internal/apperr"
	"llm_billing_gateway/internal/queue"
	"llm_billing_gateway/internal/utils"
)

const defaultReconciliationLimit = 100

func (d *Dependencies) handleListReconciliation(c *gin.Context) {
	limit := defaultReconciliationLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.RespondWithError(c, apperr.New(apperr.InvalidRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	items, err := d.Reconciler.Pending(c.Request.Context(), limit)
	if err != nil {
		utils.RespondWithError(c, apperr.Wrap(apperr.Internal, err, "failed to list reconciliation items"))
		return
	}
	if items == nil {
		items = []queue.DeadLetterItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (d *Dependencies) handleResolveReconciliation(c *gin.Context) {
	if err := d.Reconciler.Resolve(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, queue.ErrItemNotFound) {
			utils.RespondWithError(c, apperr.Wrap(apperr.InvalidRequest, err, "reconciliation item not found"))
			return
		}
		utils.RespondWithError(c, apperr.Wrap(apperr.Internal, err, "failed to resolve reconciliation item"))
		return
	}
	c.Status(http.StatusNoContent)
}
