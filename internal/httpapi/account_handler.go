package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"llm_billing_gateway/internal/accounts"
	"llm_billing_gateway/internal/apperr"
	"llm_billing_gateway/internal/middleware"
	"llm_billing_gateway/internal/models"
	"llm_billing_gateway/internal/utils"
)

type topUpRequest struct {
	Amount int64 `json:"amount"`
}

type priceListRequest struct {
	Entries []models.PriceEntry `json:"entries"`
}

func (d *Dependencies) handleListModels(c *gin.Context) {
	list, err := d.Accounts.ListModels(c.Request.Context())
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// handleOwnBalance returns the balance of the API key owner
func (d *Dependencies) handleOwnBalance(c *gin.Context) {
	account, ok := middleware.GetAccount(c)
	if !ok {
		utils.RespondWithError(c, apperr.New(apperr.InvalidAPIKey, ""))
		return
	}

	balance, err := d.Accounts.Balance(c.Request.Context(), account.ID)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (d *Dependencies) handleRegister(c *gin.Context) {
	var cmd accounts.RegisterCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		utils.RespondWithError(c, bindError(err))
		return
	}

	result, err := d.Accounts.Register(c.Request.Context(), cmd)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (d *Dependencies) handleTopUp(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}

	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, bindError(err))
		return
	}

	result, err := d.Accounts.TopUp(c.Request.Context(), accounts.TopUpCommand{UserID: userID, Amount: req.Amount})
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (d *Dependencies) handleRotateKeys(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}

	result, err := d.Accounts.RotateAPIKey(c.Request.Context(), accounts.RotateCommand{UserID: userID})
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (d *Dependencies) handleGenerateKey(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}

	result, err := d.Accounts.GenerateAPIKey(c.Request.Context(), userID)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (d *Dependencies) handleUserBalance(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}

	balance, err := d.Accounts.Balance(c.Request.Context(), userID)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (d *Dependencies) handleUserTransactions(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}

	txs, err := d.Accounts.Transactions(c.Request.Context(), userID)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "transactions": txs})
}

func (d *Dependencies) handlePublishPriceList(c *gin.Context) {
	var req priceListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithError(c, bindError(err))
		return
	}

	priceList, err := d.Accounts.PublishPriceList(c.Request.Context(), req.Entries)
	if err != nil {
		utils.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         priceList.ID(),
		"created_at": priceList.CreatedAt(),
		"entries":    priceList.Entries(),
	})
}
