// Package accounts holds the user-facing use cases around registration, API
// keys, top-ups and the model catalogue.
package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"llm_billing_gateway/internal/apperr"
	"llm_billing_gateway/internal/billing"
	"llm_billing_gateway/internal/models"
	"llm_billing_gateway/internal/storage"
	"llm_billing_gateway/internal/utils"
)

// DefaultWelcomeBonus is credited to every newly registered user
const DefaultWelcomeBonus int64 = 1500

// Config tunes the account service
type Config struct {
	WelcomeBonus int64
}

// Service implements the account use cases
type Service struct {
	users    storage.UserStore
	prices   storage.PriceListStore
	ledger   *billing.Ledger
	issuer   models.KeyIssuer
	validate *validator.Validate
	config   Config
	logger   *utils.Logger
}

// NewService creates a new account service
func NewService(users storage.UserStore, prices storage.PriceListStore, ledger *billing.Ledger, issuer models.KeyIssuer, config Config) *Service {
	return &Service{
		users:    users,
		prices:   prices,
		ledger:   ledger,
		issuer:   issuer,
		validate: validator.New(),
		config:   config,
		logger:   utils.NewLogger("accounts"),
	}
}

// RegisterCommand registers a Telegram user
type RegisterCommand struct {
	TelegramID int64 `json:"telegram_id" validate:"required,gt=0"`
}

// RegisterResult carries the only copy of the new user's API key
type RegisterResult struct {
	UserID  uuid.UUID `json:"user_id"`
	APIKey  string    `json:"api_key"`
	Balance int64     `json:"balance"`
}

// Register creates a user with one active API key and grants the welcome bonus
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*RegisterResult, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperr.Wrap(apperr.InvalidRequest, err, "telegram_id must be a positive integer")
	}

	if _, err := s.users.FindByTelegramID(ctx, cmd.TelegramID); err == nil {
		return nil, apperr.New(apperr.UserAlreadyExists, "")
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to look up user")
	}

	account, rawKey, err := models.NewUserAccount(cmd.TelegramID, s.issuer)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to create user")
	}
	if err := s.users.Save(ctx, account); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil, apperr.New(apperr.UserAlreadyExists, "")
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to save user")
	}

	var balance int64
	if s.config.WelcomeBonus > 0 {
		balance, err = s.credit(ctx, account.ID, s.config.WelcomeBonus)
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("Registered user",
		"user_id", account.ID,
		"telegram_id", cmd.TelegramID,
		"welcome_bonus", s.config.WelcomeBonus,
	)

	return &RegisterResult{UserID: account.ID, APIKey: rawKey, Balance: balance}, nil
}

// RotateCommand replaces every active key of a user with a fresh one
type RotateCommand struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

// KeyResult carries the only copy of a new API key
type KeyResult struct {
	UserID     uuid.UUID `json:"user_id"`
	APIKey     string    `json:"api_key"`
	ActiveKeys int       `json:"active_keys"`
}

// RotateAPIKey revokes all active keys and issues one new key
func (s *Service) RotateAPIKey(ctx context.Context, cmd RotateCommand) (*KeyResult, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperr.Wrap(apperr.InvalidRequest, err, "user_id is required")
	}

	account, unlock, err := s.lockUser(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	account.RevokeAllActive()
	rawKey, err := account.GenerateAPIKey(s.issuer)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to generate API key")
	}
	if err := s.users.Save(ctx, account); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to save user")
	}

	s.logger.Info("Rotated API keys", "user_id", account.ID)
	return &KeyResult{UserID: account.ID, APIKey: rawKey, ActiveKeys: account.ActiveKeyCount()}, nil
}

// GenerateAPIKey adds one key without revoking the others
func (s *Service) GenerateAPIKey(ctx context.Context, userID uuid.UUID) (*KeyResult, error) {
	account, unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rawKey, err := account.GenerateAPIKey(s.issuer)
	if err != nil {
		if errors.Is(err, models.ErrTooManyActiveKeys) {
			return nil, apperr.Wrap(apperr.InvalidRequest, err, err.Error())
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to generate API key")
	}
	if err := s.users.Save(ctx, account); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to save user")
	}

	s.logger.Info("Generated API key", "user_id", account.ID, "active_keys", account.ActiveKeyCount())
	return &KeyResult{UserID: account.ID, APIKey: rawKey, ActiveKeys: account.ActiveKeyCount()}, nil
}

// TopUpCommand credits a user
type TopUpCommand struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Amount int64     `json:"amount" validate:"gt=0"`
}

// TopUp records a completed top-up and returns the new balance
func (s *Service) TopUp(ctx context.Context, cmd TopUpCommand) (*BalanceResult, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperr.Wrap(apperr.InvalidRequest, err, "amount must be a positive integer")
	}

	balance, err := s.credit(ctx, cmd.UserID, cmd.Amount)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Topped up user", "user_id", cmd.UserID, "amount", cmd.Amount, "balance", balance)
	return &BalanceResult{UserID: cmd.UserID, Balance: balance, Locked: balance < 0}, nil
}

// BalanceResult is a user's balance as seen by the active balance mode
type BalanceResult struct {
	UserID  uuid.UUID `json:"user_id"`
	Balance int64     `json:"balance"`
	Locked  bool      `json:"locked"`
}

// Balance returns the user's current balance
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (*BalanceResult, error) {
	account, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.Balance(ctx, account)
	if err != nil {
		return nil, err
	}
	return &BalanceResult{UserID: account.ID, Balance: balance, Locked: account.Locked}, nil
}

// Transactions returns the user's log, newest last
func (s *Service) Transactions(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error) {
	account, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ledger.Transactions(ctx, account)
}

// ModelPricing is the human-readable price of a model
type ModelPricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// ModelInfo is one OpenAI-style model entry
type ModelInfo struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	OwnedBy string       `json:"owned_by"`
	Pricing ModelPricing `json:"pricing"`
}

// ModelList is the OpenAI-style model list
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// ListModels lists the actively priced models. No active price list yields an empty list.
func (s *Service) ListModels(ctx context.Context) (*ModelList, error) {
	list := &ModelList{Object: "list", Data: []ModelInfo{}}

	priceList, err := s.prices.FindActive(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNoActivePriceList) {
			return list, nil
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to load price list")
	}

	created := priceList.CreatedAt().Unix()
	for _, entry := range priceList.ActivePrices() {
		list.Data = append(list.Data, ModelInfo{
			ID:      entry.ModelName,
			Object:  "model",
			Created: created,
			OwnedBy: ownerOf(entry.ModelName),
			Pricing: ModelPricing{
				Prompt:     formatPrice(entry.InputPricePer1M),
				Completion: formatPrice(entry.OutputPricePer1M),
			},
		})
	}
	return list, nil
}

// PublishPriceList validates entries and makes them the active price list
func (s *Service) PublishPriceList(ctx context.Context, entries []models.PriceEntry) (*models.PriceList, error) {
	priceList, err := models.NewPriceList(entries)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidRequest, err, err.Error())
	}
	if err := s.prices.Save(ctx, priceList); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to save price list")
	}

	s.logger.Info("Published price list",
		"price_list_id", priceList.ID(),
		"entries", len(entries),
		"active", len(priceList.ActivePrices()),
	)
	return priceList, nil
}

func (s *Service) findUser(ctx context.Context, userID uuid.UUID) (*models.UserAccount, error) {
	account, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apperr.New(apperr.UserNotFound, "")
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to load user")
	}
	return account, nil
}

// lockUser takes the user's ledger lock and returns the account as stored
// once the lock is held. Every read-modify-save of an account goes through it.
func (s *Service) lockUser(ctx context.Context, userID uuid.UUID) (*models.UserAccount, func(), error) {
	account, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	unlock, err := s.ledger.Lock(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	account, err = s.findUser(ctx, userID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return account, unlock, nil
}

// credit appends a completed top-up under the user's ledger lock
func (s *Service) credit(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	account, unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	tx, err := models.NewTopUp(account.ID, amount, models.TransactionCompleted)
	if err != nil {
		return 0, apperr.Wrap(apperr.InvalidRequest, err, err.Error())
	}

	writeCtx := context.WithoutCancel(ctx)
	if err := s.ledger.Append(writeCtx, tx); err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "failed to record top-up")
	}

	balance, err := s.ledger.Apply(writeCtx, account, tx)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "failed to apply top-up")
	}
	return balance, nil
}

func ownerOf(modelName string) string {
	owner, _, _ := strings.Cut(modelName, "/")
	if owner == "" {
		return "unknown"
	}
	return owner
}

func formatPrice(creditsPer1M int64) string {
	return decimal.NewFromInt(creditsPer1M).StringFixed(2) + " Credits/1M tokens"
}

