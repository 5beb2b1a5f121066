package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"llm_billing_gateway/internal/apperr"
	"llm_billing_gateway/internal/metrics"
	"llm_billing_gateway/internal/models"
	"llm_billing_gateway/internal/providers"
	"llm_billing_gateway/internal/ratelimit"
	"llm_billing_gateway/internal/storage"
	"llm_billing_gateway/internal/utils"
)

// PipelineDeps are the collaborators of a Pipeline
type PipelineDeps struct {
	Users     storage.UserStore
	Prices    storage.PriceListStore
	Quota     ratelimit.QuotaTracker
	Provider  providers.Provider
	Issuer    models.KeyIssuer
	Ledger    *Ledger
	Reconcile *Reconciler
	Metrics   metrics.Recorder
}

// PipelineConfig tunes a Pipeline
type PipelineConfig struct {
	// ProviderTimeout bounds one upstream call. Zero means no bound beyond the request context.
	ProviderTimeout time.Duration
}

// ProxyRequest is one metered chat completion
type ProxyRequest struct {
	APIKey    string
	Payload   map[string]any
	RequestID string
}

// ProxyResult is what the caller gets back after a billed completion
type ProxyResult struct {
	StatusCode    int
	Body          []byte
	Usage         models.Usage
	Cost          int64
	Balance       int64
	Quota         ratelimit.Decision
	TransactionID uuid.UUID
}

// Pipeline authorizes, rate-limits, forwards and bills chat completions
type Pipeline struct {
	users     storage.UserStore
	prices    storage.PriceListStore
	quota     ratelimit.QuotaTracker
	provider  providers.Provider
	issuer    models.KeyIssuer
	ledger    *Ledger
	reconcile *Reconciler
	metrics   metrics.Recorder
	costs     CostCalculator
	config    PipelineConfig
	logger    *utils.Logger
}

// NewPipeline creates a new billing pipeline
func NewPipeline(deps PipelineDeps, config PipelineConfig) *Pipeline {
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Pipeline{
		users:     deps.Users,
		prices:    deps.Prices,
		quota:     deps.Quota,
		provider:  deps.Provider,
		issuer:    deps.Issuer,
		ledger:    deps.Ledger,
		reconcile: deps.Reconcile,
		metrics:   recorder,
		config:    config,
		logger:    utils.NewLogger("pipeline"),
	}
}

// ProxyChatCompletion runs one request through authorization, quota, balance
// check, provider call and ledger write, in that order. Nothing is written to
// the ledger unless the provider answered.
func (p *Pipeline) ProxyChatCompletion(ctx context.Context, req ProxyRequest) (result *ProxyResult, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = apperr.KindOf(err).Code()
		}
		p.metrics.PipelineOutcome(outcome)
		p.logger.Debug("Pipeline finished",
			"request_id", req.RequestID,
			"outcome", outcome,
			"duration", time.Since(start),
		)
	}()

	account, err := p.authorize(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}

	model, err := validatePayload(req.Payload)
	if err != nil {
		return nil, err
	}

	decision, err := p.quota.CheckAndIncrement(ctx, account.ID.String())
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "quota check failed")
	}
	if !decision.Allowed {
		return nil, apperr.New(apperr.RateLimitExceeded, "").WithDetails(map[string]any{
			"limit":     decision.Limit,
			"remaining": decision.Remaining,
			"reset_at":  decision.ResetAt.UTC().Format(time.RFC3339),
		})
	}

	unlock, err := p.ledger.Lock(ctx, account)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Reload under the lock so cached-mode balances reflect every earlier append.
	account, err = p.users.FindByID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apperr.New(apperr.InvalidAPIKey, "")
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to load user")
	}

	balance, err := p.ledger.Balance(ctx, account)
	if err != nil {
		return nil, err
	}
	if balance <= 0 {
		return nil, apperr.New(apperr.InsufficientFunds, "").WithDetails(map[string]any{
			"balance": balance,
		})
	}

	resp, err := p.callProvider(ctx, req.Payload)
	if err != nil {
		p.logger.Warn("Provider call failed",
			"request_id", req.RequestID,
			"user_id", account.ID,
			"provider", p.provider.Name(),
			"model", model,
			"error", err,
		)
		providerErr := apperr.Wrap(apperr.ProviderError, err, "")
		var status *providers.StatusError
		if errors.As(err, &status) {
			providerErr = providerErr.WithDetails(map[string]any{"upstream_status": status.StatusCode})
		}
		return nil, providerErr
	}
	p.metrics.ProviderLatency(p.provider.Name(), resp.Latency)

	usage := resp.Usage
	if usage.ModelName == "" {
		usage.ModelName = model
	}

	// The provider has already been paid for; a caller hang-up must not lose the entry.
	writeCtx := context.WithoutCancel(ctx)

	item := ReconciliationItem{
		UserID:    account.ID,
		RequestID: req.RequestID,
		Usage:     usage,
	}

	cost, priced, err := p.price(writeCtx, usage)
	if err != nil {
		p.logger.Error("Failed to price usage",
			"request_id", req.RequestID,
			"user_id", account.ID,
			"model", usage.ModelName,
			"error", err,
		)
		p.reconcile.Flag(writeCtx, ReasonPriceListUnavailable, item, err)
		return nil, apperr.Wrap(apperr.Internal, err, "failed to price usage")
	}
	item.Cost = cost

	tx, err := models.NewUsageTransaction(account.ID, usage, cost, models.TransactionCompleted)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to build usage transaction")
	}

	if err := p.ledger.Append(writeCtx, tx); err != nil {
		p.logger.Error("Failed to record usage",
			"request_id", req.RequestID,
			"user_id", account.ID,
			"cost", cost,
			"error", err,
		)
		p.reconcile.Flag(writeCtx, ReasonLedgerWriteFailed, item, err)
		return nil, apperr.Wrap(apperr.Internal, err, "failed to record usage")
	}
	item.TransactionID = &tx.ID

	if !priced {
		p.reconcile.Flag(writeCtx, ReasonUnpricedModel, item, nil)
	}
	p.metrics.CreditsDebited(usage.ModelName, -cost)

	newBalance, err := p.ledger.Apply(writeCtx, account, tx)
	if err != nil {
		p.logger.Error("Failed to apply usage to balance",
			"request_id", req.RequestID,
			"user_id", account.ID,
			"transaction_id", tx.ID,
			"error", err,
		)
		p.reconcile.Flag(writeCtx, ReasonBalanceApplyFailed, item, err)
		newBalance = balance + cost
	}

	p.logger.Info("Billed completion",
		"request_id", req.RequestID,
		"user_id", account.ID,
		"model", usage.ModelName,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
		"cost", cost,
		"balance", newBalance,
	)

	return &ProxyResult{
		StatusCode:    resp.StatusCode,
		Body:          resp.Body,
		Usage:         usage,
		Cost:          cost,
		Balance:       newBalance,
		Quota:         decision,
		TransactionID: tx.ID,
	}, nil
}

// Authorize resolves an API key to its account without touching the quota
func (p *Pipeline) Authorize(ctx context.Context, rawKey string) (*models.UserAccount, error) {
	return p.authorize(ctx, rawKey)
}

func (p *Pipeline) authorize(ctx context.Context, rawKey string) (*models.UserAccount, error) {
	if rawKey == "" {
		return nil, apperr.New(apperr.InvalidAPIKey, "")
	}

	hashed := p.issuer.Hash(rawKey)
	account, err := p.users.FindByAPIKeyHash(ctx, hashed)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apperr.New(apperr.InvalidAPIKey, "")
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to look up API key")
	}
	if !account.HasActiveKeyHash(hashed) {
		return nil, apperr.New(apperr.InvalidAPIKey, "")
	}
	return account, nil
}

func (p *Pipeline) callProvider(ctx context.Context, payload map[string]any) (*providers.ChatResponse, error) {
	if p.config.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ProviderTimeout)
		defer cancel()
	}
	return p.provider.Chat(ctx, payload)
}

// price returns the cost of usage against the active price list. A model the
// list does not name prices at zero with priced=false; a list that cannot be
// loaded, or was never published, is an error.
func (p *Pipeline) price(ctx context.Context, usage models.Usage) (int64, bool, error) {
	priceList, err := p.prices.FindActive(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load active price list: %w", err)
	}
	cost, priced := p.costs.Calculate(usage, priceList)
	return cost, priced, nil
}

func validatePayload(payload map[string]any) (string, error) {
	if payload == nil {
		return "", apperr.New(apperr.InvalidRequest, "payload is required")
	}
	model, err := providers.ModelFromPayload(payload)
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidRequest, err, err.Error())
	}
	if stream, _ := payload["stream"].(bool); stream {
		return "", apperr.Wrap(apperr.InvalidRequest, providers.ErrStreamingUnsupported, providers.ErrStreamingUnsupported.Error())
	}
	return model, nil
}
