package billing

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"llm_billing_gateway/internal/models"
)

var (
	tokensPerPriceUnit = decimal.NewFromInt(1_000_000)
	maxCredits         = decimal.NewFromInt(math.MaxInt64)
)

// CostCalculator prices usage against a price list. Prices are credits per
// one million tokens; fractional credits are rounded up.
type CostCalculator struct{}

// Calculate returns the ledger cost of usage (<= 0) and whether the model had
// an active price. Unpriced usage costs 0.
func (CostCalculator) Calculate(usage models.Usage, priceList *models.PriceList) (int64, bool) {
	if priceList == nil {
		return 0, false
	}
	entry, ok := priceList.Lookup(usage.ModelName)
	if !ok {
		return 0, false
	}

	prompt := decimalFromUint(usage.PromptTokens).Mul(decimal.NewFromInt(entry.InputPricePer1M))
	completion := decimalFromUint(usage.CompletionTokens).Mul(decimal.NewFromInt(entry.OutputPricePer1M))

	credits, remainder := prompt.Add(completion).QuoRem(tokensPerPriceUnit, 0)
	if remainder.IsPositive() {
		credits = credits.Add(decimal.NewFromInt(1))
	}
	if credits.GreaterThan(maxCredits) {
		credits = maxCredits
	}
	return -credits.IntPart(), true
}

func decimalFromUint(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
