package models

// Usage is the token count a provider reported for one call.
type Usage struct {
	PromptTokens     uint64 `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens uint64 `json:"completion_tokens" db:"completion_tokens"`
	ModelName        string `json:"model" db:"model_name"`
}

// NewUsage creates a new Usage
func NewUsage(promptTokens, completionTokens uint64, modelName string) (Usage, error) {
	if modelName == "" {
		return Usage{}, ErrEmptyModelName
	}
	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		ModelName:        modelName,
	}, nil
}

// TotalTokens returns prompt plus completion tokens
func (u Usage) TotalTokens() uint64 {
	return u.PromptTokens + u.CompletionTokens
}
