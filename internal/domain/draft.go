package domain

// ============================================================
// Collection email drafts
// ============================================================

// DraftRequest is the body of POST /ar/draft.
type DraftRequest struct {
	CustomerName string  `json:"customer_name"`
	AmountDue    float64 `json:"amount_due"`
	DaysOverdue  int     `json:"days_overdue"`
	Segment      string  `json:"segment"`
}

// DraftResponse is the structured email returned by the text-generation provider.
type DraftResponse struct {
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	Tone          string `json:"tone"`
	ToneRationale string `json:"tone_rationale"`
}

// BatchDraftRequest is the body of POST /ar/drafts.
type BatchDraftRequest struct {
	Requests []DraftRequest `json:"requests"`
}

// BatchDraftResult is the outcome for one entry of a batch, in request order.
type BatchDraftResult struct {
	Index int            `json:"index"`
	Draft *DraftResponse `json:"draft,omitempty"`
	Error string         `json:"error,omitempty"`
}

// BatchDraftResponse is the body returned by POST /ar/drafts.
type BatchDraftResponse struct {
	Results   []BatchDraftResult `json:"results"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// ============================================================
// Text generation capability
// ============================================================

// GenerationRequest is what the draft service hands to a text-generation provider.
type GenerationRequest struct {
	System    string
	Prompt    string
	JSONMode  bool
	MaxTokens int
}

// GenerationResult is the raw provider reply.
type GenerationResult struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// TokenUsage tracks LLM token consumption for cost monitoring.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
