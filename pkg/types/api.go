package types

// GenerateOptions carries optional sampling parameters. Zero values mean
// "unset" and are replaced by runtime defaults.
type GenerateOptions struct {
	// Maximum number of new tokens to generate.
	MaxTokens int `json:"max_tokens,omitempty"`
	// Sampling temperature (higher = more random). Defaults to 1.0.
	Temperature float64 `json:"temperature,omitempty"`
	// Nucleus sampling probability in (0,1].
	TopP float64 `json:"top_p,omitempty"`
	// Top-K sampling: limit candidates to top K tokens.
	TopK int `json:"top_k,omitempty"`
	// Optional stop sequences, matched against the decoded text. Decoded text
	// is lower case with tokens joined by single spaces, so a sequence such
	// as "." or "the end" can match while "\n\n" never does.
	StopSequences []string `json:"stop_sequences,omitempty"`
	// Random seed for reproducibility; 0 lets the runtime choose.
	Seed int64 `json:"seed,omitempty"`
}

// GenerateRequest is the payload of POST /generate.
type GenerateRequest struct {
	// Model identifier. If empty, the server default is used.
	Model string `json:"model,omitempty"`
	// Required prompt text.
	Prompt  string          `json:"prompt"`
	Options GenerateOptions `json:"options,omitempty"`
}

// GenerationResult is the outcome of a single generation.
type GenerationResult struct {
	Text            string `json:"text"`
	TokensGenerated int    `json:"tokens_generated"`
	ElapsedMs       int64  `json:"elapsed_ms"`
	// Why the decode loop ended: length, stop, token_limit, canceled or error.
	FinishReason string `json:"finish_reason,omitempty"`
}

// AnalysisKind selects the prompt template used by AnalyzeDocument.
type AnalysisKind string

const (
	AnalysisSummary        AnalysisKind = "summary"
	AnalysisKeywords       AnalysisKind = "keywords"
	AnalysisSentiment      AnalysisKind = "sentiment"
	AnalysisClassification AnalysisKind = "classification"
)

// AnalyzeRequest is the payload of POST /analyze.
type AnalyzeRequest struct {
	Model   string       `json:"model,omitempty"`
	Content string       `json:"content"`
	Kind    AnalysisKind `json:"kind"`
}

// AnalysisResult is returned by AnalyzeDocument.
type AnalysisResult struct {
	Type           AnalysisKind      `json:"type"`
	ContentPreview string            `json:"content_preview"`
	Results        map[string]string `json:"results"`
	// Wall time in milliseconds.
	ProcessingTime int64  `json:"processing_time"`
	ModelUsed      string `json:"model_used"`
}

// LoadRequest is the optional payload of POST /models/{id}/load.
type LoadRequest struct {
	// Overrides the descriptor artifact location when set.
	Location string `json:"location,omitempty"`
}

// BoolResponse wraps boolean RPC outcomes.
type BoolResponse struct {
	OK bool `json:"ok"`
}

// TextResponse wraps GenerateText output.
type TextResponse struct {
	Text string `json:"text"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	Models []ModelDescriptor `json:"models"`
}

// LoadedModelsResponse is returned by GET /models/loaded.
type LoadedModelsResponse struct {
	Models []string `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	Error string `json:"error"`
	// HTTP status code.
	Code int `json:"code"`
}

// SessionStatus summarizes a live session for /status.
type SessionStatus struct {
	ModelID  string `json:"model_id"`
	State    string `json:"state"`
	LoadedAt int64  `json:"loaded_at_unix"`
	LastUsed int64  `json:"last_used_unix"`
	QueueLen int    `json:"queue_len"`
	Inflight int    `json:"inflight"`
	// Maximum queued requests allowed before backpressure triggers.
	MaxQueueDepth int `json:"max_queue_depth"`
}

// ReleaseFailure records a session whose resources could not be released.
type ReleaseFailure struct {
	ModelID  string `json:"model_id"`
	Error    string `json:"error"`
	FailedAt int64  `json:"failed_at_unix"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Sessions      []SessionStatus  `json:"sessions"`
	ReleaseFailed []ReleaseFailure `json:"release_failed,omitempty"`
	// Last error observed by the manager (if any).
	LastError      string `json:"last_error,omitempty"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	ServerTimeUnix int64  `json:"server_time_unix"`
	LoadsTotal     uint64 `json:"loads_total"`
	UnloadsTotal   uint64 `json:"unloads_total"`
	// Number of loads currently in flight.
	LoadsInProgress int `json:"loads_in_progress"`
}
