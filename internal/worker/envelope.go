package worker

import (
	"github.com/goccy/go-json"

	"modelrt/pkg/types"
)

// Method names a runtime operation carried by a Call.
type Method string

const (
	MethodInitialize      Method = "initialize"
	MethodLoadModel       Method = "load_model"
	MethodUnloadModel     Method = "unload_model"
	MethodGenerate        Method = "generate"
	MethodGenerateText    Method = "generate_text"
	MethodAnalyzeDocument Method = "analyze_document"
	MethodLoadedModels    Method = "loaded_models"
	MethodModelInfo       Method = "model_info"
	MethodListModels      Method = "list_models"
	MethodStatus          Method = "status"
	MethodCleanup         Method = "cleanup"
)

// Call is one queued operation.
type Call struct {
	ID         string          `json:"id"`
	Method     Method          `json:"method"`
	Params     json.RawMessage `json:"params,omitempty"`
	EnqueuedAt int64           `json:"enqueued_at_unix_ms"`
}

// Reply answers the Call with the same ID. Code is set when Error is.
type Reply struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

type loadParams struct {
	ID       string `json:"id"`
	Location string `json:"location,omitempty"`
}

type modelParams struct {
	ID string `json:"id"`
}

type generateParams struct {
	ID      string                `json:"id"`
	Prompt  string                `json:"prompt"`
	Options types.GenerateOptions `json:"options"`
}

type analyzeParams struct {
	ID      string             `json:"id"`
	Content string             `json:"content"`
	Kind    types.AnalysisKind `json:"kind"`
}
