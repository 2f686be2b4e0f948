package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"modelrt/pkg/types"
)

const previewRunes = 100

// analysisTemplates holds the prompt used per analysis kind; %s is the content.
var analysisTemplates = map[types.AnalysisKind]string{
	types.AnalysisSummary:        "summarize the following text in a few sentences :\n%s\nsummary :",
	types.AnalysisKeywords:       "list the main keywords of the following text :\n%s\nkeywords :",
	types.AnalysisSentiment:      "is the sentiment of the following text positive , negative or neutral ?\n%s\nsentiment :",
	types.AnalysisClassification: "classify the following text into a category :\n%s\ncategory :",
}

// analysisOptions are the decode settings per kind.
var analysisOptions = map[types.AnalysisKind]types.GenerateOptions{
	types.AnalysisSummary:        {MaxTokens: 96, Temperature: 0.7},
	types.AnalysisKeywords:       {MaxTokens: 32, Temperature: 0.5},
	types.AnalysisSentiment:      {MaxTokens: 8, Temperature: 0.3},
	types.AnalysisClassification: {MaxTokens: 12, Temperature: 0.3},
}

// invalidKindError rejects an unknown analysis kind.
type invalidKindError struct{ kind types.AnalysisKind }

func (e invalidKindError) Error() string { return fmt.Sprintf("unknown analysis kind %q", string(e.kind)) }

// IsInvalidKind reports whether err rejects the analysis kind.
func IsInvalidKind(err error) bool {
	_, ok := err.(invalidKindError)
	return ok
}

// AnalysisKinds returns the supported kinds in a stable order.
func AnalysisKinds() []types.AnalysisKind {
	return []types.AnalysisKind{types.AnalysisSummary, types.AnalysisKeywords, types.AnalysisSentiment, types.AnalysisClassification}
}

// AnalyzeDocument builds the prompt for kind and delegates to GenerateText.
// Generation failures surface in band in Results[kind].
func (s *Service) AnalyzeDocument(ctx context.Context, id, content string, kind types.AnalysisKind) (types.AnalysisResult, error) {
	tmpl, ok := analysisTemplates[kind]
	if !ok {
		return types.AnalysisResult{}, invalidKindError{kind: kind}
	}
	id = s.resolveID(id)
	if desc, ok := s.mgr.ModelInfo(id); ok && lacksCapability(desc, kind) {
		s.log.Warn().Str("event", "analysis_capability_missing").Str("model", id).
			Str("kind", string(kind)).Strs("capabilities", desc.Capabilities).
			Msg("service: model does not advertise analysis kind")
	}
	start := time.Now()
	text := s.GenerateText(ctx, id, fmt.Sprintf(tmpl, content), analysisOptions[kind])
	return types.AnalysisResult{
		Type:           kind,
		ContentPreview: preview(content, previewRunes),
		Results:        map[string]string{string(kind): text},
		ProcessingTime: time.Since(start).Milliseconds(),
		ModelUsed:      id,
	}, nil
}

// lacksCapability is true only for descriptors that list capabilities and
// leave kind out; an empty list advertises nothing either way.
func lacksCapability(desc types.ModelDescriptor, kind types.AnalysisKind) bool {
	return len(desc.Capabilities) > 0 && !desc.HasCapability(string(kind))
}

// preview truncates s to n runes, appending "..." when cut.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
