package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	battlecard "github.com/battlecardhq/battlecard-go"
)

// AIService drives the backend's agent pipeline: competitive intelligence,
// content analysis, insight generation and document ingestion.
type AIService struct {
	core *battlecard.Client
}

// AgentResult is the free-form JSON document an agent returns. Its shape
// depends on the agent type.
type AgentResult map[string]any

// Process runs input through the named agent. Unknown agent types come back
// as a Validation envelope.
func (s *AIService) Process(ctx context.Context, agentType string, input map[string]any) (AgentResult, error) {
	path := fmt.Sprintf("/ai/%s/process", url.PathEscape(agentType))
	var result AgentResult
	if err := s.core.Post(ctx, path, input, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListAgents returns the agent types the backend can run.
func (s *AIService) ListAgents(ctx context.Context) ([]string, error) {
	var out struct {
		AvailableAgents []string `json:"available_agents"`
	}
	if err := s.core.Get(ctx, "/ai/agents", nil, &out); err != nil {
		return nil, err
	}
	return out.AvailableAgents, nil
}

// SearchCompetitor aggregates competitor information from the backend's
// sources. Input carries at least the competitor name plus optional context.
func (s *AIService) SearchCompetitor(ctx context.Context, input map[string]any) (AgentResult, error) {
	var result AgentResult
	if err := s.core.Post(ctx, "/ai/aggregator/search", input, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// MonitorCompetitor sets up continuous monitoring for a known competitor.
func (s *AIService) MonitorCompetitor(ctx context.Context, competitorID string) (AgentResult, error) {
	req := &battlecard.Request{
		Method: http.MethodPost,
		Path:   "/ai/aggregator/monitor",
		Query:  url.Values{"competitor_id": []string{competitorID}},
	}
	resp, err := s.core.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var result AgentResult
	if err := resp.JSON(&result); err != nil {
		return nil, err
	}
	return result, nil
}

// GenerateInsights asks the insights agent for suggestions given context,
// e.g. recent battlecard content or monitoring output.
func (s *AIService) GenerateInsights(ctx context.Context, input map[string]any) (AgentResult, error) {
	var result AgentResult
	if err := s.core.Post(ctx, "/ai/insights/generate", input, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// UploadDocument streams a source document into the content analysis
// pipeline. Metadata travels as extra multipart fields next to the file
// part. The upload is streamed, not buffered, so document size is bounded
// by the server, not client memory.
func (s *AIService) UploadDocument(ctx context.Context, fileName string, file io.Reader, metadata map[string]string) (AgentResult, error) {
	var result AgentResult
	if err := s.core.Upload(ctx, "/ai/documents/upload", "file", fileName, file, metadata, &result); err != nil {
		return nil, err
	}
	return result, nil
}
