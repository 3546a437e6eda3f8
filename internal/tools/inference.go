package tools

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/scrumbot/internal/ner"
)

// maxBatch bounds the number of texts one extract_fields call may carry.
const maxBatch = 64

// ExtractInput defines the input schema for the extract_fields tool.
type ExtractInput struct {
	Text  string   `json:"text,omitempty" jsonschema:"A single standup message"`
	Texts []string `json:"texts,omitempty" jsonschema:"Several standup messages, processed independently"`
}

// ExtractItem is the result for one text.
type ExtractItem struct {
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
	Spans  []ner.Span        `json:"spans,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// NewExtractHandler creates the extract_fields tool handler.
func NewExtractHandler(deps *Dependencies) mcp.ToolHandlerFor[ExtractInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ExtractInput) (*mcp.CallToolResult, any, error) {
		if deps == nil || deps.Extractor == nil {
			return notConfigured("Field extractor"), nil, nil
		}

		texts := input.Texts
		if input.Text != "" {
			texts = append([]string{input.Text}, texts...)
		}
		if len(texts) == 0 {
			return ErrorResult("No text given", "Provide text or texts"), nil, nil
		}
		if len(texts) > maxBatch {
			return ErrorResult("Too many texts", "Send at most 64 texts per call"), nil, nil
		}

		results := deps.Extractor.ExtractBatch(ctx, texts)
		items := make([]ExtractItem, len(results))
		failed := 0
		for i, r := range results {
			items[i] = ExtractItem{Text: texts[i]}
			if r.Err != nil {
				failed++
				items[i].Error = r.Err.Error()
				continue
			}
			items[i].Fields = ner.FieldNames(r.Spans)
			items[i].Spans = r.Spans
		}
		deps.logger().Info("extract_fields completed", "texts", len(texts), "failed", failed)

		return JSONResult(items), nil, nil
	}
}

// ClassifyInput defines the input schema for the classify_intent tool.
type ClassifyInput struct {
	Text string `json:"text" jsonschema:"required,The message to classify"`
}

// NewClassifyHandler creates the classify_intent tool handler.
func NewClassifyHandler(deps *Dependencies) mcp.ToolHandlerFor[ClassifyInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ClassifyInput) (*mcp.CallToolResult, any, error) {
		if deps == nil || deps.Classifier == nil {
			return notConfigured("Intent classifier"), nil, nil
		}
		if strings.TrimSpace(input.Text) == "" {
			return ErrorResult("Text cannot be empty", "Provide a message"), nil, nil
		}

		pred, err := deps.Classifier.Classify(ctx, input.Text)
		if err != nil {
			deps.logger().Error("classify failed", "error", err)
			return serviceError("Classify", err), nil, nil
		}
		return JSONResult(pred), nil, nil
	}
}
