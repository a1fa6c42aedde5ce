// Package llm extracts entities and relationships with an OpenAI-compatible chat model.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	domgraph "github.com/kailas-cloud/vecgraph/internal/domain/graph"
)

const (
	// maxAttempts bounds re-asking the model after malformed JSON.
	maxAttempts = 3
	// maxInputRunes caps the text sent per request.
	maxInputRunes = 12000
	// defaultConfidence is used when the model omits a confidence.
	defaultConfidence = 0.5
)

// ErrMalformedResponse signals the model never returned parseable JSON.
var ErrMalformedResponse = errors.New("malformed model response")

const entitySystemPrompt = `You extract named entities from text.
Return only JSON: {"entities":[{"type":"PERSON|ORG|LOCATION|PRODUCT|EVENT|CONCEPT","text":"canonical name","confidence":0.0-1.0}]}.
Use the most complete form of each name. List every entity once. Return {"entities":[]} when there are none.`

const relationshipSystemPrompt = `You extract relationships between given entities from text.
Return only JSON: {"relationships":[{"source":"entity id","type":"UPPER_SNAKE_CASE","target":"entity id"}]}.
Prefer WORKS_AT, LOCATED_IN, FOUNDED, ACQUIRED, PART_OF; use RELATED_TO when no specific type fits.
Only use the entity ids listed by the user. Return {"relationships":[]} when there are none.`

// Config holds the chat model settings.
type Config struct {
	BaseURL string
	Token   string
	Model   string
}

// Extractor implements extraction.Extractor using a chat model in JSON mode.
type Extractor struct {
	model  llms.Model
	logger *zap.Logger
}

type entityItem struct {
	Type       string   `json:"type"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

type entityAnalysis struct {
	Entities []entityItem `json:"entities"`
}

type relationshipItem struct {
	Source string `json:"source"`
	Type   string `json:"type"`
	Target string `json:"target"`
}

type relationshipAnalysis struct {
	Relationships []relationshipItem `json:"relationships"`
}

// New creates an extractor backed by an OpenAI-compatible server.
func New(cfg Config, logger *zap.Logger) (*Extractor, error) {
	token := cfg.Token
	if token == "" {
		// local servers that do not authenticate still need a token
		token = "none"
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return NewWithModel(client, logger), nil
}

// NewWithModel creates an extractor around any langchaingo model.
func NewWithModel(model llms.Model, logger *zap.Logger) *Extractor {
	return &Extractor{model: model, logger: logger}
}

// ExtractEntities asks the model for entities. Items with an empty name or
// unusable type are dropped.
func (e *Extractor) ExtractEntities(ctx context.Context, text string) ([]domgraph.Entity, error) {
	var out entityAnalysis
	if err := e.generate(ctx, entitySystemPrompt, clip(text), &out); err != nil {
		return nil, err
	}

	entities := make([]domgraph.Entity, 0, len(out.Entities))
	seen := make(map[string]struct{}, len(out.Entities))
	for _, it := range out.Entities {
		ent := domgraph.Entity{
			Type:       domgraph.NormalizeType(domgraph.EntityType(it.Type)),
			Text:       strings.TrimSpace(it.Text),
			Confidence: confidence(it.Confidence),
		}
		if !ent.Valid() || ent.Type == domgraph.TypeDocument {
			continue
		}
		if _, dup := seen[ent.ID()]; dup {
			continue
		}
		seen[ent.ID()] = struct{}{}
		entities = append(entities, ent)
	}

	e.logger.Debug("Extracted entities", zap.Int("returned", len(out.Entities)), zap.Int("kept", len(entities)))
	return entities, nil
}

// ExtractRelationships asks the model for relationships among entities.
// Endpoints may be given as ids or names; unresolved ones are dropped.
func (e *Extractor) ExtractRelationships(
	ctx context.Context, text string, entities []domgraph.Entity,
) ([]domgraph.Relationship, error) {
	if len(entities) < 2 {
		return nil, nil
	}

	lookup := make(map[string]string, len(entities)*2)
	var b strings.Builder
	b.WriteString("Entities:\n")
	for _, ent := range entities {
		id := ent.ID()
		lookup[strings.ToLower(id)] = id
		lookup[strings.ToLower(strings.TrimSpace(ent.Text))] = id
		fmt.Fprintf(&b, "- %s (%s: %s)\n", id, domgraph.NormalizeType(ent.Type), ent.Text)
	}
	b.WriteString("\nText:\n")
	b.WriteString(clip(text))

	var out relationshipAnalysis
	if err := e.generate(ctx, relationshipSystemPrompt, b.String(), &out); err != nil {
		return nil, err
	}

	rels := make([]domgraph.Relationship, 0, len(out.Relationships))
	seen := make(map[string]struct{}, len(out.Relationships))
	for _, it := range out.Relationships {
		src, okSrc := lookup[strings.ToLower(strings.TrimSpace(it.Source))]
		tgt, okTgt := lookup[strings.ToLower(strings.TrimSpace(it.Target))]
		typ := domgraph.NormalizeRelType(it.Type)
		if !okSrc || !okTgt || src == tgt || typ == "" {
			continue
		}
		rel := domgraph.Relationship{
			SourceID: src,
			TargetID: tgt,
			Type:     typ,
			Metadata: map[string]string{"extractor": "llm"},
		}
		if _, dup := seen[rel.Key()]; dup {
			continue
		}
		seen[rel.Key()] = struct{}{}
		rels = append(rels, rel)
	}
	return rels, nil
}

// generate runs one JSON-mode completion, re-asking on malformed output.
// Transport errors are returned immediately.
func (e *Extractor) generate(ctx context.Context, system, human string, out any) error {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, human),
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := e.model.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			return fmt.Errorf("generate content: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil
		}

		raw := stripFences(resp.Choices[0].Content)
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			lastErr = err
			e.logger.Warn("Malformed model response",
				zap.Int("attempt", attempt),
				zap.String("response", raw),
				zap.Error(err),
			)
			continue
		}
		return nil
	}
	return fmt.Errorf("after %d attempts: %v: %w", maxAttempts, lastErr, ErrMalformedResponse)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxInputRunes {
		return s
	}
	return string(r[:maxInputRunes])
}

func confidence(c *float64) float64 {
	switch {
	case c == nil:
		return defaultConfidence
	case *c < 0:
		return 0
	case *c > 1:
		return 1
	}
	return *c
}
