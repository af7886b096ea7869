// Package generator answers prompts with a Gemini model on Vertex AI.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// VertexConfig identifies the model. Credentials come from Application Default Credentials.
type VertexConfig struct {
	Project  string
	Location string
	Model    string
	Logger   *slog.Logger
}

// Vertex implements relay.Generator.
type Vertex struct {
	models contentGenerator
	model  string
	logger *slog.Logger
}

// NewVertex creates a Vertex AI client for cfg.Model.
func NewVertex(ctx context.Context, cfg VertexConfig) (*Vertex, error) {
	if cfg.Project == "" || cfg.Location == "" || cfg.Model == "" {
		return nil, errors.New("vertex ai: project, location and model are required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("vertex ai: create client: %w", err)
	}

	return newVertex(client.Models, cfg.Model, cfg.Logger), nil
}

func newVertex(models contentGenerator, model string, logger *slog.Logger) *Vertex {
	return &Vertex{models: models, model: model, logger: logger}
}

// Generate sends prompt as a single user turn and returns the model's text.
func (v *Vertex) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := v.models.GenerateContent(ctx, v.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("vertex ai %s: %w", v.model, err)
	}
	if resp == nil {
		return "", fmt.Errorf("vertex ai %s: no response", v.model)
	}
	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" {
		return "", fmt.Errorf("vertex ai %s: prompt blocked (%s)", v.model, pf.BlockReason)
	}

	text := resp.Text()
	v.logger.Debug("vertex ai response",
		"model", v.model,
		"candidates", len(resp.Candidates),
		"text_len", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
