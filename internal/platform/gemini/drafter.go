// Package gemini implements report drafting against Google's Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/config"
	"google.golang.org/genai"
)

// Common errors returned by the drafter.
var (
	ErrInvalidConfig = errors.New("invalid gemini configuration")
	ErrEmptyResponse = errors.New("empty response from gemini")
	ErrNilLogger     = errors.New("logger cannot be nil")
)

// Drafter implements the task.Drafter interface using Google's Gemini API
// to produce report prose from task params.
type Drafter struct {
	logger *slog.Logger
	client *genai.Client
	model  string
}

// NewDrafter creates a Drafter from LLM configuration.
// Returns an error if the API key is missing or the client cannot be built.
func NewDrafter(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Drafter, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gemini client: %v", ErrInvalidConfig, err)
	}

	return &Drafter{
		logger: logger.With(slog.String("component", "gemini_drafter")),
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// DraftReport produces report prose from the opaque task params. The params
// are serialized into the prompt verbatim; their shape is owned by the
// caller, not interpreted here.
func (d *Drafter) DraftReport(ctx context.Context, params map[string]any) (string, error) {
	prompt, err := buildPrompt(params)
	if err != nil {
		return "", err
	}

	d.logger.InfoContext(ctx, "requesting report draft", slog.String("model", d.model))

	resp, err := d.client.Models.GenerateContent(ctx, d.model, genai.Text(prompt), nil)
	if err != nil {
		d.logger.ErrorContext(ctx, "gemini call failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("gemini draft request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}

// buildPrompt renders the drafting prompt for the given params.
func buildPrompt(params map[string]any) (string, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode draft params: %w", err)
	}

	return "Write a structured report draft based on the following request parameters. " +
		"Use clear section headings and professional prose.\n\nParameters:\n" +
		string(encoded), nil
}
