// Package ai asks a generative-language model for feedback on a task board.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskboard/internal/model"
)

var (
	// ErrMissingAPIKey is returned before any request when no key is configured.
	ErrMissingAPIKey = errors.New("gemini api key is missing")
	// ErrEmptyResponse means the model returned no candidate text.
	ErrEmptyResponse = errors.New("gemini returned no content")
)

const systemPreamble = "You are a task management assistant. Analyze the following tasks and provide feedback " +
	"including warnings about tight schedules and prioritization recommendations for balance and focus.\n"

const promptHeader = "Analyze the following tasks and provide detailed feedback including warnings about " +
	"tight schedules and prioritization recommendations for balance and focus:\n\n"

// Client calls the generateContent endpoint.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey, model, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// BuildPrompt lists every bucket in board order as "EXPIRED:", "TODO:", ... blocks.
func BuildPrompt(board map[model.Status][]model.Task) string {
	var sb strings.Builder
	sb.WriteString(promptHeader)
	for _, status := range model.Statuses {
		sb.WriteString(strings.ToUpper(status.Key()))
		sb.WriteString(":\n")
		for _, task := range board[status] {
			due := ""
			if !task.DueDate.IsZero() {
				due = task.DueDate.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(&sb, "- %s (Due: %s, Priority: %s)\n", task.Title, due, task.Priority)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Analyze sends the board to the model and returns its free-form reply.
func (c *Client) Analyze(ctx context.Context, board map[model.Status][]model.Task) (string, error) {
	return c.Generate(ctx, systemPreamble+BuildPrompt(board))
}

// Generate sends a single prompt and returns the first candidate's first part.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("gemini api error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("gemini api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
