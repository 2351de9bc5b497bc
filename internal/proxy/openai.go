package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultModel    = "gpt-4o-mini"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidBody       = errors.New("request body is not a json object")
)

// UpstreamError carries a non-2xx answer from the upstream API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("openai responded with status %d", e.Status)
}

// OpenAIProxy forwards chat completion requests to OpenAI with the server's
// credential. Fields it does not know about are forwarded untouched.
type OpenAIProxy struct {
	apiKey       string
	endpoint     string
	defaultModel string
	client       *http.Client
}

func NewOpenAIProxy(apiKey, endpoint, defaultModel string, client *http.Client) *OpenAIProxy {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAIProxy{
		apiKey:       apiKey,
		endpoint:     endpoint,
		defaultModel: defaultModel,
		client:       client,
	}
}

func (p *OpenAIProxy) Configured() bool {
	return p.apiKey != ""
}

// Forward sends body upstream and returns the upstream JSON on success.
// A non-2xx upstream answer is returned as *UpstreamError.
func (p *OpenAIProxy) Forward(ctx context.Context, body []byte) (json.RawMessage, error) {
	if !p.Configured() {
		return nil, ErrMissingCredential
	}

	payload, err := p.buildPayload(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call openai: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Error("OpenAIProxy: failed to close upstream body", "error", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read openai response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("OpenAIProxy: upstream returned an error", "status", resp.StatusCode)
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("openai returned invalid json")
	}
	return json.RawMessage(respBody), nil
}

// buildPayload applies the default model and messages while keeping every
// other field exactly as received.
func (p *OpenAIProxy) buildPayload(body []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, ErrInvalidBody
	}

	if _, ok := fields["model"]; !ok {
		model, err := json.Marshal(p.defaultModel)
		if err != nil {
			return nil, err
		}
		fields["model"] = model
	}
	if messages, ok := fields["messages"]; !ok || string(bytes.TrimSpace(messages)) == "null" {
		fields["messages"] = json.RawMessage("[]")
	}

	return json.Marshal(fields)
}
