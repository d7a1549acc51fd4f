// Package inference turns one user utterance into a spoken reply plus an
// optional action plan, by calling the Gemini generateContent endpoint.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BilliamsFluster/stockpilot/pkg/plan"
	"github.com/BilliamsFluster/stockpilot/pkg/voice"
)

const systemPrompt = `You are the voice assistant of a broker-connectivity dashboard.
Answer the user's request in one or two spoken sentences, and when the request
maps onto the dashboard UI, produce a short plan of UI actions.
Respond with a single JSON object: {"reply": string, "actions": [action...]}.
Each action has an "op" field (wait_for, click, navigate, fill, type, press,
set_style, set_text, select, scroll, scroll_into_view) and op-specific fields
(selector, to, value, text, keys, style, submit, y, timeout_ms).
Produce at most 15 actions. Return an empty actions array when no UI change is
needed.`

// Config carries the remote model settings.
type Config struct {
	APIKey      string
	Model       string
	Endpoint    string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	// RequestsPerMinute caps outbound calls; zero disables the cap.
	RequestsPerMinute int
}

// Client calls Gemini with retry on transient failures and a client-side rate
// cap. It implements voice.Thinker.
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type content struct {
	Parts []part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type systemInstruction struct {
	Parts []part `json:"parts"`
}

type requestPayload struct {
	Contents          []content          `json:"contents"`
	SystemInstruction *systemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  generationConfig   `json:"generationConfig"`
}

type responsePayload struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("inference API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf(
			"https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent",
			cfg.Model)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	return &Client{
		cfg:        cfg,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger.Named("inference"),
	}, nil
}

// Think sends the utterance to the model and parses its JSON answer. A reply
// with malformed actions degrades to a reply-only turn rather than failing.
func (c *Client) Think(ctx context.Context, utterance string) (*voice.Reply, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	raw, err := c.generate(ctx, utterance)
	if err != nil {
		return nil, err
	}
	return c.parseReply(raw), nil
}

func (c *Client) generate(ctx context.Context, utterance string) (string, error) {
	payload := requestPayload{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: utterance}}},
		},
		SystemInstruction: &systemInstruction{Parts: []part{{Text: systemPrompt}}},
		GenerationConfig: generationConfig{
			Temperature:      c.cfg.Temperature,
			ResponseMimeType: "application/json",
			MaxOutputTokens:  c.cfg.MaxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var text string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.cfg.APIKey)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("network error during inference request, retrying", zap.Error(err))
			return fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return c.apiError(resp.StatusCode, respBody)
		}

		var parsed responsePayload
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response payload: %w", err))
		}
		if len(parsed.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("model returned no candidates"))
		}
		candidate := parsed.Candidates[0]
		if len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("model blocked the request (reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("model returned empty content (reason: %s)", candidate.FinishReason)
		}

		c.logger.Info("inference complete",
			zap.Duration("duration", time.Since(start)),
			zap.Int("prompt_tokens", parsed.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", parsed.UsageMetadata.CandidatesTokenCount))

		text = candidate.Content.Parts[0].Text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) apiError(status int, body []byte) error {
	err := fmt.Errorf("inference API error: status %d, body: %s", status, body)
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err
	default:
		return backoff.Permanent(err)
	}
}

// parseReply extracts {"reply", "actions"} from the model output. The action
// array is untrusted; anything undecodable yields a reply-only turn and the
// sanitizer downstream clamps whatever did decode.
func (c *Client) parseReply(raw string) *voice.Reply {
	var envelope struct {
		Reply   string          `json:"reply"`
		Actions json.RawMessage `json:"actions"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		c.logger.Warn("model output is not the expected envelope", zap.Error(err))
		return &voice.Reply{Text: raw}
	}

	reply := &voice.Reply{Text: envelope.Reply}
	if len(envelope.Actions) == 0 {
		return reply
	}
	actions, err := plan.Decode(envelope.Actions)
	if err != nil {
		c.logger.Warn("discarding undecodable action plan", zap.Error(err))
		return reply
	}
	reply.Plan = actions
	return reply
}
