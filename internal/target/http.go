package target

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"redcell/internal/types"
)

// RawResponse captures one HTTP exchange for diagnostics.
type RawResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// apiClient issues one HTTP request per invocation. The request body is a
// JSON object keyed by the configured prompt field; the answer is extracted
// from the configured response field with common fallbacks.
type apiClient struct {
	name        string
	endpoint    string
	method      string
	headers     map[string]string
	promptKey   string
	responseKey string
	timeout     time.Duration
	client      *http.Client
}

func newAPIClient(cfg Config) *apiClient {
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}
	promptKey := cfg.PromptKey
	if promptKey == "" {
		promptKey = "prompt"
	}
	responseKey := cfg.ResponseKey
	if responseKey == "" {
		responseKey = "response"
	}
	return &apiClient{
		name:        cfg.Name,
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		method:      method,
		headers:     cfg.Headers,
		promptKey:   promptKey,
		responseKey: responseKey,
		timeout:     cfg.Timeout(),
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *apiClient) Name() string { return c.name }

func (c *apiClient) Invoke(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.do(ctx, prompt)
	if err != nil {
		return "", wrapInvokeErr(ctx, err)
	}
	if raw.StatusCode < 200 || raw.StatusCode >= 300 {
		return "", types.NewRetryableError(types.CodeTargetInvocation,
			fmt.Sprintf("target returned status %d", raw.StatusCode),
			fmt.Errorf("%s", firstN(string(raw.Body), 200)))
	}

	answer, err := c.extract(raw.Body)
	if err != nil {
		return "", types.WrapError(types.CodeTargetInvocation, "malformed target response", err)
	}
	return answer, nil
}

func (c *apiClient) do(ctx context.Context, prompt string) (*RawResponse, error) {
	var (
		reader  io.Reader
		fullURL = c.endpoint
	)
	if c.method == http.MethodGet {
		values := url.Values{}
		values.Set(c.promptKey, prompt)
		fullURL += "?" + values.Encode()
	} else {
		payload, err := json.Marshal(map[string]string{c.promptKey: prompt})
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, c.method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		request.Header.Set(k, v)
	}

	start := time.Now()
	response, err := c.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(response.Body)
	raw := &RawResponse{
		StatusCode: response.StatusCode,
		Headers:    response.Header.Clone(),
		Body:       body,
		Duration:   time.Since(start),
	}
	if readErr != nil {
		return raw, fmt.Errorf("read response body: %w", readErr)
	}
	return raw, nil
}

// extract pulls the answer field out of the JSON response, trying the
// configured key first and then the conventional fallbacks.
func (c *apiClient) extract(body []byte) (string, error) {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("decode response json: %w", err)
	}
	for _, key := range []string{c.responseKey, "answer", "text", "output"} {
		if value, ok := data[key]; ok {
			return asString(value), nil
		}
	}
	// last resort: hand back the whole document as text
	return string(body), nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func firstN(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
