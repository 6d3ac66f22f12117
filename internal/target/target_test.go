package target

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redcell/internal/types"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid api", Config{Name: "rag", Kind: types.TargetKindAPI, Endpoint: "http://localhost:8080/ask"}, false},
		{"api missing endpoint", Config{Name: "rag", Kind: types.TargetKindAPI}, true},
		{"missing name", Config{Kind: types.TargetKindAPI, Endpoint: "http://x"}, true},
		{"bad kind", Config{Name: "rag", Kind: "grpc"}, true},
		{"chain missing pipeline", Config{Name: "rag", Kind: types.TargetKindChain}, true},
		{"custom missing callable", Config{Name: "rag", Kind: types.TargetKindCustom}, true},
		{"valid custom", Config{Name: "rag", Kind: types.TargetKindCustom, Custom: func(context.Context, string) (string, error) { return "", nil }}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.CodeConfigInvalid, types.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAPIClientExtractsConfiguredKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, decodeJSON(r, &body))
		assert.Equal(t, "hello", body["question"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"I cannot share credit card numbers"}`))
	}))
	defer server.Close()

	client, err := New(Config{
		Name:        "echo",
		Kind:        types.TargetKindAPI,
		Endpoint:    server.URL,
		PromptKey:   "question",
		ResponseKey: "reply",
	})
	require.NoError(t, err)

	answer, err := client.Invoke(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "I cannot share credit card numbers", answer)
}

func TestAPIClientFallbackKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"from fallback"}`))
	}))
	defer server.Close()

	client, err := New(Config{Name: "echo", Kind: types.TargetKindAPI, Endpoint: server.URL})
	require.NoError(t, err)

	answer, err := client.Invoke(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "from fallback", answer)
}

func TestAPIClientNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := New(Config{Name: "broken", Kind: types.TargetKindAPI, Endpoint: server.URL})
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, types.CodeTargetInvocation, types.CodeOf(err))
	assert.False(t, types.IsTimeout(err))
}

func TestAPIClientMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	client, err := New(Config{Name: "weird", Kind: types.TargetKindAPI, Endpoint: server.URL})
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, types.CodeTargetInvocation, types.CodeOf(err))
}

func TestAPIClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	client, err := New(Config{Name: "slow", Kind: types.TargetKindAPI, Endpoint: server.URL, TimeoutSec: 1})
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, types.IsTimeout(err), "deadline expiry must surface as TARGET_TIMEOUT, got %v", err)
}

func TestCustomClientWrapsErrors(t *testing.T) {
	client, err := New(Config{
		Name: "cb",
		Kind: types.TargetKindCustom,
		Custom: func(context.Context, string) (string, error) {
			return "", errors.New("pipeline blew up")
		},
	})
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, types.CodeTargetInvocation, types.CodeOf(err))
	assert.Contains(t, err.Error(), "pipeline blew up")
}

func TestCustomClientRecoversPanic(t *testing.T) {
	client, err := New(Config{
		Name: "panicky",
		Kind: types.TargetKindCustom,
		Custom: func(context.Context, string) (string, error) {
			panic("boom")
		},
	})
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, types.CodeTargetInvocation, types.CodeOf(err))
	assert.Contains(t, err.Error(), "boom")
}

type staticChain struct{ reply string }

func (s staticChain) Invoke(_ context.Context, _ string) (string, error) {
	return s.reply, nil
}

func TestChainClient(t *testing.T) {
	client, err := New(Config{
		Name:  "chain",
		Kind:  types.TargetKindChain,
		Chain: staticChain{reply: "chained answer"},
	})
	require.NoError(t, err)

	answer, err := client.Invoke(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "chained answer", answer)
	assert.Equal(t, "chain", client.Name())
}

func TestRateLimitedClient(t *testing.T) {
	calls := 0
	client, err := New(Config{
		Name: "limited",
		Kind: types.TargetKindCustom,
		Custom: func(context.Context, string) (string, error) {
			calls++
			return "ok", nil
		},
		RateRPM: 600, // 10/s, burst kicks in immediately
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := client.Invoke(context.Background(), "hi")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}
