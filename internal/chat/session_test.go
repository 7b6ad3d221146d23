package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vendshop/aiadvent/internal/config"
	"github.com/vendshop/aiadvent/internal/executor"
	"github.com/vendshop/aiadvent/internal/llm"
	"github.com/vendshop/aiadvent/internal/models"
	"github.com/vendshop/aiadvent/internal/orchestrator"
)

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			var req llm.ChatCompletionRequest
			json.NewDecoder(r.Body).Decode(&req)
			answer := "Hi!"
			if strings.Contains(req.Messages[len(req.Messages)-1].Content, "2+2") {
				answer = "4"
			}
			if req.Stream {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n", answer)
				fmt.Fprint(w, "data: [DONE]\n")
			} else {
				resp := llm.ChatCompletionResponse{
					ID:      "1",
					Choices: []llm.ChatCompletionChoice{{Message: llm.ChatMessage{Role: "assistant", Content: "Hello!"}}},
					Usage:   &llm.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
				}
				json.NewEncoder(w).Encode(resp)
			}
		case "/v1/models":
			resp := llm.ModelListResponse{Data: []llm.ModelInfo{{ID: "deepseek-chat"}}}
			json.NewEncoder(w).Encode(resp)
		}
	}))
}

func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
}

func testConfig(serverURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.APIKey = "sk-test-key-123456"
	cfg.APIBase = serverURL
	cfg.NoColor = true
	return cfg
}

func newTestSession(t *testing.T, cfg *config.Config) (*Session, *bytes.Buffer) {
	t.Helper()
	client := llm.NewClient(cfg.APIBase, llm.BearerToken(cfg.APIKey))
	mgr := models.NewManager(client)
	orch := orchestrator.New(executor.New(client), models.DefaultCatalog(),
		orchestrator.WithLogger(zaptest.NewLogger(t)),
		orchestrator.WithModelLister(mgr),
		orchestrator.WithSingleStreaming(cfg.Stream),
	)
	t.Cleanup(orch.Close)

	var buf bytes.Buffer
	s, err := NewSession(cfg, orch, mgr, &buf)
	require.NoError(t, err)
	return s, &buf
}

func lines(inputs ...string) InputReader {
	idx := 0
	return func(_ string) (string, error) {
		if idx >= len(inputs) {
			return "", io.EOF
		}
		line := inputs[idx]
		idx++
		return line, nil
	}
}

func TestNewSessionRejectsUnknownMode(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	cfg.Mode = "turbo"
	orch := orchestrator.New(nil, models.DefaultCatalog())
	_, err := NewSession(cfg, orch, nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, orchestrator.ErrUnknownMode)
}

func TestRunQuit(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, _ := newTestSession(t, testConfig(srv.URL))
	require.NoError(t, s.Run(context.Background(), lines("/quit", "never read")))
}

func TestRunEOF(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, _ := newTestSession(t, testConfig(srv.URL))
	require.NoError(t, s.Run(context.Background(), lines()))
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, _ := newTestSession(t, testConfig(srv.URL))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	read := false
	err := s.Run(ctx, func(string) (string, error) {
		read = true
		return "hello", nil
	})
	require.NoError(t, err)
	assert.False(t, read)
}

func TestRunSingleStreaming(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, buf := newTestSession(t, testConfig(srv.URL))
	require.NoError(t, s.Run(context.Background(), lines("2+2?", "/quit")))

	out := buf.String()
	assert.Contains(t, out, "4\n")
	assert.Contains(t, out, "deepseek-chat |")
}

func TestRunSingleBuffered(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Stream = false
	s, buf := newTestSession(t, cfg)
	require.NoError(t, s.Run(context.Background(), lines("Hello", "/quit")))

	out := buf.String()
	assert.Contains(t, out, "Hello!")
	assert.Contains(t, out, "3 in / 2 out tokens")
}

func TestRunSingleErrorShown(t *testing.T) {
	srv := failingServer(t)
	defer srv.Close()

	s, buf := newTestSession(t, testConfig(srv.URL))
	require.NoError(t, s.Run(context.Background(), lines("Hello", "/quit")))
	assert.Contains(t, buf.String(), "Error: API error 500")
}

func TestRunRestrictionMode(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, buf := newTestSession(t, testConfig(srv.URL))
	require.NoError(t, s.Run(context.Background(), lines("/mode restriction", "Explain DNS", "/quit")))

	out := buf.String()
	assert.Contains(t, out, "Switched to mode: restriction")
	assert.Contains(t, out, "Without restrictions")
	assert.Contains(t, out, "With restrictions (max 150 tokens)")
	assert.Equal(t, orchestrator.ModeRestriction, s.Mode())
}

func TestRunModelsMode(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Mode = "models"
	s, buf := newTestSession(t, cfg)
	require.NoError(t, s.Run(context.Background(), lines("hi", "/quit")))

	out := buf.String()
	assert.Contains(t, out, "Weak (deepseek-chat)")
	assert.Contains(t, out, "Strong (deepseek-reasoner)")
	assert.Contains(t, out, "Slot")
}

func TestRunSweepMode(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, buf := newTestSession(t, testConfig(srv.URL))
	require.NoError(t, s.Run(context.Background(), lines("/mode sweep", "hi", "/quit")))

	out := buf.String()
	for _, key := range []string{"Temperature 0.0", "Temperature 0.7", "Temperature 1.2"} {
		assert.Contains(t, out, key)
	}
}

func TestPipelineCommand(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, buf := newTestSession(t, testConfig(srv.URL))
	require.NoError(t, s.Run(context.Background(), lines("/pipeline", "/quit")))

	out := buf.String()
	assert.Contains(t, out, "[1/5] Direct answer")
	assert.Contains(t, out, "[5/5] Synthesis")
	assert.Contains(t, out, "5. Synthesis")
	assert.Equal(t, orchestrator.ModeSingle, s.Mode())
}

func TestSwitchModel(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, buf := newTestSession(t, testConfig(srv.URL))
	require.NoError(t, s.Run(context.Background(), lines("/model deepseek-reasoner", "/quit")))

	out := buf.String()
	assert.Contains(t, out, "Switched to model: deepseek-reasoner (not listed by the service)")
	assert.Equal(t, "deepseek-reasoner", s.orch.State().SelectedModel.ID)
}

func TestSwitchModelUnknown(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, _ := newTestSession(t, testConfig(srv.URL))
	assert.Contains(t, s.switchModel("gpt-4"), "unknown model")
	assert.Equal(t, "deepseek-chat", s.orch.State().SelectedModel.ID)
}

func TestListModels(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, _ := newTestSession(t, testConfig(srv.URL))
	result := s.switchModel("")
	assert.Contains(t, result, "* deepseek-chat")
	assert.Contains(t, result, "  deepseek-reasoner")
}

func TestSwitchMode(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, _ := newTestSession(t, testConfig(srv.URL))
	assert.Contains(t, s.switchMode(""), "Mode: single")
	assert.Contains(t, s.switchMode("turbo"), "unknown mode")
	assert.Equal(t, "Switched to mode: pipeline", s.switchMode("pipeline"))
	assert.Equal(t, "pipeline> ", s.prompt())
}

func TestShowAvailable(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, _ := newTestSession(t, testConfig(srv.URL))
	assert.Equal(t, "Available models:\n  deepseek-chat", s.showAvailable())
}

func TestShowAvailableFailure(t *testing.T) {
	srv := failingServer(t)
	defer srv.Close()

	s, _ := newTestSession(t, testConfig(srv.URL))
	assert.Equal(t, "No models available.", s.showAvailable())
}

func TestShowState(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, buf := newTestSession(t, testConfig(srv.URL))
	require.NoError(t, s.Run(context.Background(), lines("2+2?", "/state", "/quit")))
	assert.Contains(t, buf.String(), "Last question: 2+2?")
}

func TestEmptyInput(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, buf := newTestSession(t, testConfig(srv.URL))
	require.NoError(t, s.Run(context.Background(), lines("", "  ", "/quit")))
	assert.Empty(t, buf.String())
}

func TestShowConfig(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	s, _ := newTestSession(t, testConfig(srv.URL))
	output := s.showConfig()
	assert.Contains(t, output, "deepseek-chat")
	assert.Contains(t, output, "sk-t...3456")
	assert.NotContains(t, output, "sk-test-key-123456")
	assert.Contains(t, output, "$0.28 in / $0.42 out")
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "(not set)", maskKey(""))
	assert.Equal(t, "****", maskKey("short"))
	assert.Equal(t, "abcd...wxyz", maskKey("abcdefghijklmnopqrstuvwxyz"))
}
