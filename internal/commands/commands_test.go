package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	r.Register("test", "<text>", "A test command", func(args string) string {
		return "result:" + args
	})

	out, found := r.Execute("/test   hello world ")
	assert.True(t, found)
	assert.Equal(t, "result:hello world", out)
}

func TestExecuteUnknown(t *testing.T) {
	r := NewRegistry()
	out, found := r.Execute("/unknown")
	assert.True(t, found)
	assert.Contains(t, out, "Unknown command: /unknown")
}

func TestExecuteNonCommand(t *testing.T) {
	r := NewRegistry()
	out, found := r.Execute("what is 2+2?")
	assert.False(t, found)
	assert.Empty(t, out)
}

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand("/help"))
	assert.True(t, IsCommand("  /model deepseek-chat"))
	assert.False(t, IsCommand("hello"))
	assert.False(t, IsCommand(""))
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	var gotMode string
	pipelineRuns := 0
	RegisterDefaults(r, Callbacks{
		OnMode: func(args string) string {
			gotMode = args
			return "Mode: " + args
		},
		OnPipeline: func() string {
			pipelineRuns++
			return "done"
		},
	})

	out, found := r.Execute("/help")
	assert.True(t, found)
	for _, name := range []string{"/help", "/quit", "/mode [name]", "/model [id]", "/available", "/pipeline", "/state", "/config"} {
		assert.Contains(t, out, name)
	}

	out, _ = r.Execute("/mode sweep")
	assert.Equal(t, "sweep", gotMode)
	assert.Equal(t, "Mode: sweep", out)

	out, _ = r.Execute("/pipeline ignored")
	assert.Equal(t, 1, pipelineRuns)
	assert.Equal(t, "done", out)

	out, found = r.Execute("/quit")
	assert.True(t, found)
	assert.Equal(t, Quit, out)

	out, found = r.Execute("/exit")
	assert.True(t, found)
	assert.Equal(t, Quit, out)
}

func TestDefaultCallbacksNil(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r, Callbacks{})

	for _, cmd := range []string{"/model deepseek-chat", "/mode", "/available", "/pipeline", "/state", "/config"} {
		out, _ := r.Execute(cmd)
		assert.Contains(t, out, "not configured", cmd)
	}
}

func TestCommandWithNoArgs(t *testing.T) {
	r := NewRegistry()
	r.Register("ping", "", "Ping", func(args string) string {
		return "pong:" + args
	})

	out, found := r.Execute("/ping")
	assert.True(t, found)
	assert.Equal(t, "pong:", out)
}
