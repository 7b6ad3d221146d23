package llm

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCloser struct {
	io.Reader
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}

func source(lines ...string) *countingCloser {
	return &countingCloser{Reader: strings.NewReader(strings.Join(lines, "\n"))}
}

func chunk(content string) string {
	return `data: {"choices":[{"index":0,"delta":{"content":"` + content + `"}}]}`
}

func collect(d *Decoder) []string {
	var out []string
	for d.Next() {
		out = append(out, d.Delta())
	}
	return out
}

func TestDecoderSkipsMalformedLines(t *testing.T) {
	src := source(
		chunk("a"),
		`data: {not json`,
		chunk("b"),
		`data: {"choices":[]}`,
		`data: {"choices":[{"delta":{}}]}`,
		`data: {"choices":[{"delta":{"content":null}}]}`,
		`data: {"id":"x"}`,
		chunk("c"),
	)

	d := NewDecoder(src)
	assert.Equal(t, []string{"a", "b", "c"}, collect(d))
	assert.NoError(t, d.Err())
	assert.Equal(t, 1, src.closes)
}

func TestDecoderStopsAtDone(t *testing.T) {
	src := source(chunk("4"), "data: [DONE]", chunk("ignored"))

	d := NewDecoder(src)
	assert.Equal(t, []string{"4"}, collect(d))
	assert.False(t, d.Next())
	assert.Equal(t, 1, src.closes)
}

func TestDecoderIgnoresBlankAndNonDataLines(t *testing.T) {
	src := source(
		": keep-alive",
		"",
		"event: message",
		chunk("x"),
		"",
		"id: 7",
		"data:"+`{"choices":[{"delta":{"content":"y"}}]}`,
		"data: ",
		"data: [DONE]",
	)

	assert.Equal(t, []string{"x", "y"}, collect(NewDecoder(src)))
}

func TestDecoderHandlesCRLF(t *testing.T) {
	src := &countingCloser{Reader: strings.NewReader(chunk("a") + "\r\n\r\ndata: [DONE]\r\n")}
	assert.Equal(t, []string{"a"}, collect(NewDecoder(src)))
}

func TestDecoderEOFWithoutDone(t *testing.T) {
	src := source(chunk("a"), chunk("b"))
	d := NewDecoder(src)
	assert.Equal(t, []string{"a", "b"}, collect(d))
	assert.NoError(t, d.Err())
	assert.Equal(t, 1, src.closes)
}

type failingReader struct {
	data string
	read bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.read {
		f.read = true
		return copy(p, f.data), nil
	}
	return 0, errors.New("connection reset")
}

func TestDecoderReadErrorClosesOnce(t *testing.T) {
	src := &countingCloser{Reader: &failingReader{data: chunk("a") + "\n"}}
	d := NewDecoder(src)

	assert.Equal(t, []string{"a"}, collect(d))
	require.Error(t, d.Err())
	assert.Contains(t, d.Err().Error(), "connection reset")

	require.NoError(t, d.Close())
	assert.Equal(t, 1, src.closes)
}

func TestDeltasBreakClosesSource(t *testing.T) {
	src := source(chunk("a"), chunk("b"), chunk("c"))
	d := NewDecoder(src)

	var got []string
	for delta := range d.Deltas() {
		got = append(got, delta)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, src.closes)
	assert.False(t, d.Next())
}

func TestDeltasPanicClosesSource(t *testing.T) {
	src := source(chunk("a"))
	d := NewDecoder(src)

	assert.Panics(t, func() {
		for range d.Deltas() {
			panic("boom")
		}
	})
	assert.Equal(t, 1, src.closes)
}

func TestDecoderRecordsUsage(t *testing.T) {
	src := source(
		chunk("hi"),
		`data: {"choices":[],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`,
		"data: [DONE]",
	)
	d := NewDecoder(src)
	assert.Equal(t, []string{"hi"}, collect(d))

	usage, ok := d.Usage()
	require.True(t, ok)
	assert.Equal(t, Usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4}, usage)
}

func TestDecoderDeltaCountProperty(t *testing.T) {
	var lines, want []string
	for i := 0; i < 20; i++ {
		s := strings.Repeat("z", i%3+1)
		lines = append(lines, chunk(s))
		want = append(want, s)
		if i%4 == 0 {
			lines = append(lines, "data: {{broken")
		}
	}
	lines = append(lines, "data: [DONE]")

	assert.Equal(t, want, collect(NewDecoder(source(lines...))))
}
