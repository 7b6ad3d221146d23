package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"iter"
	"strings"
	"sync"
)

const (
	dataPrefix = "data:"
	doneToken  = "[DONE]"

	maxLineSize = 1 << 20
)

// Decoder turns a server-sent event stream into content deltas.
// Lines without the data prefix, blank lines and payloads without
// choices[0].delta.content are skipped. A [DONE] payload ends the stream.
//
// The underlying source is closed exactly once: when the stream ends,
// when a read fails, or on Close, whichever comes first.
type Decoder struct {
	src     io.ReadCloser
	scanner *bufio.Scanner

	delta    string
	usage    Usage
	hasUsage bool
	done     bool
	err      error

	closeOnce sync.Once
	closeErr  error
}

// NewDecoder returns a Decoder reading from src.
func NewDecoder(src io.ReadCloser) *Decoder {
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{src: src, scanner: sc}
}

// Next advances to the next delta. It returns false at the end of the
// stream or on a read error; check Err afterwards.
func (d *Decoder) Next() bool {
	if d.done {
		return false
	}
	for d.scanner.Scan() {
		payload, ok := dataPayload(d.scanner.Text())
		if !ok {
			continue
		}
		if payload == doneToken {
			d.finish(nil)
			return false
		}
		delta, ok := d.parse(payload)
		if !ok {
			continue
		}
		d.delta = delta
		return true
	}
	d.finish(d.scanner.Err())
	return false
}

// Delta returns the delta produced by the last successful Next.
func (d *Decoder) Delta() string {
	return d.delta
}

// Usage returns the usage block if the stream carried one.
func (d *Decoder) Usage() (Usage, bool) {
	return d.usage, d.hasUsage
}

// Err returns the read error that ended the stream, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Close releases the source. It is safe to call more than once.
func (d *Decoder) Close() error {
	d.done = true
	d.closeOnce.Do(func() {
		d.closeErr = d.src.Close()
	})
	return d.closeErr
}

// Deltas returns the remaining deltas as a single-use sequence.
// Breaking out of the loop closes the source.
func (d *Decoder) Deltas() iter.Seq[string] {
	return func(yield func(string) bool) {
		defer d.Close()
		for d.Next() {
			if !yield(d.Delta()) {
				return
			}
		}
	}
}

func (d *Decoder) finish(err error) {
	d.err = err
	d.delta = ""
	_ = d.Close()
}

func (d *Decoder) parse(payload string) (string, bool) {
	var chunk StreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", false
	}
	if chunk.Usage != nil {
		d.usage = *chunk.Usage
		d.hasUsage = true
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}
	content := chunk.Choices[0].Delta.Content
	if content == nil || *content == "" {
		return "", false
	}
	return *content, true
}

func dataPayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == "" {
		return "", false
	}
	return payload, true
}
