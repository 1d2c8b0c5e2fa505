package streamclient

import (
	"errors"
	"strings"
	"sync"
)

// Channel names an accumulated text output.
type Channel string

const (
	CoverLetter    Channel = "coverLetter"
	CompanySummary Channel = "companySummary"
	JobSnippet     Channel = "jobSnippet"
)

// ErrFinalized is returned when writing to a finalized accumulator.
var ErrFinalized = errors.New("accumulator is finalized")

// Accumulator collects text per channel. Writes after Finalize fail.
type Accumulator struct {
	mu        sync.Mutex
	buffers   map[Channel]*strings.Builder
	finalized bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{buffers: make(map[Channel]*strings.Builder)}
}

// Append adds delta to the end of ch.
func (a *Accumulator) Append(ch Channel, delta string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return ErrFinalized
	}
	a.buffer(ch).WriteString(delta)
	return nil
}

// Replace sets ch to value.
func (a *Accumulator) Replace(ch Channel, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return ErrFinalized
	}
	b := a.buffer(ch)
	b.Reset()
	b.WriteString(value)
	return nil
}

// Text returns the current content of ch.
func (a *Accumulator) Text(ch Channel) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if b, ok := a.buffers[ch]; ok {
		return b.String()
	}
	return ""
}

// Finalize freezes the accumulator and returns the trimmed content of every
// channel written to. Calling it again returns the same snapshot.
func (a *Accumulator) Finalize() map[Channel]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalized = true
	out := make(map[Channel]string, len(a.buffers))
	for ch, b := range a.buffers {
		out[ch] = strings.TrimSpace(b.String())
	}
	return out
}

func (a *Accumulator) buffer(ch Channel) *strings.Builder {
	b, ok := a.buffers[ch]
	if !ok {
		b = &strings.Builder{}
		a.buffers[ch] = b
	}
	return b
}
