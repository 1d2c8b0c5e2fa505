package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonathan/job-intel/internal/pipeline"
)

// ErrStreamClosed is returned by writes after Close.
var ErrStreamClosed = errors.New("event stream closed")

// SSEWriter writes Server-Sent Events. It is safe for concurrent use: the
// heartbeat goroutine and the pipeline share one writer and frames never
// interleave.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewSSEWriter sends the stream headers and returns a writer.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Emit writes one frame and flushes it. It implements pipeline.Emitter.
func (s *SSEWriter) Emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		s.closed = true
		return err
	}
	s.flusher.Flush()
	return nil
}

// StartHeartbeat emits a heartbeat frame every interval until the returned
// stop function is called. stop waits for the goroutine to exit.
func (s *SSEWriter) StartHeartbeat(interval time.Duration) (stop func()) {
	if interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case t := <-ticker.C:
				if err := s.Emit(pipeline.EventHeartbeat, map[string]int64{"ts": t.UnixMilli()}); err != nil {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		wg.Wait()
	}
}

// stopBeforeTerminal wraps e so that stop runs before the first result or
// error frame is written. The terminal frames are then the last on the wire.
func stopBeforeTerminal(e pipeline.Emitter, stop func()) pipeline.Emitter {
	return pipeline.EmitterFunc(func(event string, payload any) error {
		if event == pipeline.EventResult || event == pipeline.EventError {
			stop()
		}
		return e.Emit(event, payload)
	})
}

// Close rejects further writes.
func (s *SSEWriter) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
