// Package streamclient consumes job intelligence event streams.
package streamclient

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const maxFrameLine = 1 << 20

// Frame is one Server-Sent Event. Event defaults to "message".
type Frame struct {
	Event string
	Data  json.RawMessage
}

// Reader splits an event stream into frames.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader returns a frame reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxFrameLine)
	return &Reader{sc: sc}
}

// Next returns the next frame. A trailing frame without its blank line is
// still returned; after that Next returns io.EOF.
func (r *Reader) Next() (Frame, error) {
	var (
		event   string
		data    []string
		pending bool
	)
	for r.sc.Scan() {
		line := strings.TrimSuffix(r.sc.Text(), "\r")
		if line == "" {
			if pending {
				return frame(event, data), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		}
	}
	if err := r.sc.Err(); err != nil {
		return Frame{}, err
	}
	if pending {
		return frame(event, data), nil
	}
	return Frame{}, io.EOF
}

func frame(event string, data []string) Frame {
	if event == "" {
		event = "message"
	}
	return Frame{Event: event, Data: json.RawMessage(strings.Join(data, "\n"))}
}
