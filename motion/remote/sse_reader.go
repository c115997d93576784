package remote

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

const maxSSELine = 64 * 1024

// streamEvent is one dispatched server-sent event.
type streamEvent struct {
	Event string
	Data  string
	ID    string
	Retry int // reconnection hint in ms, 0 if absent
}

// streamReader splits a text/event-stream body into events.
type streamReader struct {
	scanner *bufio.Scanner
}

func newStreamReader(r io.Reader) *streamReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxSSELine)
	return &streamReader{scanner: sc}
}

// Next blocks until a complete event is read. It returns io.EOF once the
// stream ends with nothing pending.
func (s *streamReader) Next() (streamEvent, error) {
	var ev streamEvent
	var data []string
	pending := false

	for s.scanner.Scan() {
		line := strings.TrimSuffix(s.scanner.Text(), "\r")

		if line == "" {
			if pending {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "event":
			ev.Event = value
		case "data":
			data = append(data, value)
		case "id":
			ev.ID = value
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil {
				ev.Retry = ms
			}
		default:
			continue
		}
		pending = true
	}

	if err := s.scanner.Err(); err != nil {
		return streamEvent{}, err
	}
	if pending {
		ev.Data = strings.Join(data, "\n")
		return ev, nil
	}
	return streamEvent{}, io.EOF
}
