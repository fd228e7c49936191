package main

import (
	"bytes"
	"sync"
)

// statusLine is an io.Writer keeping the last log line for the footer.
type statusLine struct {
	mu   sync.Mutex
	last string
}

func (s *statusLine) Write(p []byte) (int, error) {
	line := bytes.TrimSpace(p)
	if i := bytes.LastIndexByte(line, '\n'); i >= 0 {
		line = line[i+1:]
	}
	s.mu.Lock()
	s.last = string(line)
	s.mu.Unlock()
	return len(p), nil
}

func (s *statusLine) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
