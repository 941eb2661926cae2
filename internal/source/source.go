// Package source implements C1, the event source: it normalizes a
// line-delimited JSON stream from an external kernel tracer into
// models.Event values and publishes them to C2 over a bounded queue.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/config"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/logger"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/metrics"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

// Source reads line-delimited JSON from an io.Reader, normalizes each
// line into a models.Event and republishes over a bounded queue. The
// queue drops the oldest entry rather than blocking the reader.
type Source struct {
	cfg      config.TracerConfig
	counters *metrics.Counters
	nowFn    func() time.Time
	started  time.Time

	cmd    *exec.Cmd
	reader io.Reader
	closer io.Closer

	mu       sync.Mutex
	queue    chan models.Event
	lastWall map[string]time.Time // last accepted wall time, keyed by provider
}

// NewFromCommand spawns the configured tracer subprocess and reads its
// stdout. This is the standard deployment shape for a live run.
func NewFromCommand(cfg config.TracerConfig, counters *metrics.Counters) (*Source, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("source: tracer command is empty")
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("source: attach tracer stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("source: start tracer: %w", err)
	}

	s := newSource(cfg, counters)
	s.cmd = cmd
	s.reader = stdout
	return s, nil
}

// NewFromReader wraps an arbitrary byte stream — a captured file or a
// socket works equally well. Used directly by tests and by replay.
func NewFromReader(cfg config.TracerConfig, r io.Reader, counters *metrics.Counters) *Source {
	s := newSource(cfg, counters)
	s.reader = r
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func newSource(cfg config.TracerConfig, counters *metrics.Counters) *Source {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64 * 1024
	}
	if cfg.MaxClockSlew <= 0 {
		cfg.MaxClockSlew = 2 * time.Second
	}
	return &Source{
		cfg:      cfg,
		counters: counters,
		nowFn:    time.Now,
		started:  time.Now(),
		queue:    make(chan models.Event, cfg.QueueSize),
		lastWall: make(map[string]time.Time),
	}
}

// Events returns the channel C2 should consume from.
func (s *Source) Events() <-chan models.Event {
	return s.queue
}

// Run scans the underlying stream until ctx is cancelled or the stream
// ends, publishing normalized events. It finishes the in-flight line
// before observing cancellation, then closes the queue.
func (s *Source) Run(ctx context.Context) error {
	defer close(s.queue)

	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw rawRecord
		if err := json.Unmarshal(line, &raw); err != nil {
			s.incMalformed()
			continue
		}
		if raw.EventType == "" {
			s.incMalformed()
			continue
		}

		ev := normalize(raw, time.Since(s.started), s.nowFn)
		if !s.acceptMonotonic(ev) {
			continue
		}

		s.publish(ev)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("source: scan tracer stream: %w", err)
	}
	return nil
}

// acceptMonotonic enforces a per-source non-decreasing wall clock,
// dropping events that arrive more than MaxClockSlew behind the last
// accepted sample for that provider.
func (s *Source) acceptMonotonic(ev models.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.lastWall[ev.Provider]
	if ok && ev.Wall.Before(last.Add(-s.cfg.MaxClockSlew)) {
		return false
	}
	if !ok || ev.Wall.After(last) {
		s.lastWall[ev.Provider] = ev.Wall
	}
	return true
}

// publish sends ev to the bounded queue, dropping the oldest queued
// event on overflow rather than blocking.
func (s *Source) publish(ev models.Event) {
	select {
	case s.queue <- ev:
		return
	default:
	}

	select {
	case <-s.queue:
	default:
	}
	select {
	case s.queue <- ev:
	default:
	}
	if s.counters != nil {
		s.counters.BackpressureDrops.Inc()
	}
}

func (s *Source) incMalformed() {
	if s.counters != nil {
		s.counters.MalformedLines.Inc()
	}
	logger.Warnf("source: dropped malformed tracer line")
}

// Close releases the tracer subprocess or underlying stream.
func (s *Source) Close() error {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
