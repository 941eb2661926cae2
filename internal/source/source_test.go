package source

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/config"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/metrics"
)

func TestSourceNormalizesWellFormedLines(t *testing.T) {
	lines := strings.Join([]string{
		`{"ts":"2026-08-06T10:00:00Z","event_type":"cpu_sample","pid":100,"provider":"kernel","payload":{"value":12.5}}`,
		`{"ts":"2026-08-06T10:00:01Z","event_type":"mem_sample","pid":100,"provider":"kernel","payload":{"value":55}}`,
	}, "\n") + "\n"

	reg := metrics.NewRegistry()
	src := NewFromReader(config.TracerConfig{}, strings.NewReader(lines), &reg.Counters)

	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(context.Background()) }()

	var got []string
	for ev := range src.Events() {
		got = append(got, string(ev.Kind))
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, []string{"cpu_sample", "mem_sample"}, got)
}

func TestSourceSkipsMalformedLines(t *testing.T) {
	lines := strings.Join([]string{
		`not json at all`,
		`{"event_type":"cpu_sample","pid":1,"provider":"kernel","payload":{}}`,
	}, "\n") + "\n"

	reg := metrics.NewRegistry()
	src := NewFromReader(config.TracerConfig{}, strings.NewReader(lines), &reg.Counters)

	go func() { _ = src.Run(context.Background()) }()

	var got []string
	for ev := range src.Events() {
		got = append(got, string(ev.Kind))
	}
	assert.Equal(t, []string{"cpu_sample"}, got)
}

func TestSourceDropsOldestOnBackpressure(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 5; i++ {
		sb.WriteString(`{"event_type":"cpu_sample","pid":1,"provider":"kernel","payload":{}}` + "\n")
	}

	reg := metrics.NewRegistry()
	cfg := config.TracerConfig{QueueSize: 2}
	src := NewFromReader(cfg, strings.NewReader(sb.String()), &reg.Counters)

	done := make(chan struct{})
	go func() {
		_ = src.Run(context.Background())
		close(done)
	}()

	<-done
	var count int
	for range src.Events() {
		count++
	}
	assert.LessOrEqual(t, count, 2)
}

func TestSourceRunStopsOnContextCancel(t *testing.T) {
	r, w := io.Pipe()
	reg := metrics.NewRegistry()
	src := NewFromReader(config.TracerConfig{}, r, &reg.Counters)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(ctx) }()

	_, _ = w.Write([]byte(`{"event_type":"cpu_sample","pid":1,"provider":"kernel","payload":{}}` + "\n"))
	<-src.Events()

	cancel()
	_, _ = w.Write([]byte(`{"event_type":"cpu_sample","pid":1,"provider":"kernel","payload":{}}` + "\n"))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not observe cancellation")
	}
	_ = w.Close()
}
