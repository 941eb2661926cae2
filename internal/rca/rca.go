// Package rca implements C5: it turns a confirmed incident and its
// ranked suspects into evidence for an external LLM collaborator,
// validates the reply, and falls back to a locally synthesized report
// whenever the collaborator is unavailable or returns something that
// doesn't parse.
package rca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/config"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/logger"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/metrics"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

var validate = validator.New()

// Updater is how the orchestrator reports a finished (or fallback)
// RcaReport back to the incident it belongs to. C6's store implements
// this.
type Updater interface {
	UpdateRCA(incidentID int64, report *models.RcaReport)
}

// HostPoint is one 1 Hz (ts, cpu_pct, ram_pct) sample in the evidence
// payload's host time series snippet.
type HostPoint struct {
	TS     time.Time `json:"ts"`
	CPUPct float64   `json:"cpu_pct"`
	RAMPct float64   `json:"ram_pct"`
}

// EvidencePayload is exactly what gets serialized and sent to the LLM
// collaborator.
type EvidencePayload struct {
	RequestID      string                 `json:"request_id"`
	TraceID        string                 `json:"trace_id"`
	IncidentID     int64                  `json:"incident_id"`
	DetectedAt     time.Time              `json:"detected_at"`
	CPUAtConfirm   float64                `json:"cpu_at_confirm"`
	RAMAtConfirm   float64                `json:"ram_at_confirm"`
	WindowStart    time.Time              `json:"window_start"`
	WindowEnd      time.Time              `json:"window_end"`
	RankedSuspects []models.RankedSuspect `json:"ranked_suspects"`
	Events         []models.Event         `json:"events"`
	HostSeries     []HostPoint            `json:"host_series"`
}

// Job is one incident queued for RCA.
type Job struct {
	Incident   *models.SpikeIncident
	Ranked     []models.RankedSuspect
	Culprit    *models.CulpritProcess
	Impact     models.ResourceImpact
	HostWindow []models.HostSample
	Events     []models.Event
}

// Orchestrator runs the single-flight, bounded RCA request queue.
type Orchestrator struct {
	cfg      config.RCAConfig
	client   *openai.Client
	counters *metrics.Counters
	updater  Updater
	queue    chan Job
}

// NewOrchestrator builds the RCA request queue and, if cfg.Enabled, an
// OpenAI-compatible client pointed at cfg.APIBaseURL.
func NewOrchestrator(cfg config.RCAConfig, counters *metrics.Counters, updater Updater) *Orchestrator {
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 16
	}

	o := &Orchestrator{cfg: cfg, counters: counters, updater: updater, queue: make(chan Job, depth)}
	if cfg.Enabled {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.APIBaseURL != "" {
			clientCfg.BaseURL = cfg.APIBaseURL
		}
		o.client = openai.NewClientWithConfig(clientCfg)
	}
	return o
}

// Submit enqueues a job. If the queue is full, the oldest queued job
// is evicted: its incident is immediately marked unavailable due to
// backpressure before the new job takes its slot.
func (o *Orchestrator) Submit(j Job) {
	select {
	case o.queue <- j:
		return
	default:
	}

	select {
	case dropped := <-o.queue:
		o.updater.UpdateRCA(dropped.Incident.ID, fallbackReport("backpressure", dropped))
	default:
	}

	select {
	case o.queue <- j:
	default:
		o.updater.UpdateRCA(j.Incident.ID, fallbackReport("backpressure", j))
	}
}

// Run drains the queue one job at a time (single-flight) until ctx is
// cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-o.queue:
			report := o.process(ctx, j)
			o.updater.UpdateRCA(j.Incident.ID, report)
		}
	}
}

func (o *Orchestrator) process(ctx context.Context, j Job) *models.RcaReport {
	if !o.cfg.Enabled {
		return fallbackReport("rca disabled", j)
	}

	payload := buildEvidence(j, o.cfg.EventSampleMax)
	logger.Debugf("rca: incident %d: dispatching request_id=%s trace_id=%s", j.Incident.ID, payload.RequestID, payload.TraceID)
	raw, err := o.requestWithRetry(ctx, payload)
	if err != nil {
		logger.Warnf("rca: incident %d: trace_id=%s collaborator unavailable: %v", j.Incident.ID, payload.TraceID, err)
		if o.counters != nil {
			o.counters.LLMFailures.Inc()
		}
		return fallbackReport(err.Error(), j)
	}

	report, err := parseAndValidate(raw)
	if err != nil {
		logger.Warnf("rca: incident %d: schema validation failed: %v", j.Incident.ID, err)
		if o.counters != nil {
			o.counters.LLMSchemaInvalid.Inc()
		}
		return fallbackReport("invalid LLM reply", j)
	}

	report.RankedSuspects = j.Ranked
	report.ResourceImpact = j.Impact
	if j.Culprit != nil {
		report.CulpritProcess = *j.Culprit
	}
	report.GeneratedAt = time.Now().UTC()
	return report
}

func (o *Orchestrator) requestWithRetry(ctx context.Context, payload EvidencePayload) (string, error) {
	timeout := time.Duration(o.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	retries := o.cfg.Retries
	backoffBase := o.cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = 2 * time.Second
	}
	jitter := o.cfg.BackoffJitter
	if jitter <= 0 {
		jitter = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := backoffBase*time.Duration(1<<uint(attempt-1)) + jitterDuration(jitter)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			if o.counters != nil {
				o.counters.LLMRetries.Inc()
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		text, err := o.call(reqCtx, payload)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}
	return "", lastErr
}

func (o *Orchestrator) call(ctx context.Context, payload EvidencePayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("rca: marshal evidence payload: %w", err)
	}

	model := o.cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(body)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("rca: collaborator request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("rca: collaborator returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

const systemPrompt = `You analyze a single host performance incident and respond with a JSON object matching this schema: {"cause_summary": string, "confidence": number in [0,1], "ranked_suspects": [{"pid": number, "name": string, "score": number}], "timeline": [{"ts": string, "event_type": string, "details": string}], "recs": [string]}. Respond with JSON only.`

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}
	// Anything that isn't a structured API error (timeouts, connection
	// resets, DNS failures) is treated as a transport error and retried.
	return !errors.Is(err, context.Canceled)
}

func jitterDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(2*max))) - max
}

func buildEvidence(j Job, eventSampleMax int) EvidencePayload {
	if eventSampleMax <= 0 {
		eventSampleMax = 500
	}
	events := j.Events
	if len(events) > eventSampleMax {
		events = events[len(events)-eventSampleMax:]
	}

	series := make([]HostPoint, len(j.HostWindow))
	for i, s := range j.HostWindow {
		series[i] = HostPoint{TS: s.Wall, CPUPct: s.CPUPct, RAMPct: s.RAMPct}
	}

	return EvidencePayload{
		RequestID:      fmt.Sprintf("incident-%d", j.Incident.ID),
		TraceID:        uuid.NewString(),
		IncidentID:     j.Incident.ID,
		DetectedAt:     j.Incident.DetectedAt,
		CPUAtConfirm:   j.Incident.CPUAtConfirm,
		RAMAtConfirm:   j.Incident.RAMAtConfirm,
		WindowStart:    j.Incident.WindowStart,
		WindowEnd:      j.Incident.WindowEnd,
		RankedSuspects: j.Ranked,
		Events:         events,
		HostSeries:     series,
	}
}

func parseAndValidate(raw string) (*models.RcaReport, error) {
	var report models.RcaReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("rca: parse reply: %w", err)
	}

	if report.Confidence < 0 {
		report.Confidence = 0
	}
	if report.Confidence > 1 {
		report.Confidence = 1
	}
	if len(report.Recs) == 0 {
		report.Recs = []string{"No specific remediation was returned; review the ranked suspects manually."}
	}

	if err := validate.Struct(&report); err != nil {
		return nil, fmt.Errorf("rca: schema validation: %w", err)
	}
	return &report, nil
}

// fallbackReport synthesizes a structurally complete RcaReport when the
// collaborator could not be used. Confidence is pinned to the
// deterministic floor of 0.0 rather than left to whatever the LLM
// would have said: the field stays meaningful without the LLM even
// though its success-path value is otherwise LLM-driven. The
// locally-derived suspect list and impact are kept so a failed RCA
// still reads as a complete incident.
func fallbackReport(reason string, j Job) *models.RcaReport {
	report := &models.RcaReport{
		CauseSummary:   fmt.Sprintf("<unavailable: %s>", reason),
		Confidence:     0,
		RankedSuspects: j.Ranked,
		ResourceImpact: j.Impact,
		Recs:           []string{fallbackRec(j.Culprit)},
		GeneratedAt:    time.Now().UTC(),
	}
	if j.Culprit != nil {
		report.CulpritProcess = *j.Culprit
	}
	return report
}

func fallbackRec(culprit *models.CulpritProcess) string {
	if culprit == nil || culprit.Name == "" {
		return "Investigate the top-ranked process manually; no RCA narrative is available."
	}
	return fmt.Sprintf("Investigate %s (pid %d) first; it is the top locally-ranked suspect.", culprit.Name, culprit.PID)
}
