package source

import (
	"encoding/json"
	"time"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

// rawRecord mirrors the tracer's one-JSON-object-per-line wire format.
type rawRecord struct {
	TS        string                 `json:"ts"`
	EventType string                 `json:"event_type"`
	PID       *int32                 `json:"pid"`
	TID       *int32                 `json:"tid"`
	Provider  string                 `json:"provider"`
	Payload   map[string]interface{} `json:"payload"`
	Core      *int16                 `json:"cpu"`
	NetBytes  *int64                 `json:"net_bytes"`
	DiskBytes *int64                 `json:"disk_bytes"`
	NewPID    *int32                 `json:"new_pid"`
	NewTID    *int32                 `json:"new_tid"`
	Reason    string                 `json:"reason"`
}

// normalize turns one decoded wire record into a normalized Event.
// nowFn supplies the wall clock when the tracer omits or mangles "ts".
func normalize(raw rawRecord, recvMono time.Duration, nowFn func() time.Time) models.Event {
	wall := parseWallTime(raw.TS, nowFn)

	kind := models.NormalizeEventKind(raw.EventType)

	payload := make(map[string]models.Scalar, len(raw.Payload)+4)
	for k, v := range raw.Payload {
		payload[k] = scalarFromAny(v)
	}
	if kind == models.EventOther && raw.EventType != "" {
		payload["raw_kind"] = models.StringScalar(raw.EventType)
	}
	if raw.NetBytes != nil {
		payload["net_bytes"] = models.IntScalar(*raw.NetBytes)
	}
	if raw.DiskBytes != nil {
		payload["disk_bytes"] = models.IntScalar(*raw.DiskBytes)
	}
	if raw.NewPID != nil {
		payload["new_pid"] = models.IntScalar(int64(*raw.NewPID))
	}
	if raw.NewTID != nil {
		payload["new_tid"] = models.IntScalar(int64(*raw.NewTID))
	}
	if raw.Reason != "" {
		payload["reason"] = models.StringScalar(raw.Reason)
	}

	return models.Event{
		RecvMono: recvMono,
		Wall:     wall,
		Kind:     kind,
		PID:      normalizePID(raw.PID),
		TID:      raw.TID,
		Core:     raw.Core,
		Provider: raw.Provider,
		Payload:  payload,
	}
}

// normalizePID maps the tracer's "-1 means absent" convention to a nil
// pointer.
func normalizePID(pid *int32) *int32 {
	if pid == nil || *pid < 0 {
		return nil
	}
	return pid
}

func parseWallTime(ts string, nowFn func() time.Time) time.Time {
	if ts == "" {
		return nowFn().UTC()
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UTC()
	}
	return nowFn().UTC()
}

func scalarFromAny(v interface{}) models.Scalar {
	switch val := v.(type) {
	case nil:
		return models.NullScalar()
	case string:
		return models.StringScalar(val)
	case bool:
		return models.BoolScalar(val)
	case float64:
		if val == float64(int64(val)) {
			return models.IntScalar(int64(val))
		}
		return models.FloatScalar(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return models.IntScalar(i)
		}
		if f, err := val.Float64(); err == nil {
			return models.FloatScalar(f)
		}
		return models.StringScalar(val.String())
	default:
		return models.NullScalar()
	}
}
