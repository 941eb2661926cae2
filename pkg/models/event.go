package models

import (
	"encoding/json"
	"time"
)

// EventKind enumerates the normalized ETW-style event kinds C1 produces.
// Unknown tracer kinds fold to EventOther with the original string kept
// in the payload under "raw_kind".
type EventKind string

const (
	EventProcessStart   EventKind = "process_start"
	EventProcessStop    EventKind = "process_stop"
	EventThreadStart    EventKind = "thread_start"
	EventContextSwitch  EventKind = "context_switch"
	EventTCPSend        EventKind = "tcp_send"
	EventTCPRecv        EventKind = "tcp_recv"
	EventFileRead       EventKind = "file_read"
	EventFileWrite      EventKind = "file_write"
	EventCPUSample      EventKind = "cpu_sample"
	EventMemSample      EventKind = "mem_sample"
	EventGC             EventKind = "gc"
	EventException      EventKind = "exception"
	EventOther          EventKind = "other"
)

var knownEventKinds = map[string]EventKind{
	string(EventProcessStart):  EventProcessStart,
	string(EventProcessStop):   EventProcessStop,
	string(EventThreadStart):   EventThreadStart,
	string(EventContextSwitch): EventContextSwitch,
	string(EventTCPSend):       EventTCPSend,
	string(EventTCPRecv):       EventTCPRecv,
	string(EventFileRead):      EventFileRead,
	string(EventFileWrite):     EventFileWrite,
	string(EventCPUSample):     EventCPUSample,
	string(EventMemSample):     EventMemSample,
	string(EventGC):            EventGC,
	string(EventException):     EventException,
}

// NormalizeEventKind folds an arbitrary tracer-supplied string into the
// known enumeration, returning EventOther for anything unrecognized.
func NormalizeEventKind(raw string) EventKind {
	if kind, ok := knownEventKinds[raw]; ok {
		return kind
	}
	return EventOther
}

// ScalarKind tags the dynamic type carried by a Scalar payload value.
type ScalarKind int

const (
	ScalarNull ScalarKind = iota
	ScalarString
	ScalarInt
	ScalarFloat
	ScalarBool
)

// Scalar is a decoded-once tagged value for the event payload map.
// Downstream code never touches raw JSON again.
type Scalar struct {
	Kind ScalarKind
	Str  string
	Int  int64
	F64  float64
	Bool bool
}

func NullScalar() Scalar           { return Scalar{Kind: ScalarNull} }
func StringScalar(v string) Scalar { return Scalar{Kind: ScalarString, Str: v} }
func IntScalar(v int64) Scalar     { return Scalar{Kind: ScalarInt, Int: v} }
func FloatScalar(v float64) Scalar { return Scalar{Kind: ScalarFloat, F64: v} }
func BoolScalar(v bool) Scalar     { return Scalar{Kind: ScalarBool, Bool: v} }

// Float64 returns the scalar as a float64, or (0, false) if it is not
// numeric. Used by components that sum payload fields (disk/net bytes).
func (s Scalar) Float64() (float64, bool) {
	switch s.Kind {
	case ScalarInt:
		return float64(s.Int), true
	case ScalarFloat:
		return s.F64, true
	default:
		return 0, false
	}
}

// MarshalJSON renders the scalar back to its native JSON representation.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case ScalarString:
		return json.Marshal(s.Str)
	case ScalarInt:
		return json.Marshal(s.Int)
	case ScalarFloat:
		return json.Marshal(s.F64)
	case ScalarBool:
		return json.Marshal(s.Bool)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a raw JSON scalar (string, number, bool, or
// null) into its tagged representation.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*s = NullScalar()
	case string:
		*s = StringScalar(val)
	case bool:
		*s = BoolScalar(val)
	case float64:
		if val == float64(int64(val)) {
			*s = IntScalar(int64(val))
		} else {
			*s = FloatScalar(val)
		}
	default:
		*s = NullScalar()
	}
	return nil
}

// Event is a single normalized tracer record.
type Event struct {
	RecvMono   time.Duration     `json:"-"`
	Wall       time.Time         `json:"ts"`
	Kind       EventKind         `json:"event_type"`
	PID        *int32            `json:"pid,omitempty"`
	TID        *int32            `json:"tid,omitempty"`
	Core       *int16            `json:"cpu,omitempty"`
	Provider   string            `json:"provider"`
	Payload    map[string]Scalar `json:"payload,omitempty"`
}

// PayloadFloat returns a payload field as a float64, defaulting to 0
// when absent or non-numeric.
func (e *Event) PayloadFloat(key string) float64 {
	if e == nil || e.Payload == nil {
		return 0
	}
	if v, ok := e.Payload[key]; ok {
		if f, ok := v.Float64(); ok {
			return f
		}
	}
	return 0
}

// PayloadString returns a payload field as a string, or "" when absent.
func (e *Event) PayloadString(key string) string {
	if e == nil || e.Payload == nil {
		return ""
	}
	if v, ok := e.Payload[key]; ok && v.Kind == ScalarString {
		return v.Str
	}
	return ""
}
