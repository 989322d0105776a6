package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/grayhound-dev/grayhound/pkg/status"
)

// EventType represents the type of an inbound agent message.
type EventType string

// event types sent by the agent.
const (
	EventScanResult     EventType = "scan_result"
	EventPhaseAComplete EventType = "phase_a_complete"
	EventPhaseBComplete EventType = "phase_b_complete"
	EventPhaseCComplete EventType = "phase_c_complete"
	EventRemovalChecked EventType = "removal_status_checked"
	EventFinalReport    EventType = "final_report_generated"
	EventProgress       EventType = "progress"
	EventError          EventType = "error"
	EventDBList         EventType = "db_list"

	// EventRaw is not sent by the agent; it wraps frames that are not recognized tagged messages.
	EventRaw EventType = "raw"

	// legacy single-item verification answer, folded into EventRemovalChecked
	eventRemovalVerification EventType = "removal_verification"
)

// Event is one decoded inbound message. only the fields relevant to Type are populated.
type Event struct {
	Type        EventType
	Items       []Item         // scan_result
	Results     []Outcome      // phase_*_complete, removal_status_checked
	SingleCheck bool           // removal_status_checked answering a single-item verify
	Feedback    string         // final_report_generated, phase_a_complete
	Text        string         // progress status, error message, raw frame text
	Catalog     []CatalogEntry // db_list
}

// CatalogEntry is one row of the agent's bloatware catalog.
type CatalogEntry struct {
	Name       string `json:"program_name"`
	MaskedName string `json:"masked_name,omitempty"`
	RiskScore  int    `json:"risk_score"`
	Reason     string `json:"reason,omitempty"`
	Ignored    bool   `json:"-"`
}

// UnmarshalJSON accepts ignored as a bool or as the agent's "Yes"/"No" strings, and risk_score
// in any form decodeRiskScore takes.
func (c *CatalogEntry) UnmarshalJSON(data []byte) error {
	type plain CatalogEntry
	aux := struct {
		*plain
		RiskScore json.RawMessage `json:"risk_score"`
		Ignored   json.RawMessage `json:"ignored"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	score, err := decodeRiskScore(aux.RiskScore)
	if err != nil {
		return err
	}
	c.RiskScore = score
	c.Ignored = false
	if len(aux.Ignored) == 0 {
		return nil
	}
	var b bool
	if err := json.Unmarshal(aux.Ignored, &b); err == nil {
		c.Ignored = b
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.Ignored, &s); err == nil {
		c.Ignored = strings.EqualFold(s, "yes") || strings.EqualFold(s, "true")
	}
	return nil
}

// scanItem is an Item as written in scan_result, with the score still raw.
type scanItem struct {
	Item
	RiskScore json.RawMessage `json:"risk_score"`
}

// decodeRiskScore reads a risk_score written as an integer, a fractional number or a numeric
// string, rounding to the nearest integer. the scores come from a language model and are not
// always integral. a missing or null score is 0.
func decodeRiskScore(raw json.RawMessage) (int, error) {
	v := strings.TrimSpace(string(raw))
	if v == "" || v == "null" {
		return 0, nil
	}
	v = strings.Trim(v, `"`)
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("risk_score %s is not a number", raw)
	}
	return int(math.Round(f)), nil
}

// envelope is the tagged {type, data} wrapper of every structured agent message.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var errNoData = errors.New("missing data")

// Decode parses one inbound frame. frames that are not tagged messages, carry an unknown
// type or malformed data are returned as EventRaw with the frame text, never as an error;
// the agent interleaves free-text diagnostics with structured events.
func Decode(frame []byte) Event {
	raw := Event{Type: EventRaw, Text: strings.TrimSpace(string(frame))}

	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Type == "" {
		return raw
	}

	ev, err := decodeData(EventType(env.Type), env.Data)
	if err != nil {
		return raw
	}
	return ev
}

func decodeData(typ EventType, data json.RawMessage) (Event, error) {
	switch typ {
	case EventScanResult:
		var wire []scanItem
		if !isNull(data) {
			if err := json.Unmarshal(data, &wire); err != nil {
				return Event{}, fmt.Errorf("decode %s: %w", typ, err)
			}
		}
		var items []Item
		if wire != nil {
			items = make([]Item, 0, len(wire))
		}
		for _, w := range wire {
			score, err := decodeRiskScore(w.RiskScore)
			if err != nil {
				return Event{}, fmt.Errorf("decode %s: item %q: %w", typ, w.Name, err)
			}
			w.Item.RiskScore = score
			items = append(items, w.Item)
		}
		return Event{Type: typ, Items: items}, nil

	case EventPhaseAComplete, EventPhaseBComplete, EventPhaseCComplete:
		var payload struct {
			Results  []Outcome `json:"results"`
			Feedback string    `json:"llm_feedback"`
		}
		if err := unmarshalObject(data, &payload); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", typ, err)
		}
		return Event{Type: typ, Results: payload.Results, Feedback: payload.Feedback}, nil

	case EventRemovalChecked:
		var payload struct {
			Results     []Outcome `json:"results"`
			SingleCheck bool      `json:"is_single_check"`
		}
		if err := unmarshalObject(data, &payload); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", typ, err)
		}
		return Event{Type: typ, Results: payload.Results, SingleCheck: payload.SingleCheck}, nil

	case eventRemovalVerification:
		var payload struct {
			Name      string `json:"program_name"`
			IsRemoved bool   `json:"is_removed"`
			Message   string `json:"message"`
		}
		if err := unmarshalObject(data, &payload); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", typ, err)
		}
		if payload.Name == "" {
			return Event{}, fmt.Errorf("decode %s: missing program_name", typ)
		}
		st := status.OutcomeStillExists
		if payload.IsRemoved {
			st = status.OutcomeSuccess
		}
		res := Outcome{Name: payload.Name, Status: st, Message: payload.Message}
		return Event{Type: EventRemovalChecked, Results: []Outcome{res}, SingleCheck: true}, nil

	case EventFinalReport:
		var payload struct {
			Feedback string `json:"llm_feedback"`
		}
		if err := unmarshalObject(data, &payload); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", typ, err)
		}
		return Event{Type: typ, Feedback: payload.Feedback}, nil

	case EventProgress:
		return Event{Type: typ, Text: textOf(data, "status")}, nil

	case EventError:
		return Event{Type: typ, Text: textOf(data, "message")}, nil

	case EventDBList:
		var entries []CatalogEntry
		if !isNull(data) {
			if err := json.Unmarshal(data, &entries); err != nil {
				return Event{}, fmt.Errorf("decode %s: %w", typ, err)
			}
		}
		return Event{Type: typ, Catalog: entries}, nil

	default:
		return Event{}, fmt.Errorf("unknown event type %q", typ)
	}
}

// unmarshalObject decodes a required JSON object payload.
func unmarshalObject(data json.RawMessage, v any) error {
	if isNull(data) {
		return errNoData
	}
	return json.Unmarshal(data, v)
}

// textOf extracts display text from a payload that is either a JSON string or an object
// carrying the text in field. anything else is returned as compact JSON.
func textOf(data json.RawMessage, field string) string {
	if isNull(data) {
		return ""
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		if v, ok := obj[field]; ok {
			if err := json.Unmarshal(v, &s); err == nil {
				return s
			}
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return strings.TrimSpace(string(data))
	}
	return buf.String()
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
