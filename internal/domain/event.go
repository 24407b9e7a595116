package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// Event is one enriched workflow occurrence relayed to SSE clients.
// Events are immutable once published; the relay never retries or
// replays them.
type Event struct {
	MessageType    string
	SenderAgent    string
	RecipientAgent string
	QueueName      string
	RunID          string
	SentAt         int64
	// Payload carries every upstream field the relay does not interpret.
	// It is merged back into the top-level JSON object on the wire.
	Payload map[string]any
}

// Reserved keys the relay owns. Payload entries with these keys are
// shadowed by the typed fields when marshalling.
const (
	keyMsgType        = "msg_type"
	keySenderAgent    = "sender_agent"
	keyRecipientAgent = "recipient_agent"
	keyQueueName      = "queue_name"
	keyRunID          = "run_id"
	keySentAt         = "sent_at"
)

// MarshalJSON renders the event as a single flat object: payload fields
// plus the typed fields at top level. Zero-valued optional fields are
// omitted.
func (e Event) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(e.Payload)+6)
	for k, v := range e.Payload {
		obj[k] = v
	}
	obj[keyMsgType] = e.MessageType
	if e.SenderAgent != "" {
		obj[keySenderAgent] = e.SenderAgent
	}
	if e.RecipientAgent != "" {
		obj[keyRecipientAgent] = e.RecipientAgent
	}
	if e.QueueName != "" {
		obj[keyQueueName] = e.QueueName
	}
	if e.RunID != "" {
		obj[keyRunID] = e.RunID
	}
	if e.SentAt != 0 {
		obj[keySentAt] = e.SentAt
	}
	return json.Marshal(obj)
}

// UnmarshalJSON extracts the typed fields and keeps everything else in
// Payload, so an event survives a publish/subscribe round trip intact.
func (e *Event) UnmarshalJSON(data []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = FromRaw(obj)
	return nil
}

// FromRaw builds an Event from a decoded upstream message. Known keys
// are lifted into typed fields; the rest stay in Payload.
func FromRaw(obj map[string]any) Event {
	e := Event{Payload: make(map[string]any)}
	for k, v := range obj {
		switch k {
		case keyMsgType:
			e.MessageType = asString(v)
		case keySenderAgent:
			e.SenderAgent = asString(v)
		case keyRecipientAgent:
			e.RecipientAgent = asString(v)
		case keyQueueName:
			e.QueueName = asString(v)
		case keyRunID:
			e.RunID = asString(v)
		case keySentAt:
			e.SentAt = asInt64(v)
		default:
			e.Payload[k] = v
		}
	}
	return e
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		// run_id sometimes arrives as a bare number
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

// Stamp fills in SentAt with now when the upstream message carried no
// timestamp of its own.
func (e *Event) Stamp(now time.Time) {
	if e.SentAt == 0 {
		e.SentAt = now.Unix()
	}
}
