package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMarshal_FlattensPayload(t *testing.T) {
	e := Event{
		MessageType: "stf_gen",
		SenderAgent: "daq-simulator",
		QueueName:   "epictopic",
		RunID:       "101",
		SentAt:      1700000000,
		Payload: map[string]any{
			"filename": "stf_101_0001.dat",
			"state":    "generated",
		},
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var obj map[string]any
	require.NoError(t, json.Unmarshal(data, &obj))

	assert.Equal(t, "stf_gen", obj["msg_type"])
	assert.Equal(t, "daq-simulator", obj["sender_agent"])
	assert.Equal(t, "101", obj["run_id"])
	assert.Equal(t, float64(1700000000), obj["sent_at"])
	assert.Equal(t, "stf_101_0001.dat", obj["filename"])
	assert.Equal(t, "generated", obj["state"])
	assert.NotContains(t, obj, "recipient_agent")
}

func TestEventRoundTrip(t *testing.T) {
	e := Event{
		MessageType:    "data_ready",
		SenderAgent:    "data-agent",
		RecipientAgent: "processing-agent",
		RunID:          "7",
		SentAt:         1700000001,
		Payload:        map[string]any{"filename": "f.dat"},
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, e, got)
}

func TestFromRaw_NumericRunID(t *testing.T) {
	e := FromRaw(map[string]any{
		"msg_type": "stf_gen",
		"run_id":   float64(42),
		"substate": "done",
	})

	assert.Equal(t, "42", e.RunID)
	assert.Equal(t, map[string]any{"substate": "done"}, e.Payload)
}

func TestStamp_OnlyWhenUnset(t *testing.T) {
	now := time.Unix(1700000500, 0)

	e := Event{}
	e.Stamp(now)
	assert.Equal(t, int64(1700000500), e.SentAt)

	e = Event{SentAt: 1}
	e.Stamp(now)
	assert.Equal(t, int64(1), e.SentAt)
}
