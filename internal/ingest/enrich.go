package ingest

import (
	"time"

	"github.com/BNLNPPS/swf-monitor/internal/domain"
)

// Agents known to emit or consume each workflow message type. Used to
// fill in sender/recipient when the upstream message does not carry
// them itself.
var senderByMsgType = map[string]string{
	"run_imminent":        "daq-simulator",
	"start_run":           "daq-simulator",
	"stf_gen":             "daq-simulator",
	"pause_run":           "daq-simulator",
	"resume_run":          "daq-simulator",
	"end_run":             "daq-simulator",
	"data_ready":          "data-agent",
	"processing_complete": "processing-agent",
}

var recipientByMsgType = map[string]string{
	"run_imminent":        "all-agents",
	"start_run":           "all-agents",
	"stf_gen":             "data-agent",
	"pause_run":           "all-agents",
	"resume_run":          "all-agents",
	"end_run":             "all-agents",
	"data_ready":          "processing-agent",
	"processing_complete": "monitoring-agent",
}

// isHeartbeat reports whether the raw message is an agent heartbeat
// rather than a workflow event.
func isHeartbeat(raw map[string]any) bool {
	_, hasAgent := raw["agent_name"]
	_, hasStatus := raw["status"]
	return hasAgent && hasStatus
}

// isWorkflowMessage reports whether the raw message describes a
// workflow event.
func isWorkflowMessage(raw map[string]any) bool {
	_, ok := raw["msg_type"]
	return ok
}

// enrich turns a decoded workflow message into a relay event: the
// sender comes from processed_by or the per-type table, the recipient
// from the per-type table, the queue name from the frame destination,
// and sent_at is stamped at receipt when absent.
func enrich(raw map[string]any, destination string, now time.Time) domain.Event {
	e := domain.FromRaw(raw)

	if e.SenderAgent == "" {
		if v, ok := raw["processed_by"].(string); ok && v != "" {
			e.SenderAgent = v
		} else if v, ok := senderByMsgType[e.MessageType]; ok {
			e.SenderAgent = v
		} else {
			e.SenderAgent = "unknown"
		}
	}
	if e.RecipientAgent == "" {
		if v, ok := recipientByMsgType[e.MessageType]; ok {
			e.RecipientAgent = v
		} else {
			e.RecipientAgent = "unknown"
		}
	}
	if e.QueueName == "" {
		e.QueueName = destination
	}
	e.Stamp(now)
	return e
}
