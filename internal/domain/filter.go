package domain

import "strings"

// ClientFilter narrows which events a connected client receives.
// Each category is a set of accepted values; an empty category accepts
// everything. An event must pass every non-empty category.
type ClientFilter struct {
	MsgTypes []string `json:"msg_types,omitempty"`
	Agents   []string `json:"agents,omitempty"`
	RunIDs   []string `json:"run_ids,omitempty"`
}

// ParseFilter builds a ClientFilter from the stream endpoint's query
// parameters. Each value is a comma-separated list; surrounding
// whitespace and empty entries are discarded.
func ParseFilter(msgTypes, agents, runIDs string) ClientFilter {
	return ClientFilter{
		MsgTypes: splitList(msgTypes),
		Agents:   splitList(agents),
		RunIDs:   splitList(runIDs),
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// IsEmpty reports whether the filter accepts every event.
func (f ClientFilter) IsEmpty() bool {
	return len(f.MsgTypes) == 0 && len(f.Agents) == 0 && len(f.RunIDs) == 0
}

// Matches reports whether the event passes the filter. Categories are
// combined with AND; values within a category with OR. The agents
// category matches on either the sender or the recipient.
func (f ClientFilter) Matches(e Event) bool {
	if len(f.MsgTypes) > 0 && !contains(f.MsgTypes, e.MessageType) {
		return false
	}
	if len(f.Agents) > 0 && !contains(f.Agents, e.SenderAgent) && !contains(f.Agents, e.RecipientAgent) {
		return false
	}
	if len(f.RunIDs) > 0 && !contains(f.RunIDs, e.RunID) {
		return false
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
