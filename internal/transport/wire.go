// Package transport carries chat turns to the assistant service over
// POST /api/chat and maps the JSON wire format to domain types.
package transport

import (
	"time"

	"mediachat/internal/conversation"
	"mediachat/internal/metadata"
)

// ChatPath is the single endpoint the client talks to.
const ChatPath = "/api/chat"

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string         `json:"message"`
	History []HistoryEntry `json:"history"`
}

// HistoryEntry is one prior turn sent as context.
type HistoryEntry struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// ChatResponse is a successful reply. Response is a pointer so a missing
// field can be told apart from an empty answer.
type ChatResponse struct {
	Response *string       `json:"response"`
	Data     *StatsPayload `json:"data,omitempty"`
}

// StatsPayload is the content-database summary in wire form.
type StatsPayload struct {
	TotalRecords   int      `json:"total_records"`
	Types          []string `json:"types"`
	RelatedRecords *int     `json:"related_records,omitempty"`
	LatestUpdate   *string  `json:"latest_update,omitempty"`
}

// ErrorResponse is what the service writes on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// timeLayouts are tried in order when parsing latest_update.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// EncodeHistory converts conversation turns to wire entries. The result is
// never nil so it always marshals as a JSON array.
func EncodeHistory(turns []conversation.Turn) []HistoryEntry {
	out := make([]HistoryEntry, len(turns))
	for i, t := range turns {
		out[i] = HistoryEntry{Content: t.Content, Role: string(t.Role)}
	}
	return out
}

// DecodeHistory converts wire entries back to turns. Entries with an unknown
// role are skipped.
func DecodeHistory(entries []HistoryEntry) []conversation.Turn {
	out := make([]conversation.Turn, 0, len(entries))
	for _, e := range entries {
		role := conversation.Role(e.Role)
		if !role.Valid() {
			continue
		}
		out = append(out, conversation.Turn{Content: e.Content, Role: role})
	}
	return out
}

// Stats converts the payload to a DbStats. An unparsable latest_update is
// dropped rather than failing the reply.
func (p StatsPayload) Stats() metadata.DbStats {
	s := metadata.DbStats{
		TotalRecords: p.TotalRecords,
		Types:        metadata.NormalizeTypes(p.Types),
	}
	if p.RelatedRecords != nil {
		v := *p.RelatedRecords
		s.RelatedRecords = &v
	}
	if p.LatestUpdate != nil {
		if ts, ok := ParseTime(*p.LatestUpdate); ok {
			s.LatestUpdate = &ts
		}
	}
	return s
}

// PayloadFromStats is the inverse of StatsPayload.Stats. Timestamps are
// written as RFC 3339 in UTC.
func PayloadFromStats(s metadata.DbStats) StatsPayload {
	p := StatsPayload{TotalRecords: s.TotalRecords, Types: s.Types}
	if p.Types == nil {
		p.Types = []string{}
	}
	if s.RelatedRecords != nil {
		v := *s.RelatedRecords
		p.RelatedRecords = &v
	}
	if s.LatestUpdate != nil {
		v := s.LatestUpdate.UTC().Format(time.RFC3339)
		p.LatestUpdate = &v
	}
	return p
}

// ParseTime accepts the timestamp shapes the service is known to emit.
func ParseTime(raw string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
