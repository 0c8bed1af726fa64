package events

import "encoding/json"

// ToSSE renders an Event as the JSON payload for one `data: <json>\n\n` SSE
// line, applying the declarative field-map from §6. Fields that don't apply
// to this event's Type are omitted by the struct's own `omitempty` tags, so
// marshaling the Event directly already produces the right shape; ToSSE
// exists as the single seam a transport layer calls through, so the mapping
// can diverge from the in-memory struct later without touching callers.
func ToSSE(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Line formats an Event as a complete SSE wire line, including the
// trailing blank line SSE requires between messages.
func Line(e Event) (string, error) {
	b, err := ToSSE(e)
	if err != nil {
		return "", err
	}
	return "data: " + string(b) + "\n\n", nil
}
