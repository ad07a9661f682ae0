package responses

import "github.com/flemzord/codexsw/internal/sse"

// Event types carrying answer text.
const (
	TypeOutputTextDelta = "response.output_text.delta"
	TypeOutputTextDone  = "response.output_text.done"
)

// textPayload is the shape shared by the output_text events.
type textPayload struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Text  string `json:"text"`
}

// OutputText reconstructs the answer from events. Deltas are appended in
// order; the first output_text.done event with a non-empty text replaces
// everything collected so far and ends the scan.
func OutputText(events []sse.Event) string {
	var text string
	for _, ev := range events {
		var p textPayload
		if !decodeObject(ev, &p) {
			continue
		}
		switch p.Type {
		case TypeOutputTextDelta:
			text += p.Delta
		case TypeOutputTextDone:
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return text
}

// CountEventTypes tallies payload types. Events without a typed JSON
// object payload are counted under "unknown".
func CountEventTypes(events []sse.Event) map[string]int {
	counts := make(map[string]int)
	for _, ev := range events {
		typ := ev.Type()
		if typ == "" {
			typ = "unknown"
		}
		counts[typ]++
	}
	return counts
}

// decodeObject decodes a JSON object payload into v. Arrays, scalars and
// non-JSON payloads report false.
func decodeObject(ev sse.Event, v any) bool {
	if ev.Kind != sse.PayloadJSON || len(ev.Data) == 0 || ev.Data[0] != '{' {
		return false
	}
	return ev.Decode(v) == nil
}
