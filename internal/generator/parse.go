package generator

import (
	"encoding/json"
	"strings"
)

// Reply is the structured answer extracted from the bot's event stream.
type Reply struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// sseEvent is the decoded payload of one "data:" line.
type sseEvent struct {
	Type    string `json:"type"`
	Payload struct {
		Content string `json:"content"`
	} `json:"payload"`
}

// ExtractReply scans the bot's newline-delimited event log for the final
// structured answer.
//
// Lines are scanned in reverse so the most recent event wins: earlier
// lines may be partial streaming events that do not yet contain the full
// answer. A match is a "data:" line whose JSON payload has type "reply"
// and whose content carries an embedded JSON object with string title and
// description fields. Returns nil when no line matches.
func ExtractReply(body string) *Reply {
	lines := splitLines(body)
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		var ev sseEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(line[len("data:"):])), &ev); err != nil {
			continue
		}
		if ev.Type != "reply" || ev.Payload.Content == "" {
			continue
		}

		if r := extractEmbedded(ev.Payload.Content); r != nil {
			return r
		}
	}
	return nil
}

// extractEmbedded pulls the first brace-delimited JSON object out of the
// reply content and requires string title/description fields.
func extractEmbedded(content string) *Reply {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil
	}

	var r Reply
	if err := json.Unmarshal(raw["title"], &r.Title); err != nil {
		return nil
	}
	if err := json.Unmarshal(raw["description"], &r.Description); err != nil {
		return nil
	}
	return &r
}

func splitLines(s string) []string {
	return strings.FieldsFunc(strings.ReplaceAll(s, "\r\n", "\n"), func(r rune) bool {
		return r == '\n'
	})
}
