package generator

import "testing"

func TestExtractReply(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     *Reply
		wantNone bool
	}{
		{
			name: "single reply line",
			body: `data: {"type":"reply","payload":{"content":"{\"title\":\"T\",\"description\":\"D\"}"}}`,
			want: &Reply{Title: "T", Description: "D"},
		},
		{
			name: "last reply wins over earlier partials",
			body: "data: {\"type\":\"reply\",\"payload\":{\"content\":\"thinking...\"}}\n" +
				"data: {\"type\":\"token\",\"payload\":{\"content\":\"{\\\"title\\\"\"}}\n" +
				"data: {\"type\":\"reply\",\"payload\":{\"content\":\"{\\\"title\\\":\\\"Final\\\",\\\"description\\\":\\\"Answer\\\"}\"}}",
			want: &Reply{Title: "Final", Description: "Answer"},
		},
		{
			name: "reply wrapped in prose",
			body: `data: {"type":"reply","payload":{"content":"Here you go: {\"title\":\"Walk\",\"description\":\"Take a walk together\"} enjoy!"}}`,
			want: &Reply{Title: "Walk", Description: "Take a walk together"},
		},
		{
			name: "crlf separated lines",
			body: "event: message\r\ndata: {\"type\":\"reply\",\"payload\":{\"content\":\"{\\\"title\\\":\\\"A\\\",\\\"description\\\":\\\"B\\\"}\"}}\r\n",
			want: &Reply{Title: "A", Description: "B"},
		},
		{
			name:     "no data lines",
			body:     "event: ping\nretry: 3000",
			wantNone: true,
		},
		{
			name:     "reply without embedded object",
			body:     `data: {"type":"reply","payload":{"content":"sorry, try again later"}}`,
			wantNone: true,
		},
		{
			name:     "non-reply events only",
			body:     `data: {"type":"token","payload":{"content":"{\"title\":\"T\",\"description\":\"D\"}"}}`,
			wantNone: true,
		},
		{
			name:     "title is not a string",
			body:     `data: {"type":"reply","payload":{"content":"{\"title\":7,\"description\":\"D\"}"}}`,
			wantNone: true,
		},
		{
			name:     "missing description field",
			body:     `data: {"type":"reply","payload":{"content":"{\"title\":\"T\"}"}}`,
			wantNone: true,
		},
		{
			name:     "unparseable data line is skipped",
			body:     "data: not json at all\ndata: {\"type\":\"reply\",\"payload\":{\"content\":\"{\\\"title\\\":\\\"T\\\",\\\"description\\\":\\\"D\\\"}\"}}",
			want:     &Reply{Title: "T", Description: "D"},
			wantNone: false,
		},
		{
			name:     "empty body",
			body:     "",
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractReply(tt.body)
			if tt.wantNone {
				if got != nil {
					t.Fatalf("ExtractReply = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("ExtractReply = nil, want reply")
			}
			if got.Title != tt.want.Title || got.Description != tt.want.Description {
				t.Errorf("ExtractReply = %+v, want %+v", got, tt.want)
			}
		})
	}
}
