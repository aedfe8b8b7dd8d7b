package generator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const replyBody = `data: {"type":"reply","payload":{"content":"{\"title\":\"T\",\"description\":\"D\"}"}}`

func TestClient_Generate(t *testing.T) {
	var got request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("request body not JSON: %v", err)
		}
		io.WriteString(w, replyBody)
	}))
	defer server.Close()

	client := NewClient(server.URL, "app-key", time.Second)
	payload := BuildRequest(nil, nil)

	reply, err := client.Generate(context.Background(), "group-1", payload)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if reply.Title != "T" || reply.Description != "D" {
		t.Errorf("reply = %+v, want T/D", reply)
	}

	if got.RequestID == "" {
		t.Error("request_id must be set")
	}
	if got.SessionID != "group-1" || got.VisitorBizID != "group-1" {
		t.Errorf("session/visitor = %q/%q, want group id", got.SessionID, got.VisitorBizID)
	}
	if got.BotAppKey != "app-key" {
		t.Errorf("bot_app_key = %q, want app-key", got.BotAppKey)
	}
	if got.Stream != "disable" {
		t.Errorf("stream = %q, want disable", got.Stream)
	}

	var content RequestPayload
	if err := json.Unmarshal([]byte(got.Content), &content); err != nil {
		t.Fatalf("content blob not JSON: %v", err)
	}
	if content.SpiceLevel != 3 || content.TimesPerDay != 2 {
		t.Errorf("content defaults = %+v", content)
	}
}

func TestClient_Generate_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", time.Second)
	_, err := client.Generate(context.Background(), "g", BuildRequest(nil, nil))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestClient_Generate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", 50*time.Millisecond)
	_, err := client.Generate(context.Background(), "g", BuildRequest(nil, nil))
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestClient_Generate_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"type\":\"token\",\"payload\":{\"content\":\"partial\"}}\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", time.Second)
	_, err := client.Generate(context.Background(), "g", BuildRequest(nil, nil))
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestClient_Generate_ConnectionRefused(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "k", time.Second)
	_, err := client.Generate(context.Background(), "g", BuildRequest(nil, nil))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
