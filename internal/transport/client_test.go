package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stealthsense/behaviortrace-agent/internal/models"
)

func TestPostBehaviorSuccess(t *testing.T) {
	var received models.CollectionPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected application/json, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(models.CollectResponse{Status: "success", DataID: "abc"})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)
	resp, err := client.PostBehavior(context.Background(), models.CollectionPayload{
		SessionID: "s-1",
		Timestamp: 1234,
	})
	if err != nil {
		t.Fatalf("PostBehavior failed: %v", err)
	}
	if resp.Status != "success" || resp.DataID != "abc" {
		t.Errorf("Expected success/abc, got %+v", resp)
	}
	if received.SessionID != "s-1" {
		t.Errorf("Expected sessionId s-1 on the wire, got %s", received.SessionID)
	}
}

func TestPostBehaviorNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)
	if _, err := client.PostBehavior(context.Background(), models.CollectionPayload{SessionID: "s-1"}); err == nil {
		t.Fatal("Expected an error for a 500 response")
	}
}

func TestPostBehaviorUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // nothing listening anymore

	client := NewClient(server.URL, server.URL)
	if _, err := client.PostBehavior(context.Background(), models.CollectionPayload{SessionID: "s-1"}); err == nil {
		t.Fatal("Expected an error for an unreachable endpoint")
	}
}

func TestClassifyDecodesVerdict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p models.ClassificationPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		if p.ActionType != "task_completion" {
			t.Errorf("Expected action_type task_completion, got %s", p.ActionType)
		}
		json.NewEncoder(w).Encode(models.DetectionResult{Prediction: "bot", Confidence: 0.96})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)
	result, err := client.Classify(context.Background(), models.ClassificationPayload{
		SessionID:  "s-1",
		ActionType: "task_completion",
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Prediction != "bot" || result.IsHuman {
		t.Errorf("Expected bot verdict, got %+v", result)
	}
}

func TestClassifyMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL)
	if _, err := client.Classify(context.Background(), models.ClassificationPayload{SessionID: "s-1"}); err == nil {
		t.Fatal("Expected an error for a malformed response body")
	}
}
