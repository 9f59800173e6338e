package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateConversation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat/conversations" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"conv-1","title":"Morning Run","model":"gemini-2.5-flash"}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "test-token")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	conv, err := client.CreateConversation(context.Background(), "Morning Run", "gemini-2.5-flash", "")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conv.ID != "conv-1" || conv.Title != "Morning Run" {
		t.Errorf("got conversation %+v", conv)
	}
}

func TestListConversations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.RawQuery; got != "limit=50&offset=10" {
			t.Errorf("query = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"conversations":[{"id":"a","title":"One","message_count":3},{"id":"b","title":"Two"}],"total":2}`))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	convs, err := client.ListConversations(context.Background(), 50, 10)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", convs[0].MessageCount)
	}
}

func TestRateLimitedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate_limited","message":"Too many requests","retry_after_seconds":30}`))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	_, err := client.GetMessages(context.Background(), "conv-1")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not *APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d", apiErr.Status)
	}
	if apiErr.Message != "Too many requests" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.RetryAfterSeconds != 30 {
		t.Errorf("RetryAfterSeconds = %d, want 30", apiErr.RetryAfterSeconds)
	}
}

func TestNonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable\n"))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	_, err := client.GetConversation(context.Background(), "conv-1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not *APIError", err)
	}
	if apiErr.Message != "upstream unavailable" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestSendMessageStreamReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/conversations/conv-1/stream" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q", got)
		}
		w.Write([]byte("data: {\"delta\":\"Hi\"}\n\ndata: [DONE]\n"))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	body, err := client.SendMessageStream(context.Background(), "conv-1", "hello")
	if err != nil {
		t.Fatalf("SendMessageStream: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected raw stream bytes")
	}
}

func TestSendMessageStreamErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"conversation not found"}`))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	_, err := client.SendMessageStream(context.Background(), "missing", "hello")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d", apiErr.Status)
	}
	if apiErr.Message != "conversation not found" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestConnectProviderURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/oauth/auth/strava" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("redirect_uri"); got != "http://127.0.0.1:9999/callback" {
			t.Errorf("redirect_uri = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"authorization_url":"https://www.strava.com/oauth/authorize?client_id=1"}`))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	authURL, err := client.ConnectProviderURL(context.Background(), "strava", "http://127.0.0.1:9999/callback")
	if err != nil {
		t.Fatalf("ConnectProviderURL: %v", err)
	}
	if authURL != "https://www.strava.com/oauth/authorize?client_id=1" {
		t.Errorf("authorization URL = %q", authURL)
	}
}

func TestConnectProviderURLEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	if _, err := client.ConnectProviderURL(context.Background(), "strava", ""); err == nil {
		t.Error("expected error for empty authorization URL")
	}
}

func TestConnectionStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/connections" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"provider":"strava","connected":true},{"provider":"fitbit","connected":false}]`))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	statuses, err := client.ConnectionStatuses(context.Background())
	if err != nil {
		t.Fatalf("ConnectionStatuses: %v", err)
	}
	if len(statuses) != 2 || !statuses[0].Connected || statuses[1].Connected {
		t.Errorf("got statuses %+v", statuses)
	}
}
