package oauthcb

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"coachtui/storage"
)

func startTestListener(t *testing.T) (*Listener, *storage.SignalStore) {
	t.Helper()

	signals, err := storage.NewSignalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSignalStore: %v", err)
	}
	t.Cleanup(func() { signals.Close() })

	listener, err := Start(signals)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	return listener, signals
}

func TestCallbackRecordsCompletion(t *testing.T) {
	listener, signals := startTestListener(t)

	resp, err := http.Get(listener.RedirectURI() + "?provider=strava&success=true")
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Connection complete") {
		t.Errorf("response page missing success heading: %s", body)
	}

	result, ok, err := signals.TakeOAuthResult()
	if err != nil {
		t.Fatalf("TakeOAuthResult: %v", err)
	}
	if !ok {
		t.Fatal("no completion recorded")
	}
	if result.Provider != "strava" || !result.Success || result.Type != "oauth_completed" {
		t.Errorf("result = %+v", result)
	}
	if time.Since(time.UnixMilli(result.Timestamp)) > time.Minute {
		t.Errorf("timestamp not current: %d", result.Timestamp)
	}
}

func TestCallbackFailure(t *testing.T) {
	listener, signals := startTestListener(t)

	resp, err := http.Get(listener.RedirectURI() + "?provider=fitbit&error=access_denied")
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Connection failed") {
		t.Errorf("response page missing failure heading: %s", body)
	}

	result, ok, err := signals.TakeOAuthResult()
	if err != nil || !ok {
		t.Fatalf("TakeOAuthResult = (%v, %v)", ok, err)
	}
	if result.Success {
		t.Error("denied authorization recorded as success")
	}
}

func TestCallbackNotifies(t *testing.T) {
	listener, _ := startTestListener(t)

	resp, err := http.Get(listener.RedirectURI() + "?provider=strava&success=true")
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	resp.Body.Close()

	select {
	case <-listener.Notify():
	case <-time.After(2 * time.Second):
		t.Fatal("no wakeup delivered")
	}
}

// Record must be durable before the wakeup, so a reader woken by Notify
// always finds the completion.
func TestRecordVisibleAtWakeup(t *testing.T) {
	listener, signals := startTestListener(t)

	resp, err := http.Get(listener.RedirectURI() + "?provider=strava&success=true")
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	resp.Body.Close()

	select {
	case <-listener.Notify():
	case <-time.After(2 * time.Second):
		t.Fatal("no wakeup delivered")
	}

	if _, ok, _ := signals.TakeOAuthResult(); !ok {
		t.Error("wakeup fired but no record in store")
	}
}
