// Package oauthcb runs the local OAuth callback listener. The provider's
// authorization flow redirects the browser back to this listener, which
// records the completion in the shared signal store and nudges the running
// app. The store is the source of truth; the nudge is only a wakeup.
package oauthcb

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"coachtui/config"
	"coachtui/storage"
)

const responsePage = `<!DOCTYPE html>
<html>
<head><title>CoachTUI</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em;">
<h2>%s</h2>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`

// Listener serves the callback endpoint on an ephemeral loopback port.
type Listener struct {
	signals *storage.SignalStore
	server  *http.Server
	addr    string
	notify  chan struct{}
}

// Start binds the listener and begins serving. Loopback only; the redirect
// URI handed to the server points here.
func Start(signals *storage.SignalStore) (*Listener, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to bind callback listener: %w", err)
	}

	l := &Listener{
		signals: signals,
		addr:    ln.Addr().String(),
		notify:  make(chan struct{}, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", l.handleCallback)

	l.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := l.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[OAuthCB] listener stopped: %v", err)
			}
		}
	}()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[OAuthCB] listening on %s", l.addr)
	}

	return l, nil
}

// RedirectURI is the callback address to hand to the authorization flow.
func (l *Listener) RedirectURI() string {
	return fmt.Sprintf("http://%s/callback", l.addr)
}

// Notify delivers a wakeup after each recorded completion. The channel has a
// one-slot buffer: coalescing is fine because the payload lives in the store.
func (l *Listener) Notify() <-chan struct{} {
	return l.notify
}

// Close shuts the listener down.
func (l *Listener) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return l.server.Shutdown(ctx)
}

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	provider := query.Get("provider")
	success := query.Get("success") == "true" && query.Get("error") == ""

	result := storage.OAuthResult{
		Type:      "oauth_completed",
		Provider:  provider,
		Success:   success,
		Timestamp: time.Now().UnixMilli(),
	}

	// The durable record must exist before the wakeup fires, otherwise a
	// fast reader finds an empty store and the completion is lost until the
	// next poll.
	if err := l.signals.PutOAuthResult(result); err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[OAuthCB] failed to record completion: %v", err)
		}
		http.Error(w, "failed to record completion", http.StatusInternalServerError)
		return
	}

	select {
	case l.notify <- struct{}{}:
	default:
	}

	heading := "Connection complete"
	if !success {
		heading = "Connection failed"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, responsePage, heading)
}
