package model

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"coachtui/config"
	"coachtui/storage"
)

const (
	// oauthResultMaxAge bounds how old a completion record may be and still
	// trigger effects. Anything older is leftover from an abandoned attempt.
	oauthResultMaxAge = 5 * time.Minute

	// oauthCooldown is how long the processing guard stays up after a claim.
	oauthCooldown = 2 * time.Second

	// storagePollInterval is the fallback trigger cadence for completions
	// written while this process never regains focus.
	storagePollInterval = time.Second

	// redirectDelay gives the user a moment to read the assistant's message
	// before the browser opens.
	redirectDelay = 1500 * time.Millisecond

	notificationDuration = 4 * time.Second
)

// ConnectProvider starts the authorization flow: remember which provider is
// in flight, then ask the server for a fresh authorization URL pointing back
// at the local callback listener.
func (m *Model) ConnectProvider(provider, redirectURI string) tea.Cmd {
	m.ConnectingProvider = provider
	client := m.API
	return func() tea.Msg {
		url, err := client.ConnectProviderURL(context.Background(), provider, redirectURI)
		return AuthorizationURLMsg{Provider: provider, URL: url, Err: err}
	}
}

// FetchConnections retrieves per-provider connection statuses
func (m *Model) FetchConnections() tea.Cmd {
	client := m.API
	return func() tea.Msg {
		statuses, err := client.ConnectionStatuses(context.Background())
		return ConnectionStatusesMsg{Statuses: statuses, Err: err}
	}
}

// OpenAuthBrowser validates the authorization URL and opens the system
// browser. Validation happens here, at navigation time, not just when the
// URL was first seen; the allowlist may look different by now and a URL is
// only as trustworthy as the moment it is used.
func (m *Model) OpenAuthBrowser(rawURL, provider string) tea.Cmd {
	if err := ValidateAuthRedirect(rawURL, m.Config.ProviderDomains); err != nil {
		return func() tea.Msg {
			return BrowserOpenedMsg{Provider: provider, Err: err}
		}
	}

	return func() tea.Msg {
		err := openBrowser(rawURL)
		return BrowserOpenedMsg{Provider: provider, Err: err}
	}
}

// NavigateAfterDelay schedules the delayed browser redirect. The URL is
// revalidated when the tick fires.
func NavigateAfterDelay(url string) tea.Cmd {
	return tea.Tick(redirectDelay, func(time.Time) tea.Msg {
		return NavigateRedirectMsg{URL: url}
	})
}

// CheckOAuthCompletion is the single funnel for every completion trigger:
// terminal focus, resume from suspend, the storage poll and the callback
// listener all land here. The completion record is claimed (removed) before
// it is inspected and an in-memory guard is raised synchronously, so however
// many triggers fire for one completion, its effects run exactly once.
func (m *Model) CheckOAuthCompletion() tea.Cmd {
	if m.Signals == nil || m.oauthProcessing {
		return nil
	}

	result, ok, err := m.Signals.TakeOAuthResult()
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[OAuth] completion claim failed: %v", err)
		}
		return nil
	}
	if !ok {
		return nil
	}

	m.oauthProcessing = true
	cmds := []tea.Cmd{scheduleOAuthCooldown()}

	if time.Since(time.UnixMilli(result.Timestamp)) > oauthResultMaxAge {
		// Leftover from an abandoned attempt. Nothing may act on it, nor on
		// the context recorded alongside it.
		if config.DebugLog != nil {
			config.DebugLog.Printf("[OAuth] discarding stale completion for %s", result.Provider)
		}
		if err := m.Signals.PurgeOAuthRecords(); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[OAuth] purge failed: %v", err)
		}
		return tea.Batch(cmds...)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[OAuth] completion claimed: provider=%s success=%v", result.Provider, result.Success)
	}

	m.ConnectingProvider = ""
	if result.Success {
		m.Notification = fmt.Sprintf("Connected to %s", result.Provider)
	} else {
		m.Notification = fmt.Sprintf("Failed to connect %s", result.Provider)
	}
	cmds = append(cmds, m.FetchConnections(), scheduleNotificationClear())

	restoreScheduled := false
	if id, ok, err := m.Signals.TakeConversationRestore(); err == nil && ok && id != "" {
		if m.CurrentConversation == nil || m.CurrentConversation.ID != id {
			restoreScheduled = true
			restoreID := id
			cmds = append(cmds, func() tea.Msg {
				return ConversationRestoreMsg{ConversationID: restoreID}
			})
		}
	}

	if result.Success {
		// With a restore in flight the replay waits until the conversation
		// has actually loaded; the update loop retries it then.
		if !restoreScheduled {
			if cmd := m.TryReplay(); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	} else {
		// A failed connection abandons the deferred action; replaying it
		// would just produce the same authorization prompt again.
		_ = m.Signals.Delete(storage.KeyPendingAction)
	}

	return tea.Batch(cmds...)
}

// ClearOAuthGuard lowers the completion-processing guard.
func (m *Model) ClearOAuthGuard() {
	m.oauthProcessing = false
}

// StorageChanged reports whether another connection has written to the
// signal store since the last check, advancing the change cursor either way.
func (m *Model) StorageChanged() bool {
	if m.Signals == nil {
		return false
	}
	v, err := m.Signals.DataVersion()
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[OAuth] data version check failed: %v", err)
		}
		return false
	}
	if v == m.lastDataVersion {
		return false
	}
	m.lastDataVersion = v
	return true
}

// SchedulePoll arms the next storage change check.
func SchedulePoll() tea.Cmd {
	return tea.Tick(storagePollInterval, func(time.Time) tea.Msg {
		return StoragePollTickMsg{}
	})
}

func scheduleOAuthCooldown() tea.Cmd {
	return tea.Tick(oauthCooldown, func(time.Time) tea.Msg {
		return OAuthCooldownMsg{}
	})
}

func scheduleNotificationClear() tea.Cmd {
	return tea.Tick(notificationDuration, func(time.Time) tea.Msg {
		return NotificationClearMsg{}
	})
}

// StartRateLimitCountdown records the server's retry-after window and arms
// the first countdown tick.
func (m *Model) StartRateLimitCountdown(seconds int) tea.Cmd {
	if seconds <= 0 {
		return nil
	}
	m.RetryAfterSeconds = seconds
	return scheduleRateLimitTick()
}

// TickRateLimit decrements the countdown and re-arms while time remains.
func (m *Model) TickRateLimit() tea.Cmd {
	if m.RetryAfterSeconds <= 0 {
		return nil
	}
	m.RetryAfterSeconds--
	if m.RetryAfterSeconds > 0 {
		return scheduleRateLimitTick()
	}
	return nil
}

func scheduleRateLimitTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return RateLimitTickMsg{}
	})
}

// openBrowser launches the system browser for the given URL
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
