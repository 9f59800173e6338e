package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"coachtui/api"
	"coachtui/config"
	"coachtui/model"
	"coachtui/oauthcb"
	"coachtui/storage"
	"coachtui/ui"
)

const Version = "v0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize debug logging after config is loaded
	config.InitDebugLog(cfg.DataDir())

	client, err := api.NewClient(cfg.ServerURL, cfg.AuthToken)
	if err != nil {
		fmt.Printf("Invalid server configuration: %v\n", err)
		os.Exit(1)
	}

	signals, err := storage.NewSignalStore(cfg.DataDir())
	if err != nil {
		fmt.Printf("Failed to open signal store: %v\n", err)
		os.Exit(1)
	}
	defer signals.Close()

	cache := storage.NewConversationCache(cfg.DataDir())

	// The callback listener is best effort: without it, provider connects
	// still work through the storage poll once the server-side flow lands.
	callback, err := oauthcb.Start(signals)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Main] callback listener unavailable: %v", err)
		}
		callback = nil
	} else {
		defer callback.Close()
	}

	dataModel := model.NewModel(cfg, client, signals, cache, Version)

	p := tea.NewProgram(
		ui.NewAppView(dataModel, callback),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running coachtui: %v\n", err)
		os.Exit(1)
	}
}
