package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"suptui/api"
	"suptui/config"
	"suptui/session"
	"suptui/ui"
)

const Version = "v0.1.0"

func main() {
	// Validate environment variables first
	if config.HasAnyEnvVar() && !config.HasAllEnvVars() {
		missingVar := config.GetMissingEnvVar()
		fmt.Fprintf(os.Stderr, "Missing environment variable: %s\n\n"+
			"When using environment variables, both must be set:\n"+
			"  • SUPTUI_API_BASE\n"+
			"  • SUPTUI_DATA_DIR\n\n"+
			"Set the missing variable before launching suptui.\n",
			missingVar)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize debug logging after config is loaded
	config.InitDebugLog(cfg.DataDir())

	client, err := api.NewClient(cfg.APIBase)
	if err != nil {
		fmt.Printf("Failed to configure API client: %v\n", err)
		os.Exit(1)
	}

	store, err := session.NewStore(cfg.DataDir())
	if err != nil {
		fmt.Printf("Failed to initialize session store: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(
		ui.NewAppView(cfg, client, store),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running suptui: %v\n", err)
		os.Exit(1)
	}
}
