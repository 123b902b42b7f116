package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/stealthsense/behaviortrace-agent/internal/config"
	"github.com/stealthsense/behaviortrace-agent/internal/database"
	"github.com/stealthsense/behaviortrace-agent/internal/fingerprint"
	"github.com/stealthsense/behaviortrace-agent/internal/server"
	"github.com/stealthsense/behaviortrace-agent/internal/session"
	"github.com/stealthsense/behaviortrace-agent/internal/tracker"
	"github.com/stealthsense/behaviortrace-agent/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	// app data dir: platform-specific
	dataDir := cfg.DataDir
	if dataDir == "" {
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			log.Fatal("Failed to get user home directory:", err)
		}
		switch runtime.GOOS {
		case "darwin":
			dataDir = filepath.Join(homeDirectory, "Library", "Application Support", "BehaviorTrace")
		case "windows":
			dataDir = filepath.Join(homeDirectory, "AppData", "Roaming", "BehaviorTrace")
		default: // linux and others
			dataDir = filepath.Join(homeDirectory, ".local", "share", "BehaviorTrace")
		}
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal("Failed to create application directory:", err)
	}

	// Initialize database
	db, err := database.NewDatabase(filepath.Join(dataDir, "telemetry.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Durable session identity, created once, reused across restarts
	sessionID, err := session.Ensure(filepath.Join(dataDir, "session_id"), cfg.SessionID)
	if err != nil {
		log.Fatal(err)
	}

	// Static fingerprint: probed once, host overlay from config on top
	fp := fingerprint.Merge(fingerprint.Collect(nil), cfg.Fingerprint)

	client := transport.NewClient(cfg.CollectURL, cfg.ClassifyURL)
	tr := tracker.New(tracker.Config{
		MouseWindow:     cfg.MouseWindow,
		ClickWindow:     cfg.ClickWindow,
		KeystrokeWindow: cfg.KeystrokeWindow,
		ScrollWindow:    cfg.ScrollWindow,
		FlushInterval:   cfg.FlushInterval(),
		RetainTail:      cfg.RetainTail,
		PageURL:         cfg.PageURL,
		ActionType:      cfg.ActionType,
	}, sessionID, fp, client)

	tr.Start()
	defer tr.Stop()
	log.Printf("Tracking session %s", sessionID)

	// Initialize and start server
	srv := server.NewServer(db, tr, cfg.Address, cfg.UpstreamClassifierURL)
	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
}
