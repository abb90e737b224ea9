package tui

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

const maxRecent = 10

type RecentEntry struct {
	Path     string    `json:"path"`
	OpenedAt time.Time `json:"opened_at"`
}

// recentPath is a variable so tests can point it elsewhere.
var recentPath = func() string {
	return filepath.Join(xdg.StateHome, "placetap", "recent.json")
}

// LoadRecent returns recent projects, newest first. A missing or corrupt
// file yields an empty list.
func LoadRecent() []RecentEntry {
	data, err := os.ReadFile(recentPath())
	if err != nil {
		return nil
	}
	var entries []RecentEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

// SaveRecent moves dbPath to the front of the recent list.
func SaveRecent(dbPath string) error {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		abs = dbPath
	}

	entries := []RecentEntry{{Path: abs, OpenedAt: time.Now()}}
	for _, e := range LoadRecent() {
		if e.Path != abs && len(entries) < maxRecent {
			entries = append(entries, e)
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	path := recentPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
