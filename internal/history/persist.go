package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Persister writes and reads the full history map. The store invokes Save
// synchronously after each observation, so an implementation that batches or
// debounces can be substituted without touching the store's contract.
type Persister interface {
	Save(histories map[string]PlayerHistory) error
	Load() (map[string]PlayerHistory, error)
}

// FilePersister keeps the history map in a single JSON document. Saves go
// through a temp file plus rename so a crash mid-write never corrupts the
// previously good file.
type FilePersister struct {
	path   string
	logger *slog.Logger
}

// NewFilePersister validates the target path and prepares the writer.
func NewFilePersister(path string, logger *slog.Logger) (*FilePersister, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: persister path required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FilePersister{path: path, logger: logger.With(slog.String("agent", "history_persister"))}, nil
}

// Save atomically replaces the history file with the serialized map.
func (p *FilePersister) Save(histories map[string]PlayerHistory) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history: create data directory: %w", err)
	}

	payload, err := json.MarshalIndent(histories, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("history: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("history: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: replace %s: %w", p.path, err)
	}
	return nil
}

// Load reads the history file back. A missing file is a first run, not an
// error. A file that fails to parse is logged and treated as no prior data;
// it is left on disk for inspection rather than deleted.
func (p *FilePersister) Load() (map[string]PlayerHistory, error) {
	payload, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]PlayerHistory{}, nil
		}
		return nil, fmt.Errorf("history: read %s: %w", p.path, err)
	}

	var histories map[string]PlayerHistory
	if err := json.Unmarshal(payload, &histories); err != nil {
		p.logger.Warn("history file failed to parse, starting empty",
			slog.String("path", p.path), slog.Any("error", err))
		return map[string]PlayerHistory{}, nil
	}
	if histories == nil {
		histories = map[string]PlayerHistory{}
	}
	for id, h := range histories {
		h.PlayerID = id
		if h.Categories == nil {
			h.Categories = make(map[string][]TierSnapshot)
		}
		histories[id] = h
	}
	return histories, nil
}
