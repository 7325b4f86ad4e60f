package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// FileStorage implements Storage against the filesystem layout spec.md
// §6 names: data/trades/YYYY-MM-DD.jsonl, data/pnl/daily_pnl.jsonl,
// data/state.json. Adapted from the teacher's ConsoleStorage, which
// only printed to stdout; this sink additionally persists, since the
// engine's crash-recovery contract requires a real snapshot to load
// from on restart.
type FileStorage struct {
	dataDir string
	logger  *zap.Logger

	mu sync.Mutex
}

// NewFileStorage creates the data directory layout and returns a
// Storage backed by it.
func NewFileStorage(dataDir string, logger *zap.Logger) (*FileStorage, error) {
	for _, sub := range []string{"trades", "pnl"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir %s: %w", sub, err)
		}
	}
	logger.Info("file-storage-initialized", zap.String("data-dir", dataDir))
	return &FileStorage{dataDir: dataDir, logger: logger}, nil
}

// AppendTrade appends one JSONL line to today's UTC trade log.
func (f *FileStorage) AppendTrade(_ context.Context, rec types.TradeRecord) error {
	path := filepath.Join(f.dataDir, "trades", time.Now().UTC().Format("2006-01-02")+".jsonl")
	return f.appendLine(path, rec)
}

// AppendDailyPnL appends one JSONL line to the daily PnL log.
func (f *FileStorage) AppendDailyPnL(_ context.Context, rec types.DailyPnLRecord) error {
	path := filepath.Join(f.dataDir, "pnl", "daily_pnl.jsonl")
	return f.appendLine(path, rec)
}

func (f *FileStorage) appendLine(path string, rec any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// SaveSnapshot writes data/state.json atomically: write to a temp file
// in the same directory, then rename over the target, so an
// interrupted write never leaves a partially-written snapshot in
// place (the previous snapshot survives untouched).
func (f *FileStorage) SaveSnapshot(_ context.Context, snap EngineSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap.SavedAtMs = time.Now().UnixMilli()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	target := filepath.Join(f.dataDir, "state.json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	f.logger.Debug("snapshot-saved", zap.String("path", target))
	return nil
}

// LoadSnapshot returns nil, nil if no snapshot file exists yet (first
// run), rather than an error — an empty state is a valid starting
// point, not a failure.
func (f *FileStorage) LoadSnapshot(_ context.Context) (*EngineSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := filepath.Join(f.dataDir, "state.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap EngineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Close is a no-op; FileStorage holds no long-lived handles between calls.
func (f *FileStorage) Close() error {
	f.logger.Info("closing-file-storage")
	return nil
}

var _ Storage = (*FileStorage)(nil)
