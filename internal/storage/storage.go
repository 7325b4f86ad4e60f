// Package storage implements spec.md §6's persistence interface: an
// append-only trade/PnL log and atomic snapshot save/load, with a
// Postgres-backed implementation (adapted from the teacher's
// PostgresStorage) and a filesystem/JSONL implementation (adapted from
// the teacher's ConsoleStorage) selected by the [persistence] mode
// setting ("postgres" or "file").
package storage

import (
	"context"

	"github.com/foresight-labs/lmsr-marketmaker/internal/risk"
	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// EngineSnapshot is the atomic, crash-recoverable image of engine
// state spec.md §4.8's startup step 1 restores from: risk state, the
// open-order tally, and cumulative realized PnL.
type EngineSnapshot struct {
	Risk           risk.Snapshot `json:"risk"`
	OpenOrderCount int           `json:"open_order_count"`
	CumulativePnL  float64       `json:"cumulative_pnl"`
	SavedAtMs      int64         `json:"saved_at_ms"`
}

// Storage is the persistence interface the engine consumes for trade
// logging and crash recovery. AppendTrade/AppendDailyPnL are
// append-only; SaveSnapshot/LoadSnapshot use atomic replace semantics
// (write-to-temp + rename for the filesystem sink, upsert for the
// Postgres sink).
type Storage interface {
	// AppendTrade writes one trade-log entry.
	AppendTrade(ctx context.Context, rec types.TradeRecord) error

	// AppendDailyPnL writes one daily PnL summary entry.
	AppendDailyPnL(ctx context.Context, rec types.DailyPnLRecord) error

	// SaveSnapshot atomically persists the latest engine snapshot.
	SaveSnapshot(ctx context.Context, snap EngineSnapshot) error

	// LoadSnapshot returns the most recently saved snapshot, or nil if
	// none has ever been saved (first run).
	LoadSnapshot(ctx context.Context) (*EngineSnapshot, error)

	// Close releases any held resources (file handles, DB pool).
	Close() error
}
