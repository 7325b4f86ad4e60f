package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// PostgresStorage implements Storage against PostgreSQL. Adapted from
// the teacher's PostgresStorage, generalized from a single
// arbitrage_opportunities table to the trade-log/daily-pnl/snapshot
// schema spec.md §6 requires. The snapshot table holds exactly one
// row (id=1), upserted on every save — Postgres's own transaction
// durability gives the "atomic replace" spec.md asks for without a
// temp-file dance.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	order_id TEXT,
	market_id TEXT,
	side TEXT,
	price DOUBLE PRECISION,
	size DOUBLE PRECISION,
	lmsr_fair_value DOUBLE PRECISION,
	edge DOUBLE PRECISION,
	kelly_fraction DOUBLE PRECISION,
	fees DOUBLE PRECISION,
	timestamp_ms BIGINT
);
CREATE TABLE IF NOT EXISTS daily_pnl (
	date TEXT PRIMARY KEY,
	realized_pnl DOUBLE PRECISION,
	trade_count INT,
	consecutive_losses INT,
	timestamp_ms BIGINT
);
CREATE TABLE IF NOT EXISTS engine_snapshot (
	id INT PRIMARY KEY,
	data JSONB NOT NULL,
	saved_at_ms BIGINT
);
`

// NewPostgresStorage opens the connection pool and ensures the schema exists.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{db: db, logger: cfg.Logger}, nil
}

// AppendTrade inserts one trade-log row.
func (p *PostgresStorage) AppendTrade(ctx context.Context, rec types.TradeRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO trades (id, order_id, market_id, side, price, size, lmsr_fair_value, edge, kelly_fraction, fees, timestamp_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.OrderID, rec.MarketID, rec.Side, rec.Price, rec.Size,
		rec.LMSRFairValue, rec.Edge, rec.KellyFraction, rec.Fees, rec.TimestampMs)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// AppendDailyPnL upserts one daily PnL summary row keyed by date.
func (p *PostgresStorage) AppendDailyPnL(ctx context.Context, rec types.DailyPnLRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO daily_pnl (date, realized_pnl, trade_count, consecutive_losses, timestamp_ms)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (date) DO UPDATE SET
			realized_pnl = EXCLUDED.realized_pnl,
			trade_count = EXCLUDED.trade_count,
			consecutive_losses = EXCLUDED.consecutive_losses,
			timestamp_ms = EXCLUDED.timestamp_ms`,
		rec.Date, rec.RealizedPnL, rec.TradeCount, rec.ConsecutiveLosses, rec.TimestampMs)
	if err != nil {
		return fmt.Errorf("upsert daily pnl: %w", err)
	}
	return nil
}

// SaveSnapshot upserts the single snapshot row.
func (p *PostgresStorage) SaveSnapshot(ctx context.Context, snap EngineSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO engine_snapshot (id, data, saved_at_ms) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, saved_at_ms = EXCLUDED.saved_at_ms`,
		data, snap.SavedAtMs)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns nil, nil if no snapshot has ever been saved.
func (p *PostgresStorage) LoadSnapshot(ctx context.Context) (*EngineSnapshot, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT data FROM engine_snapshot WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	var snap EngineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Close closes the underlying connection pool.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}

var _ Storage = (*PostgresStorage)(nil)
