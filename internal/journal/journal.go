// Package journal persists fills to PostgreSQL for post-session analysis.
// The journal is optional; without a configured database the hedger runs
// memory-only.
package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/kalshi-hedger/internal/config"
	"github.com/rickgao/kalshi-hedger/internal/model"
)

const fillsSchema = `
CREATE TABLE IF NOT EXISTS fills (
	trade_id        TEXT PRIMARY KEY,
	order_id        TEXT NOT NULL,
	client_order_id TEXT NOT NULL,
	ticker          TEXT NOT NULL,
	side            TEXT NOT NULL,
	price_cents     INT NOT NULL,
	count           BIGINT NOT NULL,
	received_at     TIMESTAMPTZ NOT NULL
)`

// Journal batches fills into the fills table. RecordFill never blocks.
type Journal struct {
	cfg    config.JournalConfig
	db     *pgxpool.Pool
	logger *slog.Logger

	input *growableBuffer[model.Fill]

	batch       []model.Fill
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inserts   int64
	conflicts int64
	errors    int64
}

// New creates a journal over an existing pool.
func New(cfg config.JournalConfig, db *pgxpool.Pool, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "journal"),
		input:  newGrowableBuffer[model.Fill](cfg.BufferSize),
		batch:  make([]model.Fill, 0, cfg.BatchSize),
	}
}

// RecordFill queues a fill for persistence.
func (j *Journal) RecordFill(f model.Fill) {
	if !j.input.send(f) {
		j.logger.Warn("journal closed, dropping fill", "ticker", f.Ticker)
	}
}

// Start ensures the schema and begins consuming.
func (j *Journal) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)

	if _, err := j.db.Exec(ctx, fillsSchema); err != nil {
		return err
	}

	j.flushTicker = time.NewTicker(j.cfg.FlushInterval)

	j.wg.Add(1)
	go j.consumeLoop()

	j.wg.Add(1)
	go j.flushLoop()

	j.logger.Info("journal started",
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop drains what it can and shuts down.
func (j *Journal) Stop(ctx context.Context) error {
	if j.cancel != nil {
		j.cancel()
	}
	if j.flushTicker != nil {
		j.flushTicker.Stop()
	}
	j.input.close()

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		j.logger.Warn("journal stop timed out")
	}

	// Final flush of anything still buffered.
	for _, f := range j.input.drainTo(0) {
		j.append(f)
	}
	j.flush()

	j.logger.Info("journal stopped", "inserts", j.inserts, "conflicts", j.conflicts, "errors", j.errors)
	return nil
}

func (j *Journal) consumeLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		default:
			f, ok := j.input.tryReceive()
			if !ok {
				select {
				case <-j.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}
			j.append(f)
		}
	}
}

func (j *Journal) flushLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-j.flushTicker.C:
			j.flush()
		}
	}
}

func (j *Journal) append(f model.Fill) {
	j.batchMu.Lock()
	j.batch = append(j.batch, f)
	shouldFlush := len(j.batch) >= j.cfg.BatchSize
	j.batchMu.Unlock()

	if shouldFlush {
		j.flush()
	}
}

func (j *Journal) flush() {
	j.batchMu.Lock()
	if len(j.batch) == 0 {
		j.batchMu.Unlock()
		return
	}
	batch := j.batch
	j.batch = make([]model.Fill, 0, j.cfg.BatchSize)
	j.batchMu.Unlock()

	start := time.Now()

	conflicts, err := j.batchInsert(batch)
	if err != nil {
		j.logger.Error("batch insert failed", "error", err, "count", len(batch))
		j.batchMu.Lock()
		j.errors++
		j.batchMu.Unlock()
		return
	}

	j.batchMu.Lock()
	j.inserts += int64(len(batch) - conflicts)
	j.conflicts += int64(conflicts)
	j.batchMu.Unlock()

	j.logger.Debug("flushed fills",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows with ON CONFLICT DO NOTHING so a replayed fill
// event is idempotent.
func (j *Journal) batchInsert(fills []model.Fill) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, f := range fills {
		batch.Queue(`
			INSERT INTO fills (trade_id, order_id, client_order_id, ticker, side, price_cents, count, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (trade_id) DO NOTHING
		`, f.TradeID, f.OrderID, f.ClientOrderID.String(), f.Ticker, f.Side.String(), f.Price, f.Count, f.ReceivedAt)
	}

	// Stop's final flush runs after ctx is canceled.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results := j.db.SendBatch(ctx, batch)
	defer results.Close()

	for range fills {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
