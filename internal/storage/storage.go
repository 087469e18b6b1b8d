// Package storage keeps a SQLite ledger of every extraction outcome.
package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/orchestrator"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT NOT NULL,
    run_started_at  TEXT NOT NULL,
    seq             INTEGER NOT NULL,
    company         TEXT NOT NULL,
    provider        TEXT NOT NULL,
    model           TEXT NOT NULL,
    prompt_version  TEXT NOT NULL,
    status          TEXT NOT NULL,
    error_kind      TEXT NOT NULL DEFAULT '',
    message         TEXT NOT NULL DEFAULT '',
    elapsed_seconds REAL NOT NULL DEFAULT 0,
    payload         TEXT,
    recorded_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_run_id ON outcomes(run_id);
`

// Entry is one stored outcome
type Entry struct {
	ID             int64   `db:"id"`
	RunID          string  `db:"run_id"`
	RunStartedAt   string  `db:"run_started_at"`
	Sequence       int     `db:"seq"`
	Company        string  `db:"company"`
	Provider       string  `db:"provider"`
	Model          string  `db:"model"`
	PromptVersion  string  `db:"prompt_version"`
	Status         string  `db:"status"`
	ErrorKind      string  `db:"error_kind"`
	Message        string  `db:"message"`
	ElapsedSeconds float64 `db:"elapsed_seconds"`
	Payload        *string `db:"payload"`
	RecordedAt     string  `db:"recorded_at"`
}

// RunInfo summarizes one recorded run
type RunInfo struct {
	RunID     string `db:"run_id"`
	StartedAt string `db:"run_started_at"`
	Provider  string `db:"provider"`
	Model     string `db:"model"`
	Total     int    `db:"total"`
	Succeeded int    `db:"succeeded"`
}

// NewDatabase opens the SQLite file at path, creating parent directories and the schema
func NewDatabase(path string) (*sqlx.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "storage: create database directory")
		}
	}

	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, eris.Wrap(err, "storage: open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "storage: ping database")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "storage: run migrations")
	}
	return db, nil
}

// Ledger records outcomes and answers run queries
type Ledger struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger returns a Ledger backed by db
func NewLedger(db *sqlx.DB, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, logger: logger, now: time.Now}
}

// Report stores rec. It satisfies orchestrator.Reporter.
func (l *Ledger) Report(ctx context.Context, rec orchestrator.Record) error {
	entry := Entry{
		RunID:          rec.Run.RunID,
		RunStartedAt:   rec.Run.StartedAt.UTC().Format(time.RFC3339),
		Sequence:       rec.Sequence,
		Company:        rec.Request.CompanyName,
		Provider:       rec.Request.ProviderID,
		Model:          rec.Request.ModelName,
		PromptVersion:  rec.Request.PromptVersion,
		Status:         string(rec.Outcome.Status()),
		Message:        rec.Outcome.Message(),
		ElapsedSeconds: rec.Outcome.Elapsed().Seconds(),
		RecordedAt:     l.now().UTC().Format(time.RFC3339),
	}
	if perr := rec.Outcome.Err(); perr != nil {
		entry.ErrorKind = string(perr.Kind)
	}
	if data := rec.Outcome.Data(); data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return eris.Wrap(err, "storage: encode payload")
		}
		s := string(payload)
		entry.Payload = &s
	}

	_, err := l.db.NamedExecContext(ctx, `
		INSERT INTO outcomes (run_id, run_started_at, seq, company, provider, model, prompt_version,
			status, error_kind, message, elapsed_seconds, payload, recorded_at)
		VALUES (:run_id, :run_started_at, :seq, :company, :provider, :model, :prompt_version,
			:status, :error_kind, :message, :elapsed_seconds, :payload, :recorded_at)
	`, entry)
	if err != nil {
		return eris.Wrapf(err, "storage: insert outcome for %s", entry.Company)
	}
	l.logger.Debug("outcome recorded", zap.String("run_id", entry.RunID), zap.Int("seq", entry.Sequence))
	return nil
}

// Runs lists the most recent runs, newest first
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []RunInfo
	err := l.db.SelectContext(ctx, &runs, `
		SELECT run_id, run_started_at, MIN(provider) AS provider, MIN(model) AS model,
			COUNT(*) AS total, SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END) AS succeeded
		FROM outcomes
		GROUP BY run_id, run_started_at
		ORDER BY run_started_at DESC, MAX(id) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "storage: list runs")
	}
	return runs, nil
}

// Entries returns the outcomes of one run in sequence order
func (l *Ledger) Entries(ctx context.Context, runID string) ([]Entry, error) {
	var entries []Entry
	err := l.db.SelectContext(ctx, &entries, `SELECT * FROM outcomes WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: list entries for run %s", runID)
	}
	return entries, nil
}
