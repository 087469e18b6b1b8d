package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/siga-research/siga/internal/extraction"
	"github.com/siga-research/siga/internal/orchestrator"
	"github.com/siga-research/siga/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "nested", "siga.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	l := NewLedger(db, zaptest.NewLogger(t))
	l.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	return l
}

func rec(run orchestrator.RunContext, seq int, company string, outcome extraction.Outcome) orchestrator.Record {
	return orchestrator.Record{
		Run:      run,
		Sequence: seq,
		Request:  extraction.Request{CompanyName: company, ProviderID: "openai", ModelName: "gpt-4o", PromptVersion: "v1"},
		Outcome:  outcome,
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	run := orchestrator.RunContext{RunID: "run-1", StartedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}

	data := &providers.StructuredData{CompanyName: "Acme Corp", Subsidiaries: []providers.Subsidiary{{Name: "Acme Rockets"}}}
	require.NoError(t, l.Report(ctx, rec(run, 1, "Acme Corp", extraction.Succeeded(data, 1500*time.Millisecond))))
	require.NoError(t, l.Report(ctx, rec(run, 2, "Globex",
		extraction.Failed(providers.NewProviderError("openai", providers.ErrorKindAuth, errors.New("invalid key")), time.Second))))
	require.NoError(t, l.Report(ctx, rec(run, 3, "Initech", extraction.TimedOut(60, time.Minute))))

	entries, err := l.Entries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, 1, entries[0].Sequence)
	assert.Equal(t, "success", entries[0].Status)
	require.NotNil(t, entries[0].Payload)
	parsed, err := providers.ParseStructuredData(*entries[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "Acme Rockets", parsed.Subsidiaries[0].Name)
	assert.InDelta(t, 1.5, entries[0].ElapsedSeconds, 0.0001)
	assert.Equal(t, "2026-03-14T09:00:00Z", entries[0].RunStartedAt)
	assert.Equal(t, "2026-03-14T10:00:00Z", entries[0].RecordedAt)

	assert.Equal(t, "provider_error", entries[1].Status)
	assert.Equal(t, "auth", entries[1].ErrorKind)
	assert.Equal(t, "openai auth error: invalid key", entries[1].Message)
	assert.Nil(t, entries[1].Payload)

	assert.Equal(t, "timeout", entries[2].Status)
	assert.Equal(t, "timed out after 60s", entries[2].Message)
}

func TestLedgerRuns(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	older := orchestrator.RunContext{RunID: "older", StartedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	newer := orchestrator.RunContext{RunID: "newer", StartedAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}

	data := &providers.StructuredData{CompanyName: "Acme"}
	require.NoError(t, l.Report(ctx, rec(older, 1, "Acme", extraction.Succeeded(data, time.Second))))
	require.NoError(t, l.Report(ctx, rec(newer, 1, "Acme", extraction.Succeeded(data, time.Second))))
	require.NoError(t, l.Report(ctx, rec(newer, 2, "Globex", extraction.TimedOut(1, time.Second))))

	runs, err := l.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, RunInfo{RunID: "newer", StartedAt: "2026-03-02T00:00:00Z", Provider: "openai", Model: "gpt-4o", Total: 2, Succeeded: 1}, runs[0])
	assert.Equal(t, "older", runs[1].RunID)

	limited, err := l.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "newer", limited[0].RunID)
}

func TestLedgerUnknownRun(t *testing.T) {
	entries, err := newTestLedger(t).Entries(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewDatabaseReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "siga.db")
	db, err := NewDatabase(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDatabase(path)
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}
