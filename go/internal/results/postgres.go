package results

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/choicetrial/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

const schema = `
CREATE TABLE IF NOT EXISTS trial_results (
    trial_id    UUID PRIMARY KEY,
    session_id  UUID NOT NULL,
    participant TEXT NOT NULL,
    experiment  TEXT NOT NULL,
    trial_index INTEGER NOT NULL,
    stimulus    TEXT NOT NULL,
    response    INTEGER,
    rt_ms       DOUBLE PRECISION,
    properties  JSONB,
    started_at  TIMESTAMPTZ NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trial_results_session_idx ON trial_results (session_id, trial_index);
`

const insertResult = `
INSERT INTO trial_results (
    trial_id, session_id, participant, experiment, trial_index,
    stimulus, response, rt_ms, properties, started_at, ended_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (trial_id) DO NOTHING`

// SelectColumns lists trial_results columns in the order ScanRecord expects.
const SelectColumns = `trial_id, session_id, participant, experiment, trial_index,
    stimulus, response, rt_ms, properties, started_at, ended_at`

const selectSession = `SELECT ` + SelectColumns + `
FROM trial_results WHERE session_id = $1 ORDER BY trial_index`

// PostgresStore persists records in the trial_results table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle (driver "postgres").
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the results table and index if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	err := sqlutil.InTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create results schema: %w", err)
	}
	log.Info().Msg("results schema ready")
	return nil
}

// Save inserts rec. Saving the same trial twice is a no-op.
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	r := rec.Result
	props, err := sqlutil.ToNullRawMessage(r.Properties)
	if err != nil {
		return fmt.Errorf("failed to encode properties: %w", err)
	}

	_, err = s.db.ExecContext(ctx, insertResult,
		r.TrialID,
		rec.SessionID,
		rec.Participant,
		rec.Experiment,
		rec.TrialIndex,
		r.Stimulus,
		sqlutil.ToSqlInt32(r.Response),
		sqlutil.ToSqlFloat64(r.RT),
		props,
		r.StartedAt,
		r.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trial result: %w", err)
	}
	return nil
}

// SessionResults returns the stored records of a session.
func (s *PostgresStore) SessionResults(ctx context.Context, sessionID uuid.UUID) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectSession, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session results: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		rec, err := ScanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session results: %w", err)
	}
	if len(recs) == 0 {
		return nil, ErrSessionNotFound
	}
	return recs, nil
}

// ScanRecord reads one row selected with SelectColumns. scan is the row's
// Scan method, so both database/sql and pgx rows can be used.
func ScanRecord(scan func(dest ...any) error) (Record, error) {
	var (
		rec      Record
		response sql.NullInt32
		rt       sql.NullFloat64
		props    pqtype.NullRawMessage
	)
	r := &rec.Result
	if err := scan(
		&r.TrialID,
		&rec.SessionID,
		&rec.Participant,
		&rec.Experiment,
		&rec.TrialIndex,
		&r.Stimulus,
		&response,
		&rt,
		&props,
		&r.StartedAt,
		&r.EndedAt,
	); err != nil {
		return Record{}, fmt.Errorf("failed to scan trial result: %w", err)
	}

	r.Response = sqlutil.FromSqlInt32(response)
	r.RT = sqlutil.FromSqlFloat64(rt)
	p, err := sqlutil.FromNullRawMessage(props)
	if err != nil {
		return Record{}, fmt.Errorf("failed to decode properties: %w", err)
	}
	r.Properties = p
	return rec, nil
}
