package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no run matches.
var ErrNotFound = errors.New("run not found")

const runColumns = `id, seq, unit, graph_hash, config_hash, outcome, error_code, error,
	block_count, gate_count, conversions, dump, tool_version, ir_version`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var outcome, conv string
	if err := row.Scan(
		&r.ID, &r.Seq, &r.Unit, &r.GraphHash, &r.ConfigHash, &outcome, &r.ErrorCode, &r.Error,
		&r.BlockCount, &r.GateCount, &conv, &r.Dump, &r.ToolVersion, &r.IRVersion,
	); err != nil {
		return Run{}, err
	}
	r.Outcome = Outcome(outcome)
	m, err := unmarshalConversions(conv)
	if err != nil {
		return Run{}, err
	}
	r.Conversions = m
	return r, nil
}

// ReadRun returns the run with the given id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns every run of unit ordered by seq, then id. An empty unit
// lists all runs.
func (s *Store) ListRuns(ctx context.Context, unit string) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if unit != "" {
		query += ` WHERE unit = ?`
		args = append(args, unit)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the run of unit with the highest seq.
func (s *Store) LatestRun(ctx context.Context, unit string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE unit = ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, unit)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run of %s: %w", unit, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run of %s: %w", unit, err)
	}
	return r, nil
}

// MaxSeq returns the highest seq stored, or 0 for an empty history. The
// pipeline clock resumes from it.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}
