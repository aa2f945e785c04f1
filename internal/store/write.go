package store

import (
	"context"
	"fmt"

	"github.com/roach88/gatesched/internal/ir"
)

// Outcome is the result of compiling one unit.
type Outcome string

const (
	// OutcomeScheduled means the unit was scheduled with the optimizing
	// pipeline.
	OutcomeScheduled Outcome = "scheduled"
	// OutcomeFallback means scheduling reported a verification error and the
	// unit must be compiled without this optimization.
	OutcomeFallback Outcome = "fallback"
	// OutcomeRejected means the input graph failed verification.
	OutcomeRejected Outcome = "rejected"
)

// Run is one row of the run history.
type Run struct {
	ID          string         `json:"id"`
	Seq         int64          `json:"seq"`
	Unit        string         `json:"unit"`
	GraphHash   string         `json:"graph_hash"`
	ConfigHash  string         `json:"config_hash"`
	Outcome     Outcome        `json:"outcome"`
	ErrorCode   string         `json:"error_code,omitempty"`
	Error       string         `json:"error,omitempty"`
	BlockCount  int            `json:"block_count"`
	GateCount   int            `json:"gate_count"`
	Conversions map[string]int `json:"conversions,omitempty"`
	Dump        string         `json:"dump,omitempty"`
	ToolVersion string         `json:"tool_version"`
	IRVersion   string         `json:"ir_version"`
}

// WriteRun inserts a run. Writing the same id twice is a no-op.
func (s *Store) WriteRun(ctx context.Context, r Run) error {
	conv, err := marshalConversions(r.Conversions)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if r.ToolVersion == "" {
		r.ToolVersion = ir.ToolVersion
	}
	if r.IRVersion == "" {
		r.IRVersion = ir.IRVersion
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, unit, graph_hash, config_hash, outcome, error_code, error,
		 block_count, gate_count, conversions, dump, tool_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID,
		r.Seq,
		r.Unit,
		r.GraphHash,
		r.ConfigHash,
		string(r.Outcome),
		r.ErrorCode,
		r.Error,
		r.BlockCount,
		r.GateCount,
		conv,
		r.Dump,
		r.ToolVersion,
		r.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}
