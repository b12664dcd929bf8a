package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/forPelevin/reelcut/internal/types"
)

const runColumns = "id, source, title, source_path, duration_sec, status, progress, reason, candidates_count, created_at, updated_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (types.Run, error) {
	var (
		run        types.Run
		status     string
		title      sql.NullString
		sourcePath sql.NullString
		progress   sql.NullString
		reason     sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Source,
		&title,
		&sourcePath,
		&run.DurationSec,
		&status,
		&progress,
		&reason,
		&run.CandidatesCount,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return types.Run{}, err
	}
	run.Title = title.String
	run.SourcePath = sourcePath.String
	run.Status = types.RunStatus(status)
	run.Progress = progress.String
	run.Reason = reason.String
	run.CreatedAt = parseTime(createdRaw)
	run.UpdatedAt = parseTime(updatedRaw)
	return run, nil
}

// CreateRun inserts a new run in the analyzing state.
func (s *Store) CreateRun(ctx context.Context, run types.Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	ts := now()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, source, title, source_path, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Source,
		nullableString(run.Title),
		nullableString(run.SourcePath),
		types.RunAnalyzing,
		ts,
		ts,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (types.Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// BeginAnalysis moves a new or failed run into analyzing and clears the
// previous failure reason.
func (s *Store) BeginAnalysis(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, reason = NULL, progress = NULL, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		types.RunAnalyzing, now(), id, types.RunAnalyzing, types.RunFailed,
	)
	if err != nil {
		return fmt.Errorf("begin analysis: %w", err)
	}
	return s.expectRunUpdated(ctx, res, id, types.RunAnalyzing)
}

// SetSource records the probed source. A title already set by the user wins.
func (s *Store) SetSource(ctx context.Context, id string, src types.SourceVideo, title string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET source_path = ?, duration_sec = ?, title = COALESCE(NULLIF(title, ''), ?), updated_at = ?
         WHERE id = ?`,
		src.Path, src.DurationSec, nullableString(title), now(), id,
	)
	if err != nil {
		return fmt.Errorf("set source: %w", err)
	}
	return expectRows(res, "run", id)
}

func (s *Store) SetProgress(ctx context.Context, id, label string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET progress = ?, updated_at = ? WHERE id = ?`,
		label, now(), id,
	)
	if err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	return expectRows(res, "run", id)
}

// CompleteAnalysis inserts the accepted candidates and marks the run
// completed in one transaction. Candidates from an earlier attempt are
// replaced.
func (s *Store) CompleteAnalysis(ctx context.Context, id string, proposals []types.Proposal, note string) ([]types.Candidate, error) {
	var out []types.Candidate
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		out = out[:0]
		var status string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM runs WHERE id = ?`, id).Scan(&status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("run %s: %w", id, ErrNotFound)
			}
			return err
		}
		if !types.CanTransitionRun(types.RunStatus(status), types.RunAnalysisCompleted) {
			return fmt.Errorf("run %s %s -> %s: %w", id, status, types.RunAnalysisCompleted, types.ErrInvalidTransition)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE run_id = ?`, id); err != nil {
			return fmt.Errorf("clear candidates: %w", err)
		}
		ts := now()
		for _, p := range proposals {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO candidates (run_id, start_sec, end_sec, title, rationale, score, status, rendered, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
				id, p.Segment.Start, p.Segment.End, p.Title, nullableString(p.Rationale), p.Score,
				types.CandidatePending, ts, ts,
			)
			if err != nil {
				return fmt.Errorf("insert candidate: %w", err)
			}
			cid, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("last insert id: %w", err)
			}
			created := parseTime(sql.NullString{String: ts, Valid: true})
			out = append(out, types.Candidate{
				ID:        cid,
				RunID:     id,
				Segment:   p.Segment,
				Title:     p.Title,
				Rationale: p.Rationale,
				Score:     p.Score,
				Status:    types.CandidatePending,
				CreatedAt: created,
				UpdatedAt: created,
			})
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE runs SET status = ?, candidates_count = ?, reason = ?, progress = NULL, updated_at = ? WHERE id = ?`,
			types.RunAnalysisCompleted, len(proposals), nullableString(note), ts, id,
		); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete analysis: %w", err)
	}
	return out, nil
}

// FailRun marks an analyzing run failed with a human-readable reason.
func (s *Store) FailRun(ctx context.Context, id, reason string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, reason = ?, updated_at = ? WHERE id = ? AND status = ?`,
		types.RunFailed, reason, now(), id, types.RunAnalyzing,
	)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return s.expectRunUpdated(ctx, res, id, types.RunFailed)
}

// expectRunUpdated distinguishes a missing run from a refused transition
// when a conditional update touched no rows.
func (s *Store) expectRunUpdated(ctx context.Context, res sql.Result, id string, to types.RunStatus) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("run %s %s -> %s: %w", id, run.Status, to, types.ErrInvalidTransition)
}

func expectRows(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
