package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/forPelevin/reelcut/internal/types"
)

const candidateColumns = `id, run_id, start_sec, end_sec, title, rationale, score, status, rendered,
    clip_path, subtitle_path, last_error, draft_path, draft_words_json, draft_error, created_at, updated_at`

func scanCandidate(scanner interface{ Scan(dest ...any) error }) (types.Candidate, error) {
	var (
		c          types.Candidate
		status     string
		rendered   int
		rationale  sql.NullString
		clipPath   sql.NullString
		subPath    sql.NullString
		lastError  sql.NullString
		draftPath  sql.NullString
		draftWords sql.NullString
		draftError sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&c.ID,
		&c.RunID,
		&c.Segment.Start,
		&c.Segment.End,
		&c.Title,
		&rationale,
		&c.Score,
		&status,
		&rendered,
		&clipPath,
		&subPath,
		&lastError,
		&draftPath,
		&draftWords,
		&draftError,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return types.Candidate{}, err
	}
	c.Status = types.CandidateStatus(status)
	c.Rendered = rendered == 1
	c.Rationale = rationale.String
	c.ClipPath = clipPath.String
	c.SubtitlePath = subPath.String
	c.LastError = lastError.String
	c.DraftPath = draftPath.String
	c.DraftError = draftError.String
	if draftWords.Valid && draftWords.String != "" {
		if err := json.Unmarshal([]byte(draftWords.String), &c.DraftWords); err != nil {
			return types.Candidate{}, fmt.Errorf("decode draft words for candidate %d: %w", c.ID, err)
		}
	}
	c.CreatedAt = parseTime(createdRaw)
	c.UpdatedAt = parseTime(updatedRaw)
	return c, nil
}

func (s *Store) GetCandidate(ctx context.Context, id int64) (types.Candidate, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Candidate{}, fmt.Errorf("candidate %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Candidate{}, fmt.Errorf("get candidate: %w", err)
	}
	return c, nil
}

// ListCandidates returns a run's candidates in insertion order.
func (s *Store) ListCandidates(ctx context.Context, runID string) ([]types.Candidate, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+candidateColumns+` FROM candidates WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()
	var out []types.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkCandidateRendered sets the rendered flag and output paths in one
// statement, so readers never see a rendered candidate without its clip.
func (s *Store) MarkCandidateRendered(ctx context.Context, id int64, clipPath, subtitlePath string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE candidates
         SET status = ?, rendered = 1, clip_path = ?, subtitle_path = ?, last_error = NULL, updated_at = ?
         WHERE id = ?`,
		types.CandidateRendered, clipPath, nullableString(subtitlePath), now(), id,
	)
	if err != nil {
		return fmt.Errorf("mark candidate rendered: %w", err)
	}
	return expectRows(res, "candidate", candidateKey(id))
}

// MarkCandidateFailed records a render failure. A candidate that already has
// a rendered clip keeps its status; only the error is recorded.
func (s *Store) MarkCandidateFailed(ctx context.Context, id int64, reason string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE candidates
         SET status = CASE WHEN rendered = 1 THEN status ELSE ? END, last_error = ?, updated_at = ?
         WHERE id = ?`,
		types.CandidateFailed, reason, now(), id,
	)
	if err != nil {
		return fmt.Errorf("mark candidate failed: %w", err)
	}
	return expectRows(res, "candidate", candidateKey(id))
}

// AttachDraft stores the editor draft and its timed words. Candidate status
// is unaffected.
func (s *Store) AttachDraft(ctx context.Context, id int64, draftPath string, words []types.TimedWord) error {
	if words == nil {
		words = []types.TimedWord{}
	}
	payload, err := json.Marshal(words)
	if err != nil {
		return fmt.Errorf("encode draft words: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE candidates SET draft_path = ?, draft_words_json = ?, draft_error = NULL, updated_at = ? WHERE id = ?`,
		draftPath, string(payload), now(), id,
	)
	if err != nil {
		return fmt.Errorf("attach draft: %w", err)
	}
	return expectRows(res, "candidate", candidateKey(id))
}

func (s *Store) RecordDraftFailure(ctx context.Context, id int64, reason string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE candidates SET draft_error = ?, updated_at = ? WHERE id = ?`,
		reason, now(), id,
	)
	if err != nil {
		return fmt.Errorf("record draft failure: %w", err)
	}
	return expectRows(res, "candidate", candidateKey(id))
}

func candidateKey(id int64) string { return strconv.FormatInt(id, 10) }
