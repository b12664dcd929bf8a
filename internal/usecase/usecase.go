package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/progress"
	"github.com/forPelevin/reelcut/internal/render"
	"github.com/forPelevin/reelcut/internal/selector"
	"github.com/forPelevin/reelcut/internal/transcribe"
	"github.com/forPelevin/reelcut/internal/types"
)

var (
	// ErrRunNotReady is returned when rendering a run whose analysis has not completed.
	ErrRunNotReady = errors.New("run analysis is not completed")
	// ErrAnalysisInProgress is returned when another process analyzes the same run.
	ErrAnalysisInProgress = errors.New("analysis already in progress for run")
	ErrNoFetcher          = errors.New("url sources need a fetcher (is yt-dlp installed?)")
)

type Renderer interface {
	Render(ctx context.Context, job render.Job) (render.Result, error)
}

type Drafter interface {
	Prepare(ctx context.Context, job render.Job) (render.Draft, error)
}

type Deps struct {
	Store    ports.Store
	Media    ports.MediaTool
	Fetcher  ports.Fetcher
	Selector *selector.Selector
	// Transcripts transcribes whole sources for text-only selection.
	Transcripts *transcribe.Engine
	Renderer    Renderer
	Drafts      Drafter
	Progress    ports.Progress
	RunsDir     string
	Logger      *slog.Logger
	NewID       func() string
}

type Usecase struct {
	d      Deps
	logger *slog.Logger
}

func New(d Deps) *Usecase {
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Progress == nil {
		d.Progress = progress.New(nil, d.Logger, nil)
	}
	return &Usecase{d: d, logger: logging.NewComponentLogger(d.Logger, "usecase")}
}

// RunDir is the directory holding every artifact of a run.
func (u *Usecase) RunDir(runID string) string {
	return filepath.Join(u.d.RunsDir, runID)
}

// Submit registers a new run for source, a local path or a URL.
func (u *Usecase) Submit(ctx context.Context, source, title string) (types.Run, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return types.Run{}, errors.New("source is empty")
	}
	if !isRemote(source) {
		abs, err := filepath.Abs(source)
		if err != nil {
			return types.Run{}, fmt.Errorf("resolve source: %w", err)
		}
		source = abs
	}
	run := types.Run{
		ID:     u.d.NewID(),
		Source: source,
		Title:  strings.TrimSpace(title),
		Status: types.RunAnalyzing,
	}
	if err := u.d.Store.CreateRun(ctx, run); err != nil {
		return types.Run{}, err
	}
	logging.WithContext(logging.WithRunID(ctx, run.ID), u.logger).Info("run submitted", logging.String("source", source))
	return u.d.Store.GetRun(ctx, run.ID)
}

// AnalyzeResult is what one analysis produced.
type AnalyzeResult struct {
	Run        types.Run
	Candidates []types.Candidate
	Selection  selector.Outcome
}

// Analyze fetches, probes and selects candidates for a run. Any failure marks
// the run failed with a reason; zero accepted proposals still completes it.
func (u *Usecase) Analyze(ctx context.Context, runID string) (AnalyzeResult, error) {
	started := time.Now()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, u.logger)
	job := ports.JobRef{RunID: runID}

	run, err := u.d.Store.GetRun(ctx, runID)
	if err != nil {
		return AnalyzeResult{}, err
	}
	fail := func(stage string, err error) (AnalyzeResult, error) {
		reason := fmt.Sprintf("%s: %v", stage, err)
		if ferr := u.d.Store.FailRun(context.WithoutCancel(ctx), runID, reason); ferr != nil {
			logger.Error("could not record failure", logging.Error(ferr))
		}
		u.d.Progress.Result(ctx, job, ports.Outcome{Status: progress.StatusFailed, Err: err})
		failed, _ := u.d.Store.GetRun(context.WithoutCancel(ctx), runID)
		return AnalyzeResult{Run: failed}, fmt.Errorf("%s: %w", stage, err)
	}

	layout := render.NewLayout(u.RunDir(runID))
	if err := layout.Ensure(); err != nil {
		return fail("run directory", err)
	}
	lock := flock.New(filepath.Join(layout.Root, "analyze.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return fail("analyze lock", err)
	}
	// Another process owns the run; its state is not ours to change.
	if !ok {
		return AnalyzeResult{}, fmt.Errorf("run %s: %w", runID, ErrAnalysisInProgress)
	}
	defer func() { _ = lock.Unlock() }()

	if err := u.d.Store.BeginAnalysis(ctx, runID); err != nil {
		return AnalyzeResult{}, err
	}
	logger.Info("analysis started", logging.String("source", run.Source))

	srcPath, title, err := u.resolveSource(ctx, job, run, layout)
	if err != nil {
		return fail("source", err)
	}

	u.d.Progress.Report(ctx, job, progress.Probing)
	info, err := u.d.Media.Probe(ctx, srcPath)
	if err != nil {
		return fail("probe", err)
	}
	if err := u.d.Store.SetSource(ctx, runID, info, title); err != nil {
		return fail("record source", err)
	}

	var transcript []types.TimedWord
	if u.d.Selector.NeedsTranscript() {
		u.d.Progress.Report(ctx, job, progress.Transcribing)
		transcript, err = u.transcribeSource(ctx, layout, info)
		if err != nil {
			return fail("transcribe", err)
		}
	}

	u.d.Progress.Report(ctx, job, progress.Analyzing)
	sel, err := u.d.Selector.Select(ctx, selector.Request{Video: info, Transcript: transcript})
	if err != nil {
		return fail("select", err)
	}

	candidates, err := u.d.Store.CompleteAnalysis(ctx, runID, sel.Accepted, sel.Note)
	if err != nil {
		return fail("store candidates", err)
	}
	run, err = u.d.Store.GetRun(ctx, runID)
	if err != nil {
		return AnalyzeResult{}, err
	}

	if len(candidates) == 0 {
		u.d.Progress.Result(ctx, job, ports.Outcome{Status: progress.StatusEmpty, Detail: sel.Note})
	} else {
		u.d.Progress.Result(ctx, job, ports.Outcome{
			Status: progress.StatusCompleted,
			Detail: fmt.Sprintf("%d candidates", len(candidates)),
		})
	}
	logger.Info("analysis finished",
		logging.Int("candidates", len(candidates)),
		logging.Int("rejected", len(sel.Rejected)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return AnalyzeResult{Run: run, Candidates: candidates, Selection: sel}, nil
}

// Reanalyze retries analysis of a failed run.
func (u *Usecase) Reanalyze(ctx context.Context, runID string) (AnalyzeResult, error) {
	run, err := u.d.Store.GetRun(ctx, runID)
	if err != nil {
		return AnalyzeResult{}, err
	}
	if run.Status != types.RunFailed {
		return AnalyzeResult{}, fmt.Errorf("run %s is %s: %w", runID, run.Status, types.ErrInvalidTransition)
	}
	return u.Analyze(ctx, runID)
}

func (u *Usecase) resolveSource(ctx context.Context, job ports.JobRef, run types.Run, layout render.Layout) (string, string, error) {
	if run.SourcePath != "" && fileExists(run.SourcePath) {
		return run.SourcePath, run.Title, nil
	}
	if !isRemote(run.Source) {
		info, err := os.Stat(run.Source)
		if err != nil {
			return "", "", err
		}
		if info.IsDir() {
			return "", "", fmt.Errorf("%s is a directory", run.Source)
		}
		title := strings.TrimSuffix(filepath.Base(run.Source), filepath.Ext(run.Source))
		return run.Source, title, nil
	}
	if u.d.Fetcher == nil {
		return "", "", ErrNoFetcher
	}
	u.d.Progress.Report(ctx, job, progress.Downloading)
	res, err := u.d.Fetcher.Fetch(ctx, run.Source, layout.SourceDir())
	if err != nil {
		return "", "", err
	}
	return res.Path, res.Title, nil
}

func (u *Usecase) transcribeSource(ctx context.Context, layout render.Layout, info types.SourceVideo) ([]types.TimedWord, error) {
	if u.d.Transcripts == nil {
		return nil, errors.New("no transcription engine configured")
	}
	wav := filepath.Join(layout.WorkDir(), "source.wav")
	if err := u.d.Media.ExtractAudio(ctx, info.Path, wav); err != nil {
		return nil, err
	}
	defer os.Remove(wav)
	return u.d.Transcripts.Transcribe(ctx, wav)
}

// Render renders one candidate of a completed run. A failure leaves the
// candidate failed and retriable.
func (u *Usecase) Render(ctx context.Context, candidateID int64) (types.Candidate, error) {
	c, run, err := u.loadCandidate(ctx, candidateID)
	if err != nil {
		return types.Candidate{}, err
	}
	return u.renderOne(ctx, run, c)
}

func (u *Usecase) renderOne(ctx context.Context, run types.Run, c types.Candidate) (types.Candidate, error) {
	ctx = logging.WithRunID(ctx, run.ID)
	job := ports.JobRef{RunID: run.ID, CandidateID: c.ID}
	u.d.Progress.Report(ctx, job, progress.Rendering)

	res, err := u.d.Renderer.Render(ctx, render.Job{
		RunDir:    u.RunDir(run.ID),
		Source:    sourceOf(run),
		Candidate: c,
	})
	if err != nil {
		if errors.Is(err, render.ErrRenderInProgress) {
			return c, err
		}
		if merr := u.d.Store.MarkCandidateFailed(context.WithoutCancel(ctx), c.ID, err.Error()); merr != nil {
			logging.WithContext(ctx, u.logger).Error("could not record render failure", logging.Error(merr))
		}
		u.d.Progress.Result(ctx, job, ports.Outcome{Status: progress.StatusFailed, Err: err})
		return c, err
	}

	if err := u.d.Store.MarkCandidateRendered(ctx, c.ID, res.ClipPath, res.SubtitlePath); err != nil {
		return c, err
	}
	detail := res.ClipPath
	if res.Degraded {
		detail += " (placeholder captions)"
	}
	u.d.Progress.Result(ctx, job, ports.Outcome{Status: progress.StatusCompleted, Detail: detail})
	return u.d.Store.GetCandidate(ctx, c.ID)
}

// RenderSummary reports a batch render. Failed holds the error per candidate.
type RenderSummary struct {
	Rendered []types.Candidate
	Failed   map[int64]error
	Skipped  int
}

// RenderAll renders every candidate of a run that is not rendered yet, at
// most concurrency at a time. One failure never stops its siblings.
func (u *Usecase) RenderAll(ctx context.Context, runID string, concurrency int) (RenderSummary, error) {
	run, err := u.d.Store.GetRun(ctx, runID)
	if err != nil {
		return RenderSummary{}, err
	}
	if run.Status != types.RunAnalysisCompleted {
		return RenderSummary{}, fmt.Errorf("run %s is %s: %w", runID, run.Status, ErrRunNotReady)
	}
	all, err := u.d.Store.ListCandidates(ctx, runID)
	if err != nil {
		return RenderSummary{}, err
	}
	var todo []types.Candidate
	for _, c := range all {
		if !c.Rendered {
			todo = append(todo, c)
		}
	}
	summary := RenderSummary{Failed: map[int64]error{}, Skipped: len(all) - len(todo)}
	results, errs := renderBatch(ctx, todo, concurrency, func(ctx context.Context, c types.Candidate) (types.Candidate, error) {
		return u.renderOne(ctx, run, c)
	})
	for i, c := range todo {
		if errs[i] != nil {
			summary.Failed[c.ID] = errs[i]
			continue
		}
		summary.Rendered = append(summary.Rendered, results[i])
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if len(summary.Failed) > 0 {
		return summary, fmt.Errorf("%d of %d renders failed", len(summary.Failed), len(todo))
	}
	return summary, nil
}

// Prepare builds the editor draft for a candidate. Failures are recorded on
// the candidate without touching its render status.
func (u *Usecase) Prepare(ctx context.Context, candidateID int64) (render.Draft, error) {
	c, run, err := u.loadCandidate(ctx, candidateID)
	if err != nil {
		return render.Draft{}, err
	}
	ctx = logging.WithRunID(ctx, run.ID)
	job := ports.JobRef{RunID: run.ID, CandidateID: c.ID}
	u.d.Progress.Report(ctx, job, progress.Preparing)

	draft, err := u.d.Drafts.Prepare(ctx, render.Job{
		RunDir:    u.RunDir(run.ID),
		Source:    sourceOf(run),
		Candidate: c,
	})
	if err != nil {
		if rerr := u.d.Store.RecordDraftFailure(context.WithoutCancel(ctx), c.ID, err.Error()); rerr != nil {
			logging.WithContext(ctx, u.logger).Error("could not record draft failure", logging.Error(rerr))
		}
		u.d.Progress.Result(ctx, job, ports.Outcome{Status: progress.StatusFailed, Err: err})
		return render.Draft{}, err
	}
	if err := u.d.Store.AttachDraft(ctx, c.ID, draft.VideoPath, draft.Words); err != nil {
		return render.Draft{}, err
	}
	u.d.Progress.Result(ctx, job, ports.Outcome{Status: progress.StatusCompleted, Detail: draft.VideoPath})
	return draft, nil
}

func (u *Usecase) loadCandidate(ctx context.Context, id int64) (types.Candidate, types.Run, error) {
	c, err := u.d.Store.GetCandidate(ctx, id)
	if err != nil {
		return types.Candidate{}, types.Run{}, err
	}
	run, err := u.d.Store.GetRun(ctx, c.RunID)
	if err != nil {
		return types.Candidate{}, types.Run{}, err
	}
	if run.Status != types.RunAnalysisCompleted {
		return types.Candidate{}, types.Run{}, fmt.Errorf("run %s is %s: %w", run.ID, run.Status, ErrRunNotReady)
	}
	return c, run, nil
}

func sourceOf(run types.Run) types.SourceVideo {
	return types.SourceVideo{Path: run.SourcePath, DurationSec: run.DurationSec}
}

func isRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
