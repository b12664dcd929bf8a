package usecase

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/forPelevin/reelcut/internal/domain/highlights"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/render"
	"github.com/forPelevin/reelcut/internal/retry"
	"github.com/forPelevin/reelcut/internal/selector"
	"github.com/forPelevin/reelcut/internal/store"
	"github.com/forPelevin/reelcut/internal/testsupport"
	"github.com/forPelevin/reelcut/internal/transcribe"
	"github.com/forPelevin/reelcut/internal/types"
)

type fakeMedia struct {
	duration float64
	probeErr error
	audio    []string
}

func (f *fakeMedia) Probe(_ context.Context, path string) (types.SourceVideo, error) {
	if f.probeErr != nil {
		return types.SourceVideo{}, f.probeErr
	}
	return types.SourceVideo{Path: path, DurationSec: f.duration, Width: 1920, Height: 1080, FPS: 30}, nil
}

func (f *fakeMedia) Trim(context.Context, string, types.Segment, string) error { return nil }

func (f *fakeMedia) ExtractAudio(_ context.Context, _, outWav string) error {
	f.audio = append(f.audio, outWav)
	return os.WriteFile(outWav, []byte("wav"), 0o644)
}

func (f *fakeMedia) Encode(context.Context, ports.EncodeSpec) error { return nil }

func (f *fakeMedia) Frame(context.Context, string, float64) (image.Image, error) {
	return nil, errors.New("no frames")
}

type fakeProposer struct {
	answer   string
	textOnly bool
	lastReq  ports.ProposalRequest
}

func (f *fakeProposer) Propose(_ context.Context, req ports.ProposalRequest) (string, error) {
	f.lastReq = req
	return f.answer, nil
}

func (f *fakeProposer) NeedsTranscript() bool { return f.textOnly }

type fakeTranscriber struct{ words []types.TimedWord }

func (f fakeTranscriber) Transcribe(context.Context, string) ([]types.TimedWord, error) {
	return f.words, nil
}

type fakeFetcher struct {
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, dir string) (ports.FetchResult, error) {
	f.calls++
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ports.FetchResult{}, err
	}
	path := filepath.Join(dir, "source.mp4")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		return ports.FetchResult{}, err
	}
	return ports.FetchResult{Path: path, Title: "Remote Talk"}, nil
}

type fakeRenderer struct {
	mu       sync.Mutex
	fail     map[int64]error
	inFlight int
	maxSeen  int
	jobs     []render.Job
}

func (f *fakeRenderer) Render(_ context.Context, job render.Job) (render.Result, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.inFlight++
	f.maxSeen = max(f.maxSeen, f.inFlight)
	err := f.fail[job.Candidate.ID]
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	if err != nil {
		return render.Result{}, err
	}
	id := job.Candidate.ID
	return render.Result{
		ClipPath:     filepath.Join(job.RunDir, "clips", fmt.Sprintf("render_%d.mp4", id)),
		SubtitlePath: filepath.Join(job.RunDir, "subtitles", fmt.Sprintf("render_%d.srt", id)),
	}, nil
}

type fakeDrafter struct{ err error }

func (f fakeDrafter) Prepare(_ context.Context, job render.Job) (render.Draft, error) {
	if f.err != nil {
		return render.Draft{}, f.err
	}
	return render.Draft{
		VideoPath: filepath.Join(job.RunDir, "drafts", "draft.mp4"),
		Words:     []types.TimedWord{{Start: 0, End: 1, Text: "hi"}},
	}, nil
}

type recordingProgress struct {
	mu       sync.Mutex
	labels   []string
	outcomes []ports.Outcome
}

func (r *recordingProgress) Report(_ context.Context, _ ports.JobRef, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = append(r.labels, label)
}

func (r *recordingProgress) Result(_ context.Context, _ ports.JobRef, o ports.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

type harness struct {
	uc       *Usecase
	store    *store.Store
	media    *fakeMedia
	proposer *fakeProposer
	fetcher  *fakeFetcher
	renderer *fakeRenderer
	progress *recordingProgress
	source   string
}

func newHarness(t *testing.T, answer string) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(testsupport.BaseDir(cfg), "talk.mp4")
	testsupport.WriteFile(t, source, []byte("video"))

	h := &harness{
		store:    st,
		media:    &fakeMedia{duration: 650},
		proposer: &fakeProposer{answer: answer},
		fetcher:  &fakeFetcher{},
		renderer: &fakeRenderer{fail: map[int64]error{}},
		progress: &recordingProgress{},
		source:   source,
	}
	policy := retry.Policy{MaxAttempts: 1}
	h.uc = New(Deps{
		Store:       st,
		Media:       h.media,
		Fetcher:     h.fetcher,
		Selector:    selector.New(h.proposer, highlights.DefaultRules(), policy, nil),
		Transcripts: transcribe.New(fakeTranscriber{words: []types.TimedWord{{Start: 1, End: 2, Text: "hello there"}}}, policy, "", nil),
		Renderer:    h.renderer,
		Drafts:      fakeDrafter{},
		Progress:    h.progress,
		RunsDir:     cfg.RunsDir(),
	})
	return h
}

const twoClips = `{"clips":[
  {"start":10,"end":50,"title":"first","score":90},
  {"start":100,"end":160,"title":"second","score":70}
]}`

func TestAnalyze_CompletesWithCandidates(t *testing.T) {
	h := newHarness(t, twoClips)
	ctx := context.Background()

	run, err := h.uc.Submit(ctx, h.source, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if run.Status != types.RunAnalyzing || run.ID == "" {
		t.Fatalf("unexpected submitted run %+v", run)
	}

	res, err := h.uc.Analyze(ctx, run.ID)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Run.Status != types.RunAnalysisCompleted || res.Run.CandidatesCount != 2 || len(res.Candidates) != 2 {
		t.Fatalf("expected completed run with 2 candidates, got %+v", res.Run)
	}
	if res.Run.Title != "talk" || res.Run.SourcePath != h.source || res.Run.DurationSec != 650 {
		t.Fatalf("expected probed source details, got %+v", res.Run)
	}
	if got := strings.Join(h.progress.labels, ","); got != "probing,analyzing" {
		t.Fatalf("unexpected milestones %q", got)
	}
	if !strings.Contains(h.proposer.lastReq.Prompt, "Find the 6 most viral-worthy moments") {
		t.Fatalf("expected target of 6 clips for 650s, prompt: %s", h.proposer.lastReq.Prompt)
	}
}

func TestAnalyze_NoAcceptedProposalsStillCompletes(t *testing.T) {
	h := newHarness(t, `[{"start":10,"end":13,"title":"too short"}]`)
	ctx := context.Background()

	run, _ := h.uc.Submit(ctx, h.source, "My talk")
	res, err := h.uc.Analyze(ctx, run.ID)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Run.Status != types.RunAnalysisCompleted || res.Run.CandidatesCount != 0 {
		t.Fatalf("expected completed run with no candidates, got %+v", res.Run)
	}
	if !strings.Contains(res.Run.Reason, "none of 1 proposals") {
		t.Fatalf("expected an explanatory note, got %q", res.Run.Reason)
	}
	if res.Run.Title != "My talk" {
		t.Fatalf("expected user title to be kept, got %q", res.Run.Title)
	}
	last := h.progress.outcomes[len(h.progress.outcomes)-1]
	if last.Status != "no_candidates" {
		t.Fatalf("expected no_candidates outcome, got %+v", last)
	}
}

func TestAnalyze_FailureIsRecordedAndRetriable(t *testing.T) {
	h := newHarness(t, twoClips)
	ctx := context.Background()
	h.media.probeErr = errors.New("moov atom not found")

	run, _ := h.uc.Submit(ctx, h.source, "")
	res, err := h.uc.Analyze(ctx, run.ID)
	if err == nil {
		t.Fatalf("expected probe error")
	}
	if res.Run.Status != types.RunFailed || !strings.Contains(res.Run.Reason, "probe: moov atom not found") {
		t.Fatalf("expected failed run with reason, got %+v", res.Run)
	}

	h.media.probeErr = nil
	res, err = h.uc.Reanalyze(ctx, run.ID)
	if err != nil {
		t.Fatalf("Reanalyze: %v", err)
	}
	if res.Run.Status != types.RunAnalysisCompleted || res.Run.Reason != "" {
		t.Fatalf("expected recovered run, got %+v", res.Run)
	}

	if _, err := h.uc.Reanalyze(ctx, run.ID); !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("expected completed run to refuse re-analysis, got %v", err)
	}
}

func TestAnalyze_MissingSourceFails(t *testing.T) {
	h := newHarness(t, twoClips)
	ctx := context.Background()

	run, _ := h.uc.Submit(ctx, filepath.Join(filepath.Dir(h.source), "missing.mp4"), "")
	res, err := h.uc.Analyze(ctx, run.ID)
	if err == nil {
		t.Fatalf("expected error")
	}
	if res.Run.Status != types.RunFailed || !strings.HasPrefix(res.Run.Reason, "source:") {
		t.Fatalf("expected source failure, got %+v", res.Run)
	}
}

func TestAnalyze_RunDirectoryFailureFailsRun(t *testing.T) {
	h := newHarness(t, twoClips)
	ctx := context.Background()

	run, _ := h.uc.Submit(ctx, h.source, "")
	// A regular file where the run directory belongs.
	testsupport.WriteFile(t, h.uc.RunDir(run.ID), []byte("not a dir"))

	res, err := h.uc.Analyze(ctx, run.ID)
	if err == nil {
		t.Fatalf("expected run directory error")
	}
	if res.Run.Status != types.RunFailed || !strings.HasPrefix(res.Run.Reason, "run directory:") {
		t.Fatalf("expected failed run with reason, got %+v", res.Run)
	}
	stored, err := h.store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Status != types.RunFailed {
		t.Fatalf("expected stored run failed, got %s", stored.Status)
	}
}

func TestAnalyze_DownloadsURLSources(t *testing.T) {
	h := newHarness(t, twoClips)
	ctx := context.Background()

	run, _ := h.uc.Submit(ctx, "https://www.youtube.com/watch?v=abc", "")
	res, err := h.uc.Analyze(ctx, run.ID)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if h.fetcher.calls != 1 {
		t.Fatalf("expected one download, got %d", h.fetcher.calls)
	}
	if res.Run.Title != "Remote Talk" || !strings.HasPrefix(res.Run.SourcePath, h.uc.RunDir(run.ID)) {
		t.Fatalf("expected downloaded source, got %+v", res.Run)
	}
	if h.progress.labels[0] != "downloading" {
		t.Fatalf("expected downloading milestone first, got %v", h.progress.labels)
	}
}

func TestAnalyze_TextOnlySelectorGetsTranscript(t *testing.T) {
	h := newHarness(t, twoClips)
	h.proposer.textOnly = true
	ctx := context.Background()

	run, _ := h.uc.Submit(ctx, h.source, "")
	if _, err := h.uc.Analyze(ctx, run.ID); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(h.proposer.lastReq.Transcript) != 1 || h.proposer.lastReq.Transcript[0].Text != "hello there" {
		t.Fatalf("expected transcript to reach proposer, got %+v", h.proposer.lastReq.Transcript)
	}
	if got := strings.Join(h.progress.labels, ","); got != "probing,transcribing,analyzing" {
		t.Fatalf("unexpected milestones %q", got)
	}
	if _, err := os.Stat(h.media.audio[0]); !os.IsNotExist(err) {
		t.Fatalf("expected source audio to be removed")
	}
}

func analyzed(t *testing.T, h *harness) AnalyzeResult {
	t.Helper()
	ctx := context.Background()
	run, err := h.uc.Submit(ctx, h.source, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := h.uc.Analyze(ctx, run.ID)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return res
}

func TestRender_FailureIsRetriable(t *testing.T) {
	h := newHarness(t, twoClips)
	ctx := context.Background()
	res := analyzed(t, h)
	id := res.Candidates[0].ID

	h.renderer.fail[id] = errors.New("encode candidate: exit status 1")
	if _, err := h.uc.Render(ctx, id); err == nil {
		t.Fatalf("expected render error")
	}
	c, _ := h.store.GetCandidate(ctx, id)
	if c.Status != types.CandidateFailed || !strings.Contains(c.LastError, "exit status 1") || c.Rendered {
		t.Fatalf("expected failed candidate, got %+v", c)
	}

	delete(h.renderer.fail, id)
	c, err := h.uc.Render(ctx, id)
	if err != nil {
		t.Fatalf("Render retry: %v", err)
	}
	if !c.Rendered || c.Status != types.CandidateRendered || !strings.HasSuffix(c.ClipPath, fmt.Sprintf("render_%d.mp4", id)) {
		t.Fatalf("expected rendered candidate, got %+v", c)
	}
	job := h.renderer.jobs[len(h.renderer.jobs)-1]
	if job.Source.Path != h.source || job.Source.DurationSec != 650 || job.RunDir != h.uc.RunDir(res.Run.ID) {
		t.Fatalf("unexpected render job %+v", job)
	}
}

func TestRender_RequiresCompletedRun(t *testing.T) {
	h := newHarness(t, twoClips)
	ctx := context.Background()
	res := analyzed(t, h)

	if err := h.store.CreateRun(ctx, types.Run{ID: "pending", Source: h.source}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if _, err := h.uc.RenderAll(ctx, "pending", 2); !errors.Is(err, ErrRunNotReady) {
		t.Fatalf("expected ErrRunNotReady, got %v", err)
	}
	if _, err := h.uc.Render(ctx, res.Candidates[0].ID+100); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRender_InProgressLeavesCandidateAlone(t *testing.T) {
	h := newHarness(t, twoClips)
	ctx := context.Background()
	res := analyzed(t, h)
	id := res.Candidates[0].ID

	h.renderer.fail[id] = fmt.Errorf("candidate %d: %w", id, render.ErrRenderInProgress)
	if _, err := h.uc.Render(ctx, id); !errors.Is(err, render.ErrRenderInProgress) {
		t.Fatalf("expected ErrRenderInProgress, got %v", err)
	}
	c, _ := h.store.GetCandidate(ctx, id)
	if c.Status != types.CandidatePending {
		t.Fatalf("expected candidate to stay pending, got %s", c.Status)
	}
}

func TestRenderAll_BoundedAndIsolated(t *testing.T) {
	answer := `[
	  {"start":0,"end":40,"title":"a"},
	  {"start":50,"end":90,"title":"b"},
	  {"start":100,"end":140,"title":"c"},
	  {"start":150,"end":190,"title":"d"}
	]`
	h := newHarness(t, answer)
	ctx := context.Background()
	res := analyzed(t, h)
	if len(res.Candidates) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(res.Candidates))
	}
	bad := res.Candidates[1].ID
	h.renderer.fail[bad] = errors.New("boom")

	summary, err := h.uc.RenderAll(ctx, res.Run.ID, 2)
	if err == nil {
		t.Fatalf("expected aggregate error")
	}
	if len(summary.Rendered) != 3 || len(summary.Failed) != 1 || summary.Failed[bad] == nil {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if h.renderer.maxSeen > 2 {
		t.Fatalf("expected at most 2 renders in flight, saw %d", h.renderer.maxSeen)
	}

	delete(h.renderer.fail, bad)
	summary, err = h.uc.RenderAll(ctx, res.Run.ID, 2)
	if err != nil {
		t.Fatalf("RenderAll retry: %v", err)
	}
	if len(summary.Rendered) != 1 || summary.Skipped != 3 {
		t.Fatalf("expected only the failed candidate to be retried, got %+v", summary)
	}
}

func TestPrepare_RecordsDraftOrFailure(t *testing.T) {
	h := newHarness(t, twoClips)
	ctx := context.Background()
	res := analyzed(t, h)
	id := res.Candidates[0].ID

	h.uc.d.Drafts = fakeDrafter{err: errors.New("no audio stream")}
	if _, err := h.uc.Prepare(ctx, id); err == nil {
		t.Fatalf("expected prepare error")
	}
	c, _ := h.store.GetCandidate(ctx, id)
	if c.DraftError != "no audio stream" || c.Status != types.CandidatePending {
		t.Fatalf("expected draft error only, got %+v", c)
	}

	h.uc.d.Drafts = fakeDrafter{}
	draft, err := h.uc.Prepare(ctx, id)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	c, _ = h.store.GetCandidate(ctx, id)
	if c.DraftPath != draft.VideoPath || c.DraftError != "" || len(c.DraftWords) != 1 {
		t.Fatalf("expected draft to be attached, got %+v", c)
	}
}
