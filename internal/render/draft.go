package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/forPelevin/reelcut/internal/domain/geometry"
	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/transcribe"
	"github.com/forPelevin/reelcut/internal/types"
)

// Draft is the editor hand-off for a candidate: a silent centred preview and
// the raw word timings relative to the candidate start.
type Draft struct {
	VideoPath string            `json:"video_path"`
	WordsPath string            `json:"words_path"`
	Words     []types.TimedWord `json:"words"`
}

type draftWords struct {
	CandidateID int64             `json:"candidate_id"`
	Start       float64           `json:"start"`
	End         float64           `json:"end"`
	Words       []types.TimedWord `json:"words"`
}

// Preparer builds editor drafts. Drafts never burn captions and never track
// faces; the crop is always centred.
type Preparer struct {
	Media         ports.MediaTool
	Captions      *transcribe.Engine
	EncodeTimeout time.Duration
	CRF           int
	Preset        string
	Logger        *slog.Logger
}

func (p *Preparer) Prepare(ctx context.Context, job Job) (Draft, error) {
	c := job.Candidate
	ctx = logging.WithCandidateID(ctx, c.ID)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.Logger, "draft"))

	if err := checkSegment(c, job.Source); err != nil {
		return Draft{}, err
	}
	layout := NewLayout(job.RunDir)
	if err := layout.Ensure(); err != nil {
		return Draft{}, err
	}
	unlock, err := acquire(layout.DraftLockPath(c.ID), c.ID)
	if err != nil {
		return Draft{}, err
	}
	defer unlock()

	segPath := layout.DraftSegmentPath(c.ID)
	wavPath := layout.DraftAudioPath(c.ID)
	out := Draft{VideoPath: layout.DraftPath(c.ID), WordsPath: layout.DraftWordsPath(c.ID)}

	if err := p.Media.Trim(ctx, job.Source.Path, c.Segment, segPath); err != nil {
		return Draft{}, fmt.Errorf("trim segment: %w", err)
	}
	if err := p.Media.ExtractAudio(ctx, segPath, wavPath); err != nil {
		return Draft{}, fmt.Errorf("extract audio: %w", err)
	}
	words, err := p.Captions.Transcribe(ctx, wavPath)
	if err != nil {
		return Draft{}, err
	}
	out.Words = clampWords(words, c.Segment.Duration())

	info, err := p.Media.Probe(ctx, segPath)
	if err != nil {
		return Draft{}, fmt.Errorf("probe segment: %w", err)
	}
	crop, err := geometry.Crop(info.Width, info.Height, float64(info.Width)/2)
	if err != nil {
		return Draft{}, err
	}

	timeout := p.EncodeTimeout
	if timeout <= 0 {
		timeout = DefaultEncodeTimeout
	}
	encodeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.Media.Encode(encodeCtx, ports.EncodeSpec{
		Input:  segPath,
		Output: out.VideoPath,
		Crop:   crop,
		Silent: true,
		CRF:    p.CRF,
		Preset: p.Preset,
	}); err != nil {
		return Draft{}, fmt.Errorf("encode draft: %w", err)
	}

	payload, err := json.MarshalIndent(draftWords{
		CandidateID: c.ID,
		Start:       c.Segment.Start,
		End:         c.Segment.End,
		Words:       out.Words,
	}, "", "  ")
	if err != nil {
		return Draft{}, fmt.Errorf("marshal draft words: %w", err)
	}
	if err := os.WriteFile(out.WordsPath, payload, 0o644); err != nil {
		return Draft{}, fmt.Errorf("write draft words: %w", err)
	}

	removeAll(logger, segPath, wavPath)
	logger.Info("draft prepared",
		logging.String("draft", out.VideoPath),
		logging.Int("words", len(out.Words)),
	)
	return out, nil
}
