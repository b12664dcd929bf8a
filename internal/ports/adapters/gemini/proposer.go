package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/forPelevin/reelcut/internal/domain/highlights"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

// Proposer uploads the whole source video and asks Gemini for highlights.
type Proposer struct {
	client *Client
}

func NewProposer(c *Client) *Proposer { return &Proposer{client: c} }

func (p *Proposer) Propose(ctx context.Context, req ports.ProposalRequest) (string, error) {
	if req.VideoPath == "" {
		return "", errors.New("gemini proposer: video path is required")
	}
	return p.client.withFile(ctx, req.VideoPath, func(f File) (string, error) {
		return p.client.Generate(ctx, &f, req.Prompt)
	})
}

const transcribePrompt = `Transcribe the speech in this audio.
Return only JSON: an array of objects {"start": seconds, "end": seconds, "text": string}.
Use one object per short phrase (at most 8 words), in chronological order, timestamps relative to the start of the audio.
Transcribe verbatim: keep the exact words as spoken, including slang, filler words and informal grammar.
Do not translate, paraphrase, summarize or correct anything; keep the original spoken language.
Return [] if there is no speech.`

// Transcriber is the cloud transcription strategy.
type Transcriber struct {
	client *Client
}

func NewTranscriber(c *Client) *Transcriber { return &Transcriber{client: c} }

func (t *Transcriber) Transcribe(ctx context.Context, mediaPath string) ([]types.TimedWord, error) {
	content, err := t.client.withFile(ctx, mediaPath, func(f File) (string, error) {
		return t.client.Generate(ctx, &f, transcribePrompt)
	})
	if err != nil {
		return nil, err
	}
	return parseTranscript(content)
}

type transcriptEntry struct {
	Start json.RawMessage `json:"start"`
	End   json.RawMessage `json:"end"`
	Text  string          `json:"text"`
}

func parseTranscript(content string) ([]types.TimedWord, error) {
	t := strings.TrimSpace(content)
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	t = strings.TrimSpace(t)

	var entries []transcriptEntry
	if err := json.Unmarshal([]byte(t), &entries); err != nil {
		var wrapped struct {
			Segments []transcriptEntry `json:"segments"`
		}
		if err2 := json.Unmarshal([]byte(t), &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode gemini transcript: %w", err)
		}
		entries = wrapped.Segments
	}
	out := make([]types.TimedWord, 0, len(entries))
	for i, e := range entries {
		start, err := timeValue(e.Start)
		if err != nil {
			return nil, fmt.Errorf("transcript entry %d start: %w", i, err)
		}
		end, err := timeValue(e.End)
		if err != nil {
			return nil, fmt.Errorf("transcript entry %d end: %w", i, err)
		}
		out = append(out, types.TimedWord{Start: start, End: end, Text: strings.TrimSpace(e.Text)})
	}
	return out, nil
}

func timeValue(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("unsupported time value %s", string(raw))
	}
	return highlights.ParseTimestamp(s)
}
