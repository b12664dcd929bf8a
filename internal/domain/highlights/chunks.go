package highlights

import (
	"fmt"
	"strings"

	"github.com/forPelevin/reelcut/internal/types"
)

// Chunk is a sentence-sized slice of a transcript with heuristic scores.
type Chunk struct {
	Start float64
	End   float64
	Text  string
	Info  float64
	Hook  float64
}

const (
	chunkMaxWords = 40
	chunkMaxSec   = 15.0
	chunkGapSec   = 1.2
)

// BuildChunks groups words into chunks that break on sentence ends, long
// pauses, or size limits.
func BuildChunks(words []types.TimedWord) []Chunk {
	var out []Chunk
	var parts []string
	var cur Chunk
	flush := func() {
		if len(parts) == 0 {
			return
		}
		cur.Text = strings.Join(parts, " ")
		cur.Info, cur.Hook = Score(cur.Text)
		out = append(out, cur)
		parts = parts[:0]
	}
	for i, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" || w.End <= w.Start {
			continue
		}
		if len(parts) > 0 && w.Start-cur.End > chunkGapSec {
			flush()
		}
		if len(parts) == 0 {
			cur = Chunk{Start: w.Start}
		}
		parts = append(parts, text)
		cur.End = w.End
		last := i == len(words)-1
		if last || endsSentence(text) || len(parts) >= chunkMaxWords || cur.End-cur.Start >= chunkMaxSec {
			flush()
		}
	}
	flush()
	return out
}

// FormatChunks renders chunks as timestamped lines for a text-only model.
func FormatChunks(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "[%.1f-%.1f] (info %.1f, hook %.1f) %s\n", c.Start, c.End, c.Info, c.Hook, c.Text)
	}
	return b.String()
}

func endsSentence(s string) bool {
	s = strings.TrimRight(s, `"')]»”`)
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") || strings.HasSuffix(s, "…")
}
