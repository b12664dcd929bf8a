package subtitles

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/forPelevin/reelcut/internal/types"
)

// MinCueDuration is the shortest cue, in milliseconds, the compiler emits.
const MinCueDuration = 1

var ErrDegenerateCue = errors.New("cue shorter than 1ms")

// Compile renders one SubRip cue per entry, in input order.
func Compile(words []types.TimedWord) (string, error) {
	var b strings.Builder
	for i, w := range words {
		start, end := toMillis(w.Start), toMillis(w.End)
		if start < 0 {
			return "", fmt.Errorf("cue %d: negative start %.3f", i+1, w.Start)
		}
		if end-start < MinCueDuration {
			return "", fmt.Errorf("cue %d [%.3f, %.3f): %w", i+1, w.Start, w.End, ErrDegenerateCue)
		}
		text := cueText(w.Text)
		if text == "" {
			return "", fmt.Errorf("cue %d: empty text", i+1)
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", i+1, FormatTimestamp(start), FormatTimestamp(end), text)
	}
	return b.String(), nil
}

// WriteFile compiles words and writes them to path.
func WriteFile(path string, words []types.TimedWord) error {
	srt, err := Compile(words)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(srt), 0o644); err != nil {
		return fmt.Errorf("write subtitles: %w", err)
	}
	return nil
}

// Placeholder is the single-cue track used when transcription is unavailable.
func Placeholder(durationSec float64, text string) []types.TimedWord {
	if strings.TrimSpace(text) == "" {
		text = "..."
	}
	return []types.TimedWord{{Start: 0, End: durationSec, Text: text}}
}

// Parse reads SubRip text back into timed entries.
func Parse(content string) ([]types.TimedWord, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")
	var out []types.TimedWord
	for _, block := range strings.Split(strings.TrimSpace(content), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) < 2 {
			return nil, fmt.Errorf("malformed cue %q", block)
		}
		timing := lines[1]
		if !strings.Contains(timing, "-->") {
			// Index line is optional in some producers.
			timing = lines[0]
			lines = append([]string{""}, lines...)
		}
		parts := strings.SplitN(timing, "-->", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed timing %q", timing)
		}
		start, err := ParseTimestamp(parts[0])
		if err != nil {
			return nil, err
		}
		end, err := ParseTimestamp(parts[1])
		if err != nil {
			return nil, err
		}
		out = append(out, types.TimedWord{
			Start: float64(start) / 1000,
			End:   float64(end) / 1000,
			Text:  strings.Join(lines[2:], "\n"),
		})
	}
	return out, nil
}

// FormatTimestamp renders milliseconds as HH:MM:SS,mmm.
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	ms %= 3_600_000
	m := ms / 60_000
	ms %= 60_000
	s := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// ParseTimestamp accepts HH:MM:SS,mmm and the HH:MM:SS.mmm variant.
func ParseTimestamp(v string) (int64, error) {
	v = strings.TrimSpace(strings.Replace(v, ".", ",", 1))
	clock, frac, _ := strings.Cut(v, ",")
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", v)
	}
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", v)
		}
		total = total*60 + n
	}
	var ms int64
	if frac != "" {
		for len(frac) < 3 {
			frac += "0"
		}
		n, err := strconv.ParseInt(frac[:3], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", v)
		}
		ms = n
	}
	return total*1000 + ms, nil
}

func toMillis(sec float64) int64 {
	return int64(math.Round(sec * 1000))
}

// cueText flattens whitespace so a cue never contains a blank line.
func cueText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
