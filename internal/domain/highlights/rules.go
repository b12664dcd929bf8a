package highlights

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Rules constrain how many clips are requested and how long they may be.
type Rules struct {
	WindowSec      float64
	MinCount       int
	MaxCount       int
	MinDurationSec float64
	MaxDurationSec float64
	// Language forces the output language; empty means the spoken language.
	Language string
}

func DefaultRules() Rules {
	return Rules{
		WindowSec:      120,
		MinCount:       3,
		MaxCount:       10,
		MinDurationSec: 30,
		MaxDurationSec: 90,
	}
}

func (r Rules) Validate() error {
	if r.WindowSec <= 0 {
		return errors.New("window must be > 0")
	}
	if r.MinCount < 1 {
		return errors.New("min count must be >= 1")
	}
	if r.MaxCount < r.MinCount {
		return fmt.Errorf("max count %d must be >= min count %d", r.MaxCount, r.MinCount)
	}
	if r.MinDurationSec <= 0 {
		return errors.New("min duration must be > 0")
	}
	if r.MaxDurationSec < r.MinDurationSec {
		return fmt.Errorf("max duration %.1fs must be >= min duration %.1fs", r.MaxDurationSec, r.MinDurationSec)
	}
	return nil
}

// TargetCount is max(minCount, min(maxCount, ceil(total/window))).
func TargetCount(totalSec, windowSec float64, minCount, maxCount int) int {
	n := 0
	if windowSec > 0 && totalSec > 0 {
		n = int(math.Ceil(totalSec / windowSec))
	}
	return max(minCount, min(maxCount, n))
}

func (r Rules) Target(totalSec float64) int {
	return TargetCount(totalSec, r.WindowSec, r.MinCount, r.MaxCount)
}

// AcceptsDuration reports whether a clip length is inside the bounds.
func (r Rules) AcceptsDuration(d float64) bool {
	return d >= r.MinDurationSec && d <= r.MaxDurationSec
}

// Prompt asks a model for count viral segments of a video.
func (r Rules) Prompt(count int, totalSec float64) string {
	lang := "the same language that is spoken in the video"
	if l := strings.TrimSpace(r.Language); l != "" {
		lang = l
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert short-form video editor. Find the %d most viral-worthy moments of this %s long video.\n", count, formatClock(totalSec))
	fmt.Fprintf(&b, "Each moment must last between %.0f and %.0f seconds, start on a strong hook and end on a complete thought.\n", r.MinDurationSec, r.MaxDurationSec)
	fmt.Fprintf(&b, "Write titles and rationales in %s.\n", lang)
	b.WriteString("Answer with JSON only, no markdown, in this shape:\n")
	b.WriteString(`{"clips":[{"start":"MM:SS","end":"MM:SS","title":"...","rationale":"why it will perform","score":0-100}]}`)
	b.WriteString("\nTimestamps may also be plain seconds. Scores rate virality from 0 to 100.")
	return b.String()
}

func formatClock(sec float64) string {
	s := int(math.Round(sec))
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s%3600/60, s%60)
	}
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
