package subtitles

import (
	"fmt"
	"strings"
)

// Style is the fixed look of burned-in captions, expressed as libass
// overrides applied to the SRT track.
type Style struct {
	Font         string
	Size         int
	PrimaryColor string // &HAABBGGRR
	OutlineColor string
	Outline      int
	Shadow       int
	MarginV      int
	Alignment    int // numpad layout, 2 = bottom centre
	Bold         bool
}

func DefaultStyle() Style {
	return Style{
		Font:         "Inter",
		Size:         16,
		PrimaryColor: "&H00FFFFFF",
		OutlineColor: "&H00000000",
		Outline:      2,
		Shadow:       1,
		MarginV:      60,
		Alignment:    2,
		Bold:         true,
	}
}

// ForceStyle renders the style for the ffmpeg subtitles filter.
func (s Style) ForceStyle() string {
	bold := 0
	if s.Bold {
		bold = 1
	}
	parts := []string{
		"FontName=" + sanitizeFont(s.Font),
		fmt.Sprintf("FontSize=%d", s.Size),
		"PrimaryColour=" + s.PrimaryColor,
		"OutlineColour=" + s.OutlineColor,
		"BorderStyle=1",
		fmt.Sprintf("Outline=%d", s.Outline),
		fmt.Sprintf("Shadow=%d", s.Shadow),
		fmt.Sprintf("Bold=%d", bold),
		fmt.Sprintf("Alignment=%d", s.Alignment),
		fmt.Sprintf("MarginV=%d", s.MarginV),
	}
	return strings.Join(parts, ",")
}

func sanitizeFont(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer(",", " ", "'", "", ":", " ", "=", " ").Replace(name)
	if name == "" {
		return "Arial"
	}
	return name
}
