package subtitles

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/reelcut/internal/types"
)

func TestCompile_OneCuePerEntry(t *testing.T) {
	words := []types.TimedWord{
		{Start: 0.1, End: 0.7, Text: "hello"},
		{Start: 0.8, End: 1.4, Text: "world"},
		{Start: 3661.25, End: 3662, Text: "  later \n on "},
	}
	got, err := Compile(words)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := "1\n00:00:00,100 --> 00:00:00,700\nhello\n\n" +
		"2\n00:00:00,800 --> 00:00:01,400\nworld\n\n" +
		"3\n01:01:01,250 --> 01:01:02,000\nlater on\n"
	if got != want {
		t.Fatalf("unexpected SRT:\n%s\nwant:\n%s", got, want)
	}
}

func TestCompile_RoundTrip(t *testing.T) {
	words := []types.TimedWord{
		{Start: 0, End: 0.5, Text: "a"},
		{Start: 0.5, End: 1.25, Text: "b c"},
		{Start: 2, End: 2.001, Text: "d"},
	}
	srt, err := Compile(words)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	parsed, err := Parse(srt)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed) != len(words) {
		t.Fatalf("expected %d cues, got %d", len(words), len(parsed))
	}
	for i := range words {
		if math.Abs(parsed[i].Start-words[i].Start) > 0.0005 || math.Abs(parsed[i].End-words[i].End) > 0.0005 {
			t.Fatalf("cue %d timing drifted: %+v vs %+v", i, parsed[i], words[i])
		}
		if parsed[i].Text != words[i].Text {
			t.Fatalf("cue %d text = %q, want %q", i, parsed[i].Text, words[i].Text)
		}
	}
}

func TestCompile_RejectsDegenerateCue(t *testing.T) {
	tests := []struct {
		name string
		w    types.TimedWord
	}{
		{"zero", types.TimedWord{Start: 1, End: 1, Text: "x"}},
		{"sub-millisecond", types.TimedWord{Start: 1, End: 1.0004, Text: "x"}},
		{"reversed", types.TimedWord{Start: 2, End: 1, Text: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]types.TimedWord{tt.w})
			if !errors.Is(err, ErrDegenerateCue) {
				t.Fatalf("expected ErrDegenerateCue, got %v", err)
			}
		})
	}
}

func TestCompile_RejectsEmptyText(t *testing.T) {
	if _, err := Compile([]types.TimedWord{{Start: 0, End: 1, Text: "  "}}); err == nil {
		t.Fatalf("expected error for empty cue text")
	}
}

func TestCompile_Empty(t *testing.T) {
	got, err := Compile(nil)
	if err != nil || got != "" {
		t.Fatalf("expected empty output, got %q %v", got, err)
	}
}

func TestPlaceholderSpansSegment(t *testing.T) {
	cues := Placeholder(42.5, "")
	if len(cues) != 1 || cues[0].Start != 0 || cues[0].End != 42.5 || cues[0].Text == "" {
		t.Fatalf("unexpected placeholder %+v", cues)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render_1.srt")
	if err := WriteFile(path, Placeholder(3, "[music]")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "00:00:00,000 --> 00:00:03,000") {
		t.Fatalf("unexpected file content %q", string(b))
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := map[string]int64{
		"00:00:00,000": 0,
		"00:01:02,003": 62003,
		"01:00:00.5":   3600500,
		" 00:00:01,25": 1250,
	}
	for in, want := range tests {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseTimestamp(%q) = %d, want %d", in, got, want)
		}
	}
	if _, err := ParseTimestamp("1:2"); err == nil {
		t.Fatalf("expected error for short timestamp")
	}
}

func TestForceStyle(t *testing.T) {
	got := DefaultStyle().ForceStyle()
	for _, part := range []string{"FontName=Inter", "FontSize=16", "Alignment=2", "Bold=1", "PrimaryColour=&H00FFFFFF"} {
		if !strings.Contains(got, part) {
			t.Fatalf("expected %q in %q", part, got)
		}
	}
	s := DefaultStyle()
	s.Font = "Evil,Font:x"
	if strings.Contains(s.ForceStyle(), "Evil,Font") {
		t.Fatalf("font name must not break the style list: %q", s.ForceStyle())
	}
}
