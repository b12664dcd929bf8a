package highlights

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestTargetCount(t *testing.T) {
	tests := []struct {
		name     string
		total    float64
		window   float64
		min, max int
		want     int
	}{
		{"650s over 120s windows", 650, 120, 3, 10, 6},
		{"short video uses minimum", 60, 120, 3, 10, 3},
		{"long video capped", 3 * 3600, 120, 3, 10, 10},
		{"exact multiple", 600, 120, 1, 10, 5},
		{"zero duration", 0, 120, 2, 10, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TargetCount(tt.total, tt.window, tt.min, tt.max)
			want := max(tt.min, min(tt.max, int(math.Ceil(tt.total/tt.window))))
			if got != tt.want || got != want {
				t.Fatalf("TargetCount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRulesValidate(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}
	bad := DefaultRules()
	bad.MaxDurationSec = 10
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error when max < min duration")
	}
	bad = DefaultRules()
	bad.MaxCount = 1
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error when max < min count")
	}
}

func TestFilter_KeepsOnlyDurationsInBounds(t *testing.T) {
	durations := []float64{5, 20, 35, 50, 65, 80, 95, 110, 125, 140}
	var items []string
	for i, d := range durations {
		start := float64(i * 200)
		items = append(items, fmt.Sprintf(`{"start":%v,"end":%v,"title":"c%d","rationale":"r","score":50}`, start, start+d, i))
	}
	raw, err := DecodeProposals(`{"clips":[` + strings.Join(items, ",") + `]}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rules := DefaultRules()
	rules.MinDurationSec, rules.MaxDurationSec = 30, 90

	got, rejected := rules.Filter(raw, 3000)
	if len(got) != 4 {
		t.Fatalf("expected 4 proposals, got %d", len(got))
	}
	if len(rejected) != 6 {
		t.Fatalf("expected 6 rejections, got %d", len(rejected))
	}
	for i, want := range []float64{35, 50, 65, 80} {
		if math.Abs(got[i].Segment.Duration()-want) > 1e-9 {
			t.Fatalf("proposal %d duration = %v, want %v", i, got[i].Segment.Duration(), want)
		}
	}
}

func TestFilter_DropsMalformedAndClamps(t *testing.T) {
	payload := "```json\n" + `[
		{"start":"00:10","end":"00:50","title":"ok","score":"120"},
		{"start":"bogus","end":"00:50"},
		{"end":"01:00"},
		{"start":"01:00","end":"00:40"},
		{"start_time":"1:00:00","end_time":"1:00:45","reason":"late","viral_score":77},
		{"start":"0:59:50","end":"1:05:00","title":"runs past end"},
		{"start":"2:00:00","end":"2:00:40","title":"after end"}
	]` + "\n```"
	raw, err := DecodeProposals(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rules := DefaultRules()
	rules.MinDurationSec, rules.MaxDurationSec = 30, 90
	got, rejected := rules.Filter(raw, 3630)

	if len(got) != 3 {
		t.Fatalf("expected 3 accepted, got %+v (rejected %+v)", got, rejected)
	}
	if got[0].Score != 100 || got[0].Title != "Ok" {
		t.Fatalf("expected clamped score and title-cased title, got %+v", got[0])
	}
	if got[1].Segment.Start != 3600 || got[1].Rationale != "late" || got[1].Score != 77 || got[1].Title != defaultTitle {
		t.Fatalf("unexpected alt-field proposal %+v", got[1])
	}
	if got[2].Segment.End != 3630 {
		t.Fatalf("expected end clamped to video duration, got %+v", got[2])
	}
}

func TestFilter_KeepsOverlaps(t *testing.T) {
	raw, err := DecodeProposals(`[{"start":10,"end":60},{"start":30,"end":80}]`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, _ := DefaultRules().Filter(raw, 600)
	if len(got) != 2 {
		t.Fatalf("expected overlapping proposals to be kept, got %d", len(got))
	}
}

func TestFilter_MalformedEntryKeepsSiblings(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"wrong field type", `{"clips":[{"start":"00:10","end":"01:00","title":123},{"start":"02:00","end":"02:45","title":"Good"}]}`},
		{"bare string element", `["oops",{"start":"02:00","end":"02:45","title":"Good"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := DecodeProposals(tt.payload)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(raw) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(raw))
			}
			got, rejected := DefaultRules().Filter(raw, 600)
			if len(got) != 1 || got[0].Title != "Good" || got[0].Segment.Start != 120 {
				t.Fatalf("expected the valid sibling to survive, got %+v", got)
			}
			if len(rejected) != 1 || rejected[0].Index != 0 || !strings.Contains(rejected[0].Reason, "malformed entry") {
				t.Fatalf("expected entry 0 rejected as malformed, got %+v", rejected)
			}
		})
	}
}

func TestDecodeProposals_Errors(t *testing.T) {
	for _, in := range []string{"", "no json here", `{"other":[]}`, `{"clips": 3}`} {
		if _, err := DecodeProposals(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestDecodeProposals_ProseAroundArray(t *testing.T) {
	raw, err := DecodeProposals(`Here you go: [{"start":1,"end":40}] enjoy`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(raw))
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := map[string]float64{
		"42":         42,
		"00:05":      5,
		"1:02:03":    3723,
		"01:30.5":    90.5,
		"00:00:10,2": 10.2,
	}
	for in, want := range tests {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", in, err)
		}
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("ParseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}
	for _, in := range []string{"", "a:b", "1:2:3:4", "-5", "1.5:00"} {
		if _, err := ParseTimestamp(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestPromptMentionsCountAndBounds(t *testing.T) {
	rules := DefaultRules()
	p := rules.Prompt(6, 650)
	for _, want := range []string{"6 most", "10:50", "between 30 and 90 seconds", "spoken in the video"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
	rules.Language = "Indonesian"
	if !strings.Contains(rules.Prompt(3, 60), "Indonesian") {
		t.Fatalf("expected forced language in prompt")
	}
}
