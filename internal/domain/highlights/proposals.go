package highlights

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/forPelevin/reelcut/internal/types"
)

const defaultTitle = "Highlight"

// RawProposal is one entry of a model answer before validation.
type RawProposal struct {
	Start     json.RawMessage `json:"start"`
	End       json.RawMessage `json:"end"`
	StartTime json.RawMessage `json:"start_time"`
	EndTime   json.RawMessage `json:"end_time"`
	Title     string          `json:"title"`
	Rationale string          `json:"rationale"`
	Reason    string          `json:"reason"`
	Score     json.RawMessage `json:"score"`
	Viral     json.RawMessage `json:"viral_score"`

	// Err is set when the entry itself could not be decoded.
	Err error `json:"-"`
}

// Rejection records why a proposal was dropped.
type Rejection struct {
	Index  int
	Reason string
}

// DecodeProposals extracts the list of proposals from a model answer. It
// accepts a bare array or an object wrapping it.
func DecodeProposals(content string) ([]RawProposal, error) {
	payload := sanitizeJSONPayload(content)
	if payload == "" {
		return nil, errors.New("empty payload")
	}
	if strings.HasPrefix(payload, "[") {
		list, err := decodeEntries([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decode proposals: %w (payload snippet: %s)", err, summarizePayloadSnippet(payload))
		}
		return list, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &wrapped); err != nil {
		return nil, fmt.Errorf("decode proposals: %w (payload snippet: %s)", err, summarizePayloadSnippet(payload))
	}
	for _, key := range []string{"clips", "segments", "candidates", "highlights"} {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		list, err := decodeEntries(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return list, nil
	}
	return nil, fmt.Errorf("decode proposals: no clip list in %s", summarizePayloadSnippet(payload))
}

// decodeEntries decodes each array element on its own so a malformed entry
// only marks itself. Only a payload that is not an array fails.
func decodeEntries(data []byte) ([]RawProposal, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	list := make([]RawProposal, len(items))
	for i, item := range items {
		var p RawProposal
		if err := json.Unmarshal(item, &p); err != nil {
			list[i] = RawProposal{Err: err}
			continue
		}
		list[i] = p
	}
	return list, nil
}

// Filter validates raw proposals against the rules and the video length.
// Overlapping proposals are kept as they are.
func (r Rules) Filter(raw []RawProposal, totalSec float64) ([]types.Proposal, []Rejection) {
	var out []types.Proposal
	var rejected []Rejection
	reject := func(i int, format string, args ...any) {
		rejected = append(rejected, Rejection{Index: i, Reason: fmt.Sprintf(format, args...)})
	}
	for i, p := range raw {
		if p.Err != nil {
			reject(i, "malformed entry: %v", p.Err)
			continue
		}
		start, err := parseTimeField(p.Start, p.StartTime)
		if err != nil {
			reject(i, "start: %v", err)
			continue
		}
		end, err := parseTimeField(p.End, p.EndTime)
		if err != nil {
			reject(i, "end: %v", err)
			continue
		}
		if totalSec > 0 {
			if start >= totalSec {
				reject(i, "start %.2fs beyond video end %.2fs", start, totalSec)
				continue
			}
			end = min(end, totalSec)
		}
		seg := types.Segment{Start: start, End: end}
		if !seg.Valid() {
			reject(i, "invalid range %s", seg)
			continue
		}
		if !r.AcceptsDuration(seg.Duration()) {
			reject(i, "duration %.2fs outside [%.0f, %.0f]", seg.Duration(), r.MinDurationSec, r.MaxDurationSec)
			continue
		}
		out = append(out, types.Proposal{
			Segment:   seg,
			Title:     normalizeTitle(p.Title),
			Rationale: strings.TrimSpace(firstNonEmpty(p.Rationale, p.Reason)),
			Score:     parseScore(p.Score, p.Viral),
		})
	}
	return out, rejected
}

// ParseTimestamp reads seconds from "SS(.fff)", "MM:SS(.fff)" or
// "HH:MM:SS(.fff)".
func ParseTimestamp(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errors.New("empty timestamp")
	}
	v = strings.Replace(v, ",", ".", 1)
	parts := strings.Split(v, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", v)
	}
	var total float64
	for i, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", v)
		}
		if i < len(parts)-1 && n != float64(int64(n)) {
			return 0, fmt.Errorf("invalid timestamp %q", v)
		}
		total = total*60 + n
	}
	return total, nil
}

func parseTimeField(values ...json.RawMessage) (float64, error) {
	for _, raw := range values {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil {
			if n < 0 {
				return 0, fmt.Errorf("negative time %v", n)
			}
			return n, nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("unsupported time value %s", string(raw))
		}
		return ParseTimestamp(s)
	}
	return 0, errors.New("missing")
}

func parseScore(values ...json.RawMessage) float64 {
	for _, raw := range values {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			var s string
			if json.Unmarshal(raw, &s) != nil {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
			if err != nil {
				continue
			}
			n = v
		}
		return clamp(n, 0, 100)
	}
	return 0
}

var titleCaser = cases.Title(language.Und)

func normalizeTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return defaultTitle
	}
	if s == strings.ToLower(s) {
		return titleCaser.String(s)
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	open, closer := "{", "}"
	if a, o := strings.Index(trimmed, "["), strings.Index(trimmed, "{"); a >= 0 && (o < 0 || a < o) {
		open, closer = "[", "]"
	}
	if start := strings.Index(trimmed, open); start >= 0 {
		if end := strings.LastIndex(trimmed, closer); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if r := []rune(clean); len(r) > limit {
		clean = string(r[:limit]) + "..."
	}
	return clean
}
