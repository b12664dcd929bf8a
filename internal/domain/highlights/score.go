package highlights

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// signal adds weight per match to one of the two scores, up to limit
// (0 means unbounded).
type signal struct {
	re     *regexp.Regexp
	weight float64
	limit  float64
	hook   bool
}

var signals = []signal{
	{re: regexp.MustCompile(`\b\d+(?:[.,]\d+)?\b`), weight: 0.4},
	{re: regexp.MustCompile(`(?i)\b(?:how\s+to|step\s+\d+|first|second|third|do\s+this)\b`), weight: 1.2, limit: 1.2},
	{re: regexp.MustCompile(`(?i)\b(?:important|key|secret|mistake|never|always|here\s+is\s+why|remember|nobody|actually|crazy|insane|truth)\b`), weight: 0.9, hook: true},
	{re: regexp.MustCompile(`(?i)\bstep\s+\d+\b`), weight: 0.4, hook: true},
	{re: regexp.MustCompile(`(?i)\byou(?:'re|r)?\b`), weight: 0.2, limit: 1, hook: true},
	{re: regexp.MustCompile(`\?`), weight: 0.7, hook: true},
	{re: regexp.MustCompile(`!`), weight: 0.3, hook: true},
}

const lengthPenalty = 0.0006 // per rune, informational score only

// Score rates a transcript chunk for text-only proposers and returns the
// informational and hook scores, each in [0, 10].
func Score(text string) (info, hook float64) {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0, 0
	}
	for _, s := range signals {
		v := float64(len(s.re.FindAllStringIndex(t, -1))) * s.weight
		if s.limit > 0 {
			v = min(v, s.limit)
		}
		if s.hook {
			hook += v
		} else {
			info += v
		}
	}
	info -= lengthPenalty * float64(utf8.RuneCountInString(t))
	return clamp(info, 0, 10), clamp(hook, 0, 10)
}

func clamp(x, lo, hi float64) float64 {
	return max(lo, min(hi, x))
}
