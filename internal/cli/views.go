package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/reelcut/internal/types"
)

func runsTable(runs []types.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			string(r.Status),
			strconv.Itoa(r.CandidatesCount),
			formatDuration(r.DurationSec),
			truncate(firstNonEmpty(r.Title, r.Source), 48),
			runDetail(r),
			r.CreatedAt.Local().Format(time.DateTime),
		})
	}
	return renderTable(
		[]string{"Run", "Status", "Clips", "Length", "Title", "Detail", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
	)
}

func runDetail(r types.Run) string {
	switch {
	case r.Status == types.RunAnalyzing && r.Progress != "":
		return r.Progress
	case r.Reason != "":
		return truncate(r.Reason, 60)
	default:
		return ""
	}
}

func candidatesTable(cands []types.Candidate) string {
	rows := make([][]string, 0, len(cands))
	for _, c := range cands {
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			string(c.Status),
			formatDuration(c.Segment.Start),
			formatDuration(c.Segment.End),
			fmt.Sprintf("%.0f", c.Segment.Duration()),
			fmt.Sprintf("%.2f", c.Score),
			truncate(c.Title, 48),
			candidateDetail(c),
		})
	}
	return renderTable(
		[]string{"ID", "Status", "Start", "End", "Sec", "Score", "Title", "Output"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func candidateDetail(c types.Candidate) string {
	switch {
	case c.ClipPath != "":
		return c.ClipPath
	case c.LastError != "":
		return "error: " + truncate(c.LastError, 60)
	case c.DraftPath != "":
		return "draft: " + c.DraftPath
	default:
		return ""
	}
}

func formatDuration(sec float64) string {
	if sec <= 0 {
		return "-"
	}
	total := int(sec + 0.5)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
