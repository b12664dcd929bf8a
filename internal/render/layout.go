package render

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout names every file that belongs to one run directory. Candidate
// artifacts carry the candidate id so concurrent renders never collide.
type Layout struct {
	Root string
}

func NewLayout(runDir string) Layout { return Layout{Root: runDir} }

func (l Layout) SourceDir() string    { return filepath.Join(l.Root, "source") }
func (l Layout) WorkDir() string      { return filepath.Join(l.Root, "work") }
func (l Layout) SubtitlesDir() string { return filepath.Join(l.Root, "subtitles") }
func (l Layout) ClipsDir() string     { return filepath.Join(l.Root, "clips") }
func (l Layout) DraftsDir() string    { return filepath.Join(l.Root, "drafts") }

// Ensure creates all run subdirectories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.SourceDir(), l.WorkDir(), l.SubtitlesDir(), l.ClipsDir(), l.DraftsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func (l Layout) SegmentPath(id int64) string {
	return filepath.Join(l.WorkDir(), fmt.Sprintf("segment_%d.mp4", id))
}

func (l Layout) AudioPath(id int64) string {
	return filepath.Join(l.WorkDir(), fmt.Sprintf("audio_%d.wav", id))
}

func (l Layout) RenderLockPath(id int64) string {
	return filepath.Join(l.WorkDir(), fmt.Sprintf("render_%d.lock", id))
}

func (l Layout) SubtitlePath(id int64) string {
	return filepath.Join(l.SubtitlesDir(), fmt.Sprintf("render_%d.srt", id))
}

func (l Layout) ClipPath(id int64) string {
	return filepath.Join(l.ClipsDir(), fmt.Sprintf("render_%d.mp4", id))
}

func (l Layout) DraftSegmentPath(id int64) string {
	return filepath.Join(l.WorkDir(), fmt.Sprintf("draft_segment_%d.mp4", id))
}

func (l Layout) DraftAudioPath(id int64) string {
	return filepath.Join(l.WorkDir(), fmt.Sprintf("draft_audio_%d.wav", id))
}

func (l Layout) DraftLockPath(id int64) string {
	return filepath.Join(l.WorkDir(), fmt.Sprintf("draft_%d.lock", id))
}

func (l Layout) DraftPath(id int64) string {
	return filepath.Join(l.DraftsDir(), fmt.Sprintf("draft_%d.mp4", id))
}

func (l Layout) DraftWordsPath(id int64) string {
	return filepath.Join(l.DraftsDir(), fmt.Sprintf("draft_%d.json", id))
}
