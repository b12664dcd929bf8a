package whispercpp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/forPelevin/reelcut/internal/types"
)

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Model is a shared handle to a whisper.cpp model. It is checked once on
// first use and runs one inference at a time.
type Model struct {
	bin     string
	path    string
	threads int
	run     commandRunner

	once    sync.Once
	loadErr error
	mu      sync.Mutex
}

func NewModel(binPath, modelPath string, threads int) *Model {
	if binPath == "" {
		binPath = "whisper-cli"
	}
	return &Model{bin: binPath, path: modelPath, threads: threads, run: execRunner}
}

// WithCommandRunner swaps process execution, for tests.
func (m *Model) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	m.run = runner
}

func (m *Model) load() error {
	m.once.Do(func() {
		if m.path == "" {
			m.loadErr = errors.New("whisper model path is required")
			return
		}
		if _, err := os.Stat(m.path); err != nil {
			m.loadErr = fmt.Errorf("whisper model: %w", err)
			return
		}
		bin, err := exec.LookPath(m.bin)
		if err != nil {
			m.loadErr = fmt.Errorf("whisper binary %q: %w", m.bin, err)
			return
		}
		m.bin = bin
	})
	return m.loadErr
}

// Loaded reports whether the model has been checked successfully.
func (m *Model) Loaded() bool {
	return m.load() == nil
}

func (m *Model) infer(ctx context.Context, wavPath, outPrefix, language string) error {
	if err := m.load(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	args := []string{
		"-m", m.path,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
		"-ml", "1",
		"-sow",
		"-np",
	}
	if language != "" {
		args = append(args, "-l", language)
	}
	if m.threads > 0 {
		args = append(args, "-t", strconv.Itoa(m.threads))
	}
	b, err := m.run(ctx, m.bin, args...)
	if err != nil {
		return fmt.Errorf("whisper.cpp failed: %w\n%s", err, strings.TrimSpace(string(b)))
	}
	return nil
}

// Transcriber is the local transcription strategy.
type Transcriber struct {
	model    *Model
	language string
}

func New(model *Model, language string) *Transcriber {
	if language == "" {
		language = "auto"
	}
	return &Transcriber{model: model, language: language}
}

func (t *Transcriber) Transcribe(ctx context.Context, wavPath string) ([]types.TimedWord, error) {
	outPrefix := strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + ".whisper"
	jsonPath := outPrefix + ".json"
	defer os.Remove(jsonPath)

	if err := t.model.infer(ctx, wavPath, outPrefix, t.language); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	return parseOutput(b)
}

type output struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseOutput converts whisper.cpp JSON (millisecond offsets) into words.
// Special tokens such as [_BEG_] and [BLANK_AUDIO] are dropped.
func parseOutput(b []byte) ([]types.TimedWord, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode whisper output: %w", err)
	}
	words := make([]types.TimedWord, 0, len(out.Transcription))
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" || isSpecialToken(text) {
			continue
		}
		if seg.Offsets.To <= seg.Offsets.From {
			continue
		}
		words = append(words, types.TimedWord{
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  text,
		})
	}
	return words, nil
}

func isSpecialToken(s string) bool {
	return strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") && strings.ToUpper(s) == s
}
