package whispercpp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const sampleJSON = `{
  "transcription": [
    {"offsets": {"from": 0, "to": 0}, "text": ""},
    {"offsets": {"from": 0, "to": 320}, "text": " Hello"},
    {"offsets": {"from": 320, "to": 700}, "text": " world."},
    {"offsets": {"from": 700, "to": 900}, "text": " [BLANK_AUDIO]"}
  ]
}`

func newTestModel(t *testing.T) (*Model, string) {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "ggml-base.bin")
	if err := os.WriteFile(modelPath, []byte("model"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	// "true" is on PATH on every platform we test on.
	return NewModel("true", modelPath, 2), dir
}

func writeOutputRunner(body string) func(context.Context, string, ...string) ([]byte, error) {
	return func(_ context.Context, _ string, args ...string) ([]byte, error) {
		i := slices.Index(args, "-of")
		if i < 0 {
			return nil, errors.New("missing -of")
		}
		return nil, os.WriteFile(args[i+1]+".json", []byte(body), 0o644)
	}
}

func TestTranscribeParsesWords(t *testing.T) {
	m, dir := newTestModel(t)
	var gotArgs []string
	m.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return writeOutputRunner(sampleJSON)(ctx, name, args...)
	})
	tr := New(m, "")
	words, err := tr.Transcribe(context.Background(), filepath.Join(dir, "audio_7.wav"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %+v", words)
	}
	if words[0].Text != "Hello" || words[0].End != 0.32 || words[1].Start != 0.32 {
		t.Fatalf("unexpected words %+v", words)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"-ml 1", "-sow", "-oj", "-l auto", "-t 2"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args %q", want, joined)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "audio_7.whisper.json")); !os.IsNotExist(err) {
		t.Fatalf("expected whisper output to be cleaned up, stat err=%v", err)
	}
}

func TestModelMissingFile(t *testing.T) {
	m := NewModel("true", filepath.Join(t.TempDir(), "missing.bin"), 0)
	if m.Loaded() {
		t.Fatalf("expected load failure")
	}
	if _, err := New(m, "en").Transcribe(context.Background(), "x.wav"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestModelSerializesInference(t *testing.T) {
	m, dir := newTestModel(t)
	var active, peak int32
	m.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return writeOutputRunner(sampleJSON)(ctx, name, args...)
	})
	tr := New(m, "en")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wav := filepath.Join(dir, "audio_"+string(rune('a'+i))+".wav")
			if _, err := tr.Transcribe(context.Background(), wav); err != nil {
				t.Errorf("Transcribe: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if peak != 1 {
		t.Fatalf("expected one inference at a time, peak=%d", peak)
	}
}

func TestRunnerFailureIncludesOutput(t *testing.T) {
	m, _ := newTestModel(t)
	m.WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("failed to load model\n"), errors.New("exit status 1")
	})
	_, err := New(m, "").Transcribe(context.Background(), "x.wav")
	if err == nil || !strings.Contains(err.Error(), "failed to load model") {
		t.Fatalf("expected runner output in error, got %v", err)
	}
}
