package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/git-sakshii/RealPrep-AI-App/internal/ai"
)

// HandleFunc receives the transcript of a clip that showed up in a session's
// spool directory without going through the answer endpoint.
type HandleFunc func(sessionID, text string)

type transcribeJob struct {
	sessionID string
	path      string
}

// Watcher monitors the recordings spool and transcribes WAV clips dropped
// there by external capture clients, feeding the text back to the owning
// session. Clips saved through the answer endpoint carry an "api-" prefix
// and are skipped: they were already transcribed inline.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	queue   chan transcribeJob
	workers sync.WaitGroup
	stt     ai.Transcriber
	handle  HandleFunc
	log     *slog.Logger
	seen    sync.Map // paths already enqueued
}

func NewWatcher(dir string, stt ai.Transcriber, handle HandleFunc, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		dir:     dir,
		watcher: fw,
		queue:   make(chan transcribeJob, 64),
		stt:     stt,
		handle:  handle,
		log:     log,
	}, nil
}

// Run watches until ctx is cancelled. It starts two transcription workers.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create recordings dir: %w", err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch recordings dir: %w", err)
	}
	// Pick up session directories that already exist.
	entries, _ := os.ReadDir(w.dir)
	for _, e := range entries {
		if e.IsDir() {
			_ = w.watcher.Add(filepath.Join(w.dir, e.Name()))
		}
	}
	w.log.Info("watching recordings spool", "dir", w.dir)

	for i := 0; i < 2; i++ {
		w.workers.Add(1)
		go w.worker(ctx)
	}
	defer w.workers.Wait()
	defer close(w.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("spool watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == 0 || strings.HasSuffix(event.Name, ".tmp") {
		return
	}
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if err := w.watcher.Add(event.Name); err != nil {
			w.log.Error("failed to watch session dir", "error", err, "path", event.Name)
		}
		return
	}
	if !strings.HasSuffix(event.Name, ".wav") || strings.HasPrefix(filepath.Base(event.Name), "api-") {
		return
	}
	rel, err := filepath.Rel(w.dir, event.Name)
	if err != nil {
		return
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 2 {
		return
	}
	sessionID := parts[0]
	if _, err := uuid.Parse(sessionID); err != nil {
		return
	}
	if _, dup := w.seen.LoadOrStore(event.Name, struct{}{}); dup {
		return
	}
	select {
	case w.queue <- transcribeJob{sessionID: sessionID, path: event.Name}:
	default:
		w.log.Warn("transcription queue full, dropping clip", "path", event.Name)
	}
}

func (w *Watcher) worker(ctx context.Context) {
	defer w.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.queue:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

func (w *Watcher) process(ctx context.Context, job transcribeJob) {
	clip, err := os.ReadFile(job.path)
	if err != nil {
		w.log.Error("failed to read spooled clip", "error", err, "path", job.path)
		return
	}
	if _, err := Inspect(clip); err != nil {
		w.log.Info("skipping unreadable clip", "error", err, "path", job.path)
		return
	}
	text, err := w.stt.Transcribe(ctx, clip, filepath.Base(job.path))
	if err != nil {
		w.log.Error("failed to transcribe spooled clip", "error", err, "path", job.path)
		return
	}
	w.log.Info("transcribed spooled clip", "session_id", job.sessionID, "file", filepath.Base(job.path))
	if w.handle != nil {
		w.handle(job.sessionID, text)
	}
}
