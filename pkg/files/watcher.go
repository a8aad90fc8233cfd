package files

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"controller-dashboard/pkg/log"
)

// DefaultSettle is how long the watcher waits for a burst of events on the
// watched file to go quiet before invoking the callback.
const DefaultSettle = 100 * time.Millisecond

// FileWatcher watches a file for changes and calls a callback when it is
// written, created or replaced.
type FileWatcher struct {
	filePath string
	settle   time.Duration
	onChange func(string)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewFileWatcher creates a new file watcher.
func NewFileWatcher(filePath string, onChange func(string)) *FileWatcher {
	return &FileWatcher{
		filePath: filepath.Clean(filePath),
		settle:   DefaultSettle,
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}
}

// Start begins watching the file. The parent directory is watched so that
// editors and secret mounts replacing the file atomically are noticed.
func (w *FileWatcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.filePath)); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.filePath, err)
	}

	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()

	w.wg.Add(1)
	go w.watchLoop(ctx, fw)
	log.Info("File watcher started", "path", w.filePath)
	return nil
}

// Stop stops watching the file and waits for the loop to exit.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	select {
	case <-w.stopCh:
		w.mu.Unlock()
		return
	default:
		close(w.stopCh)
	}
	fw := w.watcher
	w.mu.Unlock()

	w.wg.Wait()
	if fw != nil {
		fw.Close()
	}
	log.Info("File watcher stopped", "path", w.filePath)
}

func (w *FileWatcher) watchLoop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.filePath {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.settle)
			} else {
				timer.Reset(w.settle)
			}
			timerCh = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Warn("File watcher error", "path", w.filePath, "error", err)
		case <-timerCh:
			timerCh = nil
			log.Info("File changed", "path", w.filePath)
			if w.onChange != nil {
				w.onChange(w.filePath)
			}
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		}
	}
}

// SetSettle changes the quiet period. It must be called before Start.
func (w *FileWatcher) SetSettle(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.settle = d
}

// GetFilePath returns the path of the file being watched.
func (w *FileWatcher) GetFilePath() string {
	return w.filePath
}
