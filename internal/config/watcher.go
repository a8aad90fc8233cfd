package config

import (
	"context"
	"time"

	"controller-dashboard/pkg/files"
	"controller-dashboard/pkg/log"
)

// Watcher reloads a file whenever it changes on disk.
type Watcher struct {
	fileWatcher *files.FileWatcher
	load        func(path string) error
}

// NewConfigWatcher creates a watcher that reloads the configuration file and
// passes the result to onChange.
func NewConfigWatcher(configPath string, onChange func(*Config)) *Watcher {
	return newWatcher(configPath, func(path string) error {
		cfg, err := LoadConfig(path)
		if err != nil {
			return err
		}
		if onChange != nil {
			onChange(cfg)
		}
		return nil
	})
}

// NewTokenWatcher creates a watcher that reads the controller key from
// tokenPath after every change and passes it to onChange. Empty keys are
// ignored so a truncated write does not log the client out.
func NewTokenWatcher(tokenPath string, onChange func(token string)) *Watcher {
	return newWatcher(tokenPath, func(path string) error {
		token, err := ReadToken(path)
		if err != nil {
			return err
		}
		if token == "" {
			log.Warn("Token file is empty, keeping current key", "path", path)
			return nil
		}
		if onChange != nil {
			onChange(token)
		}
		return nil
	})
}

func newWatcher(path string, load func(string) error) *Watcher {
	w := &Watcher{load: load}
	w.fileWatcher = files.NewFileWatcher(path, w.handleFileChange)
	return w
}

// Start begins watching the file.
func (w *Watcher) Start(ctx context.Context) error {
	log.Info("Watcher starting", "path", w.fileWatcher.GetFilePath())
	return w.fileWatcher.Start(ctx)
}

// Stop stops watching the file.
func (w *Watcher) Stop() {
	log.Info("Watcher stopping", "path", w.fileWatcher.GetFilePath())
	w.fileWatcher.Stop()
}

func (w *Watcher) handleFileChange(path string) {
	log.Info("File changed, reloading", "path", path)
	if err := w.load(path); err != nil {
		log.Error("Failed to reload file", "path", path, "error", err)
	}
}

// SetSettle sets how long a burst of changes must be quiet before reloading.
func (w *Watcher) SetSettle(d time.Duration) {
	w.fileWatcher.SetSettle(d)
}
