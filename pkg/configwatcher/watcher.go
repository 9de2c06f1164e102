package configwatcher

import (
	"context"
	"fmt"
	"learner_insight/internal/config"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = time.Second

type ConfigReloader func(cfg *config.Config)

// Watcher re-runs config.LoadConfig when the config file changes and hands
// the validated result to the reloader. Invalid files are logged and skipped.
type Watcher struct {
	path     string
	reload   ConfigReloader
	log      *zap.Logger
	debounce time.Duration
	fs       *fsnotify.Watcher
}

// New watches the directory holding configPath, since editors often replace
// the file instead of writing it in place.
func New(configPath string, reload ConfigReloader, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	return &Watcher{
		path:     absPath,
		reload:   reload,
		log:      log,
		debounce: defaultDebounce,
		fs:       fsw,
	}, nil
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fs.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// 防抖处理
			timer.Stop()
			select {
			case <-timer.C:
			default:
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			newCfg, err := config.LoadConfig(w.path)
			if err != nil {
				w.log.Error("Failed to reload config", zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.log.Info("Config reloaded", zap.String("path", w.path))
			w.reload(newCfg)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Error("Config watcher error", zap.Error(err))
		}
	}
}
