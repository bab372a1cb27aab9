package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"modbot-keeper/internal/logger"

	"github.com/fsnotify/fsnotify"
)

/**
 * File watcher observes subsystem configuration files and the command
 * source directory, debounces write bursts and triggers minimal
 * hot-reload batches
 * @description
 * - Each changed key debounces independently so unrelated bursts don't
 *   block each other; everything still serializes through the
 *   orchestrator's single-flight gate
 * - A static table maps a changed file name to the minimal dependent
 *   component subset, keeping the blast radius small
 * - A missing watched path is skipped with a log line, never an error
 */
type FileWatcher struct {
	orch        *ReloadOrchestrator
	configFiles []string
	commandsDir string
	debounce    time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timers  map[string]*time.Timer
	done    chan struct{}
}

// watchTargets 静态查找表：配置文件基名 -> 最小受影响组件子集
// 空子集表示全量重载
var watchTargets = map[string][]string{
	"config.yaml":    nil,
	"warnings.json":  {"warnings"},
	"banlist.json":   {"banlist"},
	"blocklist.json": {"blocklist"},
	"antiraid.yaml":  {"antiraid"},
	"pii.yaml":       {"piimonitor"},
}

func NewFileWatcher(orch *ReloadOrchestrator, configFiles []string, commandsDir string, debounce time.Duration) *FileWatcher {
	return &FileWatcher{
		orch:        orch,
		configFiles: configFiles,
		commandsDir: commandsDir,
		debounce:    debounce,
		timers:      make(map[string]*time.Timer),
	}
}

/**
 * Start watching the configured files and the command source directory
 * @returns {error} Returns error only when the fsnotify watcher itself
 *                  cannot be created; individual missing paths are
 *                  logged and skipped
 */
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	fw.watcher = watcher
	fw.done = make(chan struct{})

	for _, path := range fw.configFiles {
		if _, err := os.Stat(path); err != nil {
			logger.Infof("Watched config '%s' does not exist, skipping", path)
			continue
		}
		// 监听所在目录，编辑器的rename/create保存方式才能被捕获
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			logger.Warnf("Cannot watch '%s': %v", path, err)
		}
	}
	if _, err := os.Stat(fw.commandsDir); err != nil {
		logger.Infof("Command dir '%s' does not exist, skipping", fw.commandsDir)
	} else if err := watcher.Add(fw.commandsDir); err != nil {
		logger.Warnf("Cannot watch command dir '%s': %v", fw.commandsDir, err)
	}

	go fw.loop(watcher, fw.done)
	logger.Info("File watcher started")
	return nil
}

func (fw *FileWatcher) loop(watcher *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fw.handleChange(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("File watcher error: %v", err)
		case <-done:
			return
		}
	}
}

/**
 * Map a changed path to its reload subset and arm the debounce timer
 * @description
 * - Changes under the command dir collapse onto the "commands" key
 * - Unrelated files in watched directories are ignored
 * - Re-arming an existing timer extends the burst window
 */
func (fw *FileWatcher) handleChange(path string) {
	key, targets, ok := fw.targetsFor(path)
	if !ok {
		return
	}
	logger.Debugf("Change detected on '%s' (key=%s)", path, key)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.watcher == nil {
		return
	}
	if timer, exists := fw.timers[key]; exists {
		timer.Stop()
	}
	fw.timers[key] = time.AfterFunc(fw.debounce, func() {
		fw.fire(key, targets)
	})
}

func (fw *FileWatcher) targetsFor(path string) (string, []string, bool) {
	if fw.commandsDir != "" {
		if dir := filepath.Dir(path); dir == filepath.Clean(fw.commandsDir) {
			return commandsTarget, []string{commandsTarget}, true
		}
	}
	base := filepath.Base(path)
	for _, watched := range fw.configFiles {
		if filepath.Base(watched) == base {
			targets, known := watchTargets[base]
			if !known {
				// 未在查找表中的受观察文件走全量重载
				return base, nil, true
			}
			return base, targets, true
		}
	}
	return "", nil, false
}

func (fw *FileWatcher) fire(key string, targets []string) {
	fw.mu.Lock()
	delete(fw.timers, key)
	fw.mu.Unlock()

	logger.Infof("Debounce elapsed for '%s', reloading subset %v", key, targets)
	_, err := fw.orch.HotReload(context.Background(), targets)
	if errors.Is(err, ErrReloadInProgress) {
		// 不排队：批次间的单飞由编排器强制执行
		logger.Warnf("Reload for '%s' dropped, another batch is running", key)
	} else if err != nil {
		logger.Errorf("Reload for '%s' failed to start: %v", key, err)
	}
}

/**
 * Release all watch handles and clear pending debounce timers
 */
func (fw *FileWatcher) Cleanup() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.watcher == nil {
		return
	}
	close(fw.done)
	fw.watcher.Close()
	fw.watcher = nil
	for key, timer := range fw.timers {
		timer.Stop()
		delete(fw.timers, key)
	}
	logger.Info("File watcher stopped")
}
