package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"modbot-keeper/internal/logger"
	"modbot-keeper/internal/models"
)

/**
 * Command registry collaborator: the live keyed command table of the bot
 * @description
 * - ReloadCommands rebuilds the whole table and reports added/removed/total
 * - LoadCommandFile loads or replaces a single command source file
 * - RegisterCommands pushes the table to the hosting chat platform;
 *   the wire protocol behind it is out of scope here
 */
type CommandRegistry interface {
	ReloadCommands() (models.CommandReloadSummary, error)
	LoadCommandFile(dir, filename string) error
	RegisterCommands() error
	Commands() map[string]models.Command
}

/**
 * File backed command registry
 * @property {string} dir - Command source directory, one JSON descriptor per command
 * @description
 * - Descriptors are flat {name, description} JSON files
 * - The in-memory table is the single source of truth between reloads
 * - Reads come from API handler goroutines while the reload batch writes,
 *   so the table is guarded and Commands returns a copy
 */
type FileCommandRegistry struct {
	dir string

	mu       sync.RWMutex
	commands map[string]models.Command
}

func NewFileCommandRegistry(dir string) *FileCommandRegistry {
	return &FileCommandRegistry{
		dir:      dir,
		commands: make(map[string]models.Command),
	}
}

func (r *FileCommandRegistry) Commands() map[string]models.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyCommandMap(r.commands)
}

// ReplaceCommands 回滚路径使用：整表替换
func (r *FileCommandRegistry) ReplaceCommands(commands map[string]models.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if commands == nil {
		commands = make(map[string]models.Command)
	}
	r.commands = commands
}

/**
 * Reload the whole command table from the source directory
 * @returns {models.CommandReloadSummary} Added/removed names and new total
 * @returns {error} Returns error if the directory cannot be scanned
 * @description
 * - Scans the source directory for *.json descriptors
 * - Compares old and new tables to compute the added/removed summary
 * - A single unreadable descriptor is logged and skipped, never fatal
 */
func (r *FileCommandRegistry) ReloadCommands() (models.CommandReloadSummary, error) {
	summary := models.CommandReloadSummary{Added: []string{}, Removed: []string{}}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return summary, fmt.Errorf("scan command dir '%s': %w", r.dir, err)
	}

	fresh := make(map[string]models.Command)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		cmd, err := r.readCommandFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			logger.Warnf("Skipping command file '%s': %v", entry.Name(), err)
			continue
		}
		fresh[cmd.Name] = cmd
	}

	r.mu.Lock()
	for name := range fresh {
		if _, existed := r.commands[name]; !existed {
			summary.Added = append(summary.Added, name)
		}
	}
	for name := range r.commands {
		if _, kept := fresh[name]; !kept {
			summary.Removed = append(summary.Removed, name)
		}
	}
	r.commands = fresh
	r.mu.Unlock()
	sort.Strings(summary.Added)
	sort.Strings(summary.Removed)

	summary.Total = len(fresh)
	logger.Infof("Command table reloaded: %d total, %d added, %d removed",
		summary.Total, len(summary.Added), len(summary.Removed))
	return summary, nil
}

/**
 * Load or replace one command from a source file
 * @param {string} dir - Source directory
 * @param {string} filename - Descriptor file name
 */
func (r *FileCommandRegistry) LoadCommandFile(dir, filename string) error {
	cmd, err := r.readCommandFile(filepath.Join(dir, filename))
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.commands[cmd.Name] = cmd
	r.mu.Unlock()
	logger.Infof("Command '%s' loaded from %s", cmd.Name, filename)
	return nil
}

func (r *FileCommandRegistry) readCommandFile(path string) (models.Command, error) {
	var cmd models.Command
	data, err := os.ReadFile(path)
	if err != nil {
		return cmd, err
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("parse '%s': %w", filepath.Base(path), err)
	}
	if cmd.Name == "" {
		return cmd, fmt.Errorf("descriptor '%s' has no command name", filepath.Base(path))
	}
	return cmd, nil
}

/**
 * Register the current command table with the hosting platform
 * @description
 * - The platform client lives behind its own boundary; here registration
 *   only logs the table size
 */
func (r *FileCommandRegistry) RegisterCommands() error {
	r.mu.RLock()
	total := len(r.commands)
	r.mu.RUnlock()
	logger.Infof("Registered %d commands with the platform", total)
	return nil
}
