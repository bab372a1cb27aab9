package services

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCommandFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write command file: %v", err)
	}
}

/**
 * TestReloadCommandsDiff 验证命令表重载的增删统计
 * @description
 * - 首次重载：全部命令计入added
 * - 删除一个描述文件、新增一个后再次重载：added/removed各一
 */
func TestReloadCommandsDiff(t *testing.T) {
	dir := t.TempDir()
	writeCommandFile(t, dir, "ping.json", `{"name":"ping","description":"pong"}`)
	writeCommandFile(t, dir, "warn.json", `{"name":"warn","description":"issue a warning"}`)

	registry := NewFileCommandRegistry(dir)
	summary, err := registry.ReloadCommands()
	if err != nil {
		t.Fatalf("ReloadCommands failed: %v", err)
	}
	if summary.Total != 2 || len(summary.Added) != 2 || len(summary.Removed) != 0 {
		t.Fatalf("unexpected first summary: %+v", summary)
	}

	if err := os.Remove(filepath.Join(dir, "warn.json")); err != nil {
		t.Fatalf("remove command file: %v", err)
	}
	writeCommandFile(t, dir, "ban.json", `{"name":"ban","description":"ban a user"}`)

	summary, err = registry.ReloadCommands()
	if err != nil {
		t.Fatalf("ReloadCommands failed: %v", err)
	}
	if summary.Total != 2 {
		t.Errorf("expected total 2, got %d", summary.Total)
	}
	if len(summary.Added) != 1 || summary.Added[0] != "ban" {
		t.Errorf("expected added [ban], got %v", summary.Added)
	}
	if len(summary.Removed) != 1 || summary.Removed[0] != "warn" {
		t.Errorf("expected removed [warn], got %v", summary.Removed)
	}
}

/**
 * TestReloadCommandsSkipsBrokenFile 验证单个坏描述文件不致命
 */
func TestReloadCommandsSkipsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	writeCommandFile(t, dir, "ping.json", `{"name":"ping","description":"pong"}`)
	writeCommandFile(t, dir, "broken.json", `{not json`)
	writeCommandFile(t, dir, "anon.json", `{"description":"missing name"}`)
	writeCommandFile(t, dir, "notes.txt", `ignored`)

	registry := NewFileCommandRegistry(dir)
	summary, err := registry.ReloadCommands()
	if err != nil {
		t.Fatalf("ReloadCommands failed: %v", err)
	}
	if summary.Total != 1 {
		t.Errorf("expected only the valid descriptor loaded, got total %d", summary.Total)
	}
	if _, ok := registry.Commands()["ping"]; !ok {
		t.Error("expected ping command in table")
	}
}

/**
 * TestReloadCommandsMissingDir 验证目录不可扫描时返回错误
 */
func TestReloadCommandsMissingDir(t *testing.T) {
	registry := NewFileCommandRegistry(filepath.Join(t.TempDir(), "does-not-exist"))
	if _, err := registry.ReloadCommands(); err == nil {
		t.Error("expected error for missing command dir")
	}
}

/**
 * TestLoadCommandFile 验证单文件加载与整表替换
 */
func TestLoadCommandFile(t *testing.T) {
	dir := t.TempDir()
	writeCommandFile(t, dir, "kick.json", `{"name":"kick","description":"kick a user"}`)

	registry := NewFileCommandRegistry(dir)
	if err := registry.LoadCommandFile(dir, "kick.json"); err != nil {
		t.Fatalf("LoadCommandFile failed: %v", err)
	}
	if _, ok := registry.Commands()["kick"]; !ok {
		t.Error("expected kick command after single-file load")
	}
	if err := registry.LoadCommandFile(dir, "absent.json"); err == nil {
		t.Error("expected error for missing descriptor")
	}

	registry.ReplaceCommands(nil)
	if len(registry.Commands()) != 0 {
		t.Error("ReplaceCommands must swap the whole table")
	}
}
