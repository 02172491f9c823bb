package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func runtimeIsWindowsOrDarwin() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

// newWorkspace creates a temp root holding go.mod plus a nested cmd dir.
func newWorkspace(t *testing.T) (root, nested string) {
	t.Helper()
	root = t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested = filepath.Join(root, "cmd", "tally")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	return root, nested
}

func TestWorkspaceRootUsesNearestMarker(t *testing.T) {
	root, nested := newWorkspace(t)
	if got := WorkspaceRoot(nested); filepath.Clean(got) != filepath.Clean(root) {
		t.Fatalf("WorkspaceRoot() = %q, want %q", got, root)
	}
	if got := WorkspaceRoot("  "); got != "." {
		t.Fatalf("WorkspaceRoot(blank) = %q", got)
	}
}

func TestDevLogFile(t *testing.T) {
	root, nested := newWorkspace(t)
	day := time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC)

	got := DevLogFile("", "tally", nested, day)
	want := filepath.Join(root, ".tally", "log", "tally-20260222.log")
	if got != want {
		t.Fatalf("DevLogFile(default dir) = %q, want %q", got, want)
	}

	abs := filepath.Join(t.TempDir(), "logs")
	if got := DevLogFile(abs, "tally-dev", nested, day); got != filepath.Join(abs, "tally-dev-20260222.log") {
		t.Fatalf("DevLogFile(abs dir) = %q", got)
	}

	if got := DevLogFile("custom/logs", "my app", nested, day); !strings.HasPrefix(got, filepath.Join(root, "custom", "logs")) || filepath.Base(got) != "my-app-20260222.log" {
		t.Fatalf("DevLogFile(relative dir) = %q", got)
	}
}

func TestLogFileStem(t *testing.T) {
	cases := map[string]string{
		"":          "tally",
		"  ":        "tally",
		"my app":    "my-app",
		"a/b:c":     "a-b-c",
		"/":         "tally",
		"tally-dev": "tally-dev",
	}
	for in, want := range cases {
		if got := logFileStem(in); got != want {
			t.Fatalf("logFileStem(%q) = %q, want %q", in, got, want)
		}
	}
}
