package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// workspaceMarkers identify a project root when placing dev logs.
var workspaceMarkers = []string{"go.mod", ".git", ".tally"}

// DevLogFile returns the per-day dev log file for appName.
// A relative dir (DevLogDir when empty) is anchored at the workspace root above cwd.
func DevLogFile(dir, appName, cwd string, day time.Time) string {
	base := strings.TrimSpace(dir)
	if base == "" {
		base = DevLogDir
	}
	if !filepath.IsAbs(base) {
		base = filepath.Join(WorkspaceRoot(cwd), base)
	}
	name := fmt.Sprintf("%s-%s.log", logFileStem(appName), day.Format("20060102"))
	return filepath.Join(filepath.Clean(base), name)
}

// WorkspaceRoot walks up from start to the nearest directory holding a workspace marker.
// It returns start when no ancestor has one.
func WorkspaceRoot(start string) string {
	start = strings.TrimSpace(start)
	if start == "" {
		return "."
	}
	start = filepath.Clean(start)
	for dir := start; ; {
		if hasWorkspaceMarker(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

func hasWorkspaceMarker(dir string) bool {
	for _, marker := range workspaceMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// logFileStem turns an app name into a single safe file-name segment.
func logFileStem(appName string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	stem := strings.Trim(replacer.Replace(strings.TrimSpace(appName)), "-")
	if stem == "" {
		return DefaultAppName
	}
	return stem
}
