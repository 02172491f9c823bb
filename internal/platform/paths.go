package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// DefaultAppName names the per-user directories and the sqlite file.
	DefaultAppName = "tally"
	// DevLogDir is the workspace-relative directory for dev-mode log files.
	DevLogDir = ".tally/log"
)

// Options selects which app directory set to resolve.
type Options struct {
	AppName string
	DevMode bool
}

// Paths holds the resolved per-user locations for one app name.
type Paths struct {
	AppName    string
	ConfigPath string
	DataDir    string
	DBPath     string
	StoreDir   string
}

// Layout is the pair of base directories every tally path hangs off.
type Layout struct {
	ConfigHome string
	DataHome   string
}

// CurrentLayout reads the base directories for the running OS.
// Data lives under LOCALAPPDATA on windows, next to config on darwin,
// and under XDG_DATA_HOME (or ~/.local/share) elsewhere.
func CurrentLayout() (Layout, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return Layout{}, fmt.Errorf("user config dir: %w", err)
	}
	layout := Layout{ConfigHome: configHome, DataHome: configHome}
	switch runtime.GOOS {
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			layout.DataHome = v
		}
	case "darwin":
	default:
		if v := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); v != "" {
			layout.DataHome = v
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return Layout{}, fmt.Errorf("user home dir: %w", err)
		}
		layout.DataHome = filepath.Join(home, ".local", "share")
	}
	return layout, nil
}

// Resolve places the config file, sqlite database, and file-driver store dir
// for one app name. Dev mode gets its own "-dev" directory set.
func (l Layout) Resolve(opts Options) (Paths, error) {
	if strings.TrimSpace(l.ConfigHome) == "" || strings.TrimSpace(l.DataHome) == "" {
		return Paths{}, errors.New("empty base dirs")
	}
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = DefaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	dataDir := filepath.Join(l.DataHome, appName)
	return Paths{
		AppName:    appName,
		ConfigPath: filepath.Join(l.ConfigHome, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		StoreDir:   filepath.Join(dataDir, "store"),
	}, nil
}

// DefaultPaths resolves opts against the current user's layout.
func DefaultPaths(opts Options) (Paths, error) {
	layout, err := CurrentLayout()
	if err != nil {
		return Paths{}, err
	}
	return layout.Resolve(opts)
}
