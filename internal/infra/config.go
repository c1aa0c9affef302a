package infra

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

const (
	// DefaultMonitoredRoot is the sensitive directory watched by default.
	DefaultMonitoredRoot = "/etc"

	// DefaultConfigFileName is looked up inside the data directory.
	DefaultConfigFileName = "config.yaml"

	historyDBName = "history.db"
	lockFileName  = "integmon.lock"

	systemDataDir = "/var/lib/integmon"
)

// Config holds every path and switch an invocation needs.
type Config struct {
	domain.Paths
	DataDir        string // holds baseline, report, history, key and lock
	HistoryPath    string // encrypted check history database
	LockPath       string // single-instance lock file
	HistoryEnabled bool
	IsRoot         bool // Whether running as root
}

// Overrides carries command-line values. Empty fields are not set.
type Overrides struct {
	ConfigPath   string
	Root         string
	DataDir      string
	BaselinePath string
	ReportPath   string
	NoHistory    bool
}

// DefaultDataDir returns the data directory based on effective UID.
// Root uses a system location, users keep state in their home.
func DefaultDataDir() string {
	if os.Geteuid() == 0 {
		return systemDataDir
	}
	return filepath.Join(GetRealUserHome(), ".integmon")
}

// DefaultConfig derives all paths from the data directory.
func DefaultConfig() *Config {
	return configForDataDir(DefaultDataDir())
}

func configForDataDir(dataDir string) *Config {
	return &Config{
		Paths: domain.Paths{
			MonitoredRoot: DefaultMonitoredRoot,
			BaselinePath:  filepath.Join(dataDir, DefaultBaselineFileName),
			ReportPath:    filepath.Join(dataDir, DefaultReportFileName),
		},
		DataDir:        dataDir,
		HistoryPath:    filepath.Join(dataDir, historyDBName),
		LockPath:       filepath.Join(dataDir, lockFileName),
		HistoryEnabled: true,
		IsRoot:         os.Geteuid() == 0,
	}
}

// ResolveConfig merges defaults, the optional YAML file and flag overrides.
// Precedence: flags > config file > defaults.
func ResolveConfig(fs domain.FileSystemManager, ov Overrides) (*Config, error) {
	dataDir := DefaultDataDir()
	if ov.DataDir != "" {
		dataDir = fs.ExpandHome(ov.DataDir)
	}

	configPath := ov.ConfigPath
	if configPath == "" {
		configPath = filepath.Join(dataDir, DefaultConfigFileName)
	}
	fileCfg, err := LoadFileConfig(fs.ExpandHome(configPath))
	if err != nil {
		return nil, err
	}
	if ov.ConfigPath != "" && fileCfg == nil {
		return nil, fmt.Errorf("config file not found: %s", ov.ConfigPath)
	}

	if fileCfg != nil && fileCfg.DataDir != "" && ov.DataDir == "" {
		dataDir = fs.ExpandHome(fileCfg.DataDir)
	}

	cfg := configForDataDir(dataDir)
	if fileCfg != nil {
		fileCfg.apply(cfg, fs)
	}

	if ov.Root != "" {
		cfg.MonitoredRoot = fs.ExpandHome(ov.Root)
	}
	if ov.BaselinePath != "" {
		cfg.BaselinePath = fs.ExpandHome(ov.BaselinePath)
	}
	if ov.ReportPath != "" {
		cfg.ReportPath = fs.ExpandHome(ov.ReportPath)
	}
	if ov.NoHistory {
		cfg.HistoryEnabled = false
	}

	if err := cfg.absolutize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StatePaths lists everything integmon itself writes. Walks exclude them so
// a data dir or report under the monitored root never shows up as a change.
func (c *Config) StatePaths() []string {
	return []string{c.DataDir, c.BaselinePath, c.ReportPath, c.HistoryPath, c.LockPath}
}

// absolutize makes every path absolute so baseline keys never depend on cwd.
func (c *Config) absolutize() error {
	for _, p := range []*string{&c.MonitoredRoot, &c.BaselinePath, &c.ReportPath, &c.DataDir, &c.HistoryPath, &c.LockPath} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns root's home, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
