package infra

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

// FileConfig is the optional YAML configuration file.
//
//	root: /etc
//	data_dir: /var/lib/integmon
//	baseline: /var/lib/integmon/etc_hashes.txt
//	report: /var/log/integmon.log
//	history: true
type FileConfig struct {
	Root     string `yaml:"root"`
	DataDir  string `yaml:"data_dir"`
	Baseline string `yaml:"baseline"`
	Report   string `yaml:"report"`
	History  *bool  `yaml:"history"`
}

// LoadFileConfig reads a YAML config file. A missing file returns nil, nil.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseFileConfig(data)
}

// ParseFileConfig parses YAML config content. Unknown keys are rejected.
func ParseFileConfig(data []byte) (*FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		// Empty file
		if errors.Is(err, io.EOF) {
			return &fc, nil
		}
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &fc, nil
}

func (fc *FileConfig) apply(cfg *Config, fs domain.FileSystemManager) {
	if fc.Root != "" {
		cfg.MonitoredRoot = fs.ExpandHome(fc.Root)
	}
	if fc.Baseline != "" {
		cfg.BaselinePath = fs.ExpandHome(fc.Baseline)
	}
	if fc.Report != "" {
		cfg.ReportPath = fs.ExpandHome(fc.Report)
	}
	if fc.History != nil {
		cfg.HistoryEnabled = *fc.History
	}
}
