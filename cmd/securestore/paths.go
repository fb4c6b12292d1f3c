package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/benaskins/securestore/internal/config"
)

// configFile returns the --config flag or ~/.securestore/config.yaml.
func configFile() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func saveConfig(path string) error {
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

// ensureParent creates the directory holding path, private to the user.
func ensureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0700)
}
