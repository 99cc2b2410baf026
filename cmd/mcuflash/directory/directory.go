// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package directory

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

const (
	// UserConfigPathEnv if set, will load the user config from that path.
	UserConfigPathEnv = "MCUFLASH_USER_CONFIG_PATH"
	// ToolPathEnv if set, overrides the location of the mcumgr binary.
	ToolPathEnv = "MCUFLASH_MCUMGR_PATH"

	// ToolCfgKey stores the mcumgr path in the user config.
	ToolCfgKey = "mcumgr"
	// BoardCfgKey stores the default board identity in the user config.
	BoardCfgKey = "board"
)

func GetUserConfigPath() (string, error) {
	if path, ok := os.LookupEnv(UserConfigPathEnv); ok {
		return path, nil
	}

	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homedir, ".config", "mcuflash", "config.yaml"), nil
}

func GetUserConfig() (*viper.Viper, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config path: %w", err)
	}

	cfg := viper.New()
	cfg.SetConfigType("yaml")
	cfg.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := cfg.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read user config: %w", err)
		}
	}
	return cfg, nil
}

func WriteConfig(cfg *viper.Viper) error {
	path := cfg.ConfigFileUsed()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmpFile := path + ".tmp"
	if err := cfg.WriteConfigAs(tmpFile); err != nil {
		return err
	}
	defer os.Remove(tmpFile)

	return os.Rename(tmpFile, path)
}

// Executable returns the platform specific name of an executable.
func Executable(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// GetToolPath resolves the mcumgr binary: the environment wins, then the user
// config, then the PATH.
func GetToolPath(cfg *viper.Viper) (string, error) {
	if path, ok := os.LookupEnv(ToolPathEnv); ok {
		return path, nil
	}

	if path := cfg.GetString(ToolCfgKey); path != "" {
		if stat, err := os.Stat(path); err != nil || stat.IsDir() {
			return "", fmt.Errorf("the configured path '%s' did not hold the mcumgr tool", path)
		}
		return path, nil
	}

	if path, err := exec.LookPath(Executable("mcumgr")); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("mcumgr was not found.\nInstall it in your PATH, or set it with 'mcuflash config tool set' or %s", ToolPathEnv)
}
