package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"

	"github.com/tinyland-inc/forwardbot/pkg/config"
)

const Logo = "📨"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

// configPath is set by the root --config flag.
var configPath string

func SetConfigPath(path string) {
	configPath = path
}

// GetConfigPath resolves --config, then $FORWARDBOT_CONFIG, then
// ~/.forwardbot/config.json.
func GetConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv("FORWARDBOT_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".forwardbot", "config.json")
}

// LoadConfig reads a .env file from the working directory when present and
// then the JSON config with environment overrides.
func LoadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}
	return config.LoadConfig(GetConfigPath())
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

// GetVersion returns the version string
func GetVersion() string {
	return version
}
