// Package hostfile loads the declarative YAML file describing which tool
// servers a host should manage.
package hostfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hostkit/toolhost/internal/config"
)

const (
	projectConfigName = "toolhost.yaml"
	homeConfigDir     = ".toolhost"
	homeConfigName    = "config.yaml"
)

// File is the on-disk shape: a map of server id to declaration.
type File struct {
	Servers map[string]Server `yaml:"servers"`
}

// Server is one declared tool server.
type Server struct {
	Name        string            `yaml:"name,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	AutoStart   bool              `yaml:"autoStart,omitempty"`
}

// Discover resolves the config location with first-match semantics:
// explicit path, ./toolhost.yaml, then ~/.toolhost/config.yaml.
func Discover(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}

	return DiscoverFrom(explicitPath, cwd, homeDir)
}

// DiscoverFrom is a testable variant of Discover.
func DiscoverFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	var candidates []string

	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = []string{filepath.Clean(clean)}
	} else {
		candidates = []string{
			filepath.Join(cwd, projectConfigName),
			filepath.Join(homeDir, homeConfigDir, homeConfigName),
		}
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}

		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat %s: %w", candidate, err)
		}

		// An explicit path that does not exist is an error, not a miss.
		if i == 0 && explicitPath != "" {
			return "", false, fmt.Errorf("config file not found: %s", candidate)
		}
	}

	return "", false, nil
}

// Load reads and validates a host file, returning configs sorted by id.
func Load(path string) ([]config.ServerConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading the user's own config
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes host file contents.
func Parse(data []byte) ([]config.ServerConfig, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	configs := make([]config.ServerConfig, 0, len(file.Servers))

	for id, decl := range file.Servers {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("server with empty id")
		}

		if strings.TrimSpace(decl.Command) == "" {
			return nil, fmt.Errorf("server %q: command is required", id)
		}

		configs = append(configs, config.ServerConfig{
			ID:          id,
			Name:        decl.Name,
			Description: decl.Description,
			Command:     decl.Command,
			Args:        decl.Args,
			Env:         decl.Env,
			AutoStart:   decl.AutoStart,
		})
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })

	return configs, nil
}
