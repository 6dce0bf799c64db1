package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectType represents the type of project detected.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeUnknown ProjectType = "unknown"
)

// Config represents the complete filepick configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Frecency    FrecencyConfig    `yaml:"frecency" json:"frecency"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// PathsConfig configures which paths to include and exclude.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`

	// FollowSymlinks controls whether the scanner descends into symlinked
	// directories. Disabled by default to avoid cycles.
	FollowSymlinks bool `yaml:"follow_symlinks" json:"follow_symlinks"`
}

// SearchConfig configures fuzzy search scoring and result shaping.
//
// AcceptanceThreshold and the default limits are configurable via:
//  1. User config (~/.config/filepick/config.yaml) - personal defaults
//  2. Project config (.filepick.yaml) - per-repo tuning
//  3. Env vars (FILEPICK_*) - highest precedence
type SearchConfig struct {
	// AcceptanceThreshold is the minimum raw fuzzy score a candidate with
	// no literal (exact/prefix/substring) hit must clear to be returned.
	// The scorer awards roughly 16-26 points per matched character, so 40
	// demands about three well-placed characters.
	AcceptanceThreshold int `yaml:"acceptance_threshold" json:"acceptance_threshold"`

	// DefaultMaxResults caps the number of results returned when a query
	// doesn't specify a limit.
	DefaultMaxResults int `yaml:"default_max_results" json:"default_max_results"`

	// DefaultMaxThreads caps the size of the scorer's worker pool when a
	// query doesn't specify one.
	DefaultMaxThreads int `yaml:"default_max_threads" json:"default_max_threads"`

	// SpecialFilenames are stems (case-insensitive, extension stripped)
	// that receive a fixed score bump regardless of query, e.g. "readme".
	SpecialFilenames []string `yaml:"special_filenames" json:"special_filenames"`
}

// FrecencyConfig configures the access-recency scoring blend.
type FrecencyConfig struct {
	// AccessWeight is the contribution of access-event decay to the
	// blended frecency score.
	AccessWeight float64 `yaml:"access_weight" json:"access_weight"`

	// ModificationWeight is the contribution of file modification
	// recency to the blended frecency score.
	ModificationWeight float64 `yaml:"modification_weight" json:"modification_weight"`

	// RecordTTL is how long an access record is retained before it is
	// pruned from the store, expressed as a duration string (e.g. "720h").
	RecordTTL string `yaml:"record_ttl" json:"record_ttl"`
}

// PerformanceConfig configures performance tuning options.
type PerformanceConfig struct {
	MaxFiles      int    `yaml:"max_files" json:"max_files"`
	IndexWorkers  int    `yaml:"index_workers" json:"index_workers"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
	SQLiteCacheMB int    `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"` // SQLite cache size in MB
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// defaultSpecialFilenames receive a score bump independent of the query.
var defaultSpecialFilenames = []string{
	"readme", "license", "changelog", "makefile", "dockerfile",
	"main", "index", "lib", "mod", "init",
	"go.mod", "package.json", "cargo.toml",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include:        []string{},
			Exclude:        defaultExcludePatterns,
			FollowSymlinks: false,
		},
		Search: SearchConfig{
			AcceptanceThreshold: 40,
			DefaultMaxResults:   20,
			DefaultMaxThreads:   runtime.NumCPU(),
			SpecialFilenames:    defaultSpecialFilenames,
		},
		Frecency: FrecencyConfig{
			AccessWeight:       6,
			ModificationWeight: 4,
			RecordTTL:          "720h", // 30 days
		},
		Performance: PerformanceConfig{
			MaxFiles:      200000,
			IndexWorkers:  4,
			WatchDebounce: "100ms",
			SQLiteCacheMB: 64,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/filepick/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/filepick/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "filepick", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "filepick", "config.yaml")
	}
	return filepath.Join(home, ".config", "filepick", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/filepick/config.yaml)
//  3. Project config (.filepick.yaml in project root)
//  4. Environment variables (FILEPICK_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .filepick.yaml or .filepick.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".filepick.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".filepick.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Paths
	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}
	if other.Paths.FollowSymlinks {
		c.Paths.FollowSymlinks = other.Paths.FollowSymlinks
	}

	// Search
	if other.Search.AcceptanceThreshold != 0 {
		c.Search.AcceptanceThreshold = other.Search.AcceptanceThreshold
	}
	if other.Search.DefaultMaxResults != 0 {
		c.Search.DefaultMaxResults = other.Search.DefaultMaxResults
	}
	if other.Search.DefaultMaxThreads != 0 {
		c.Search.DefaultMaxThreads = other.Search.DefaultMaxThreads
	}
	if len(other.Search.SpecialFilenames) > 0 {
		c.Search.SpecialFilenames = other.Search.SpecialFilenames
	}

	// Frecency
	if other.Frecency.AccessWeight != 0 {
		c.Frecency.AccessWeight = other.Frecency.AccessWeight
	}
	if other.Frecency.ModificationWeight != 0 {
		c.Frecency.ModificationWeight = other.Frecency.ModificationWeight
	}
	if other.Frecency.RecordTTL != "" {
		c.Frecency.RecordTTL = other.Frecency.RecordTTL
	}

	// Performance
	if other.Performance.MaxFiles != 0 {
		c.Performance.MaxFiles = other.Performance.MaxFiles
	}
	if other.Performance.IndexWorkers != 0 {
		c.Performance.IndexWorkers = other.Performance.IndexWorkers
	}
	if other.Performance.WatchDebounce != "" {
		c.Performance.WatchDebounce = other.Performance.WatchDebounce
	}
	if other.Performance.SQLiteCacheMB != 0 {
		c.Performance.SQLiteCacheMB = other.Performance.SQLiteCacheMB
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies FILEPICK_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FILEPICK_ACCEPTANCE_THRESHOLD"); v != "" {
		if t, err := strconv.Atoi(v); err == nil {
			c.Search.AcceptanceThreshold = t
		}
	}
	if v := os.Getenv("FILEPICK_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.DefaultMaxResults = n
		}
	}
	if v := os.Getenv("FILEPICK_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Performance.IndexWorkers = n
		}
	}
	if v := os.Getenv("FILEPICK_ACCESS_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil {
			c.Frecency.AccessWeight = w
		}
	}
	if v := os.Getenv("FILEPICK_MODIFICATION_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil {
			c.Frecency.ModificationWeight = w
		}
	}
	if v := os.Getenv("FILEPICK_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("FILEPICK_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// DetectProjectType detects the project type based on marker files.
// Priority: go.mod > package.json > pyproject.toml/requirements.txt
func DetectProjectType(dir string) ProjectType {
	if fileExists(filepath.Join(dir, "go.mod")) {
		return ProjectTypeGo
	}
	if fileExists(filepath.Join(dir, "package.json")) {
		return ProjectTypeNode
	}
	if fileExists(filepath.Join(dir, "pyproject.toml")) ||
		fileExists(filepath.Join(dir, "requirements.txt")) {
		return ProjectTypePython
	}
	return ProjectTypeUnknown
}

// FindProjectRoot finds the project root directory.
// It looks for a .git directory or .filepick.yaml/.yml file by walking up
// the directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		if fileExists(filepath.Join(currentDir, ".filepick.yaml")) ||
			fileExists(filepath.Join(currentDir, ".filepick.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// DiscoverSourceDirs discovers common source directories in the project.
func DiscoverSourceDirs(dir string) []string {
	commonSourceDirs := []string{"src", "lib", "pkg", "internal", "cmd"}
	frameworkDirs := []string{"app", "pages"} // Next.js, etc.

	var found []string

	for _, d := range commonSourceDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}

	if isNextJS(dir) {
		for _, d := range frameworkDirs {
			if dirExists(filepath.Join(dir, d)) {
				found = append(found, d)
			}
		}
	}

	return found
}

// DiscoverDocsDirs discovers documentation directories in the project.
func DiscoverDocsDirs(dir string) []string {
	commonDocDirs := []string{"docs", "doc"}
	commonDocFiles := []string{"README.md", "readme.md", "README.markdown"}

	var found []string

	for _, d := range commonDocDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}

	for _, f := range commonDocFiles {
		if fileExists(filepath.Join(dir, f)) {
			found = append(found, f)
			break
		}
	}

	return found
}

// isNextJS checks if the project is a Next.js project.
func isNextJS(dir string) bool {
	pkgPath := filepath.Join(dir, "package.json")
	if !fileExists(pkgPath) {
		return false
	}

	data, err := os.ReadFile(pkgPath)
	if err != nil {
		return false
	}

	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}

	_, hasNext := pkg.Dependencies["next"]
	_, hasNextDev := pkg.DevDependencies["next"]
	return hasNext || hasNextDev
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// String returns a string representation of ProjectType.
func (p ProjectType) String() string {
	return string(p)
}

// IsKnown returns true if the project type is known (not unknown).
func (p ProjectType) IsKnown() bool {
	return p != ProjectTypeUnknown
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.AcceptanceThreshold < 0 {
		return fmt.Errorf("search.acceptance_threshold must be non-negative, got %d", c.Search.AcceptanceThreshold)
	}
	if c.Search.DefaultMaxResults < 0 {
		return fmt.Errorf("search.default_max_results must be non-negative, got %d", c.Search.DefaultMaxResults)
	}
	if c.Frecency.AccessWeight < 0 || c.Frecency.ModificationWeight < 0 {
		return fmt.Errorf("frecency weights must be non-negative, got access=%.2f modification=%.2f",
			c.Frecency.AccessWeight, c.Frecency.ModificationWeight)
	}

	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults fills in zero-valued fields introduced by a newer
// version of filepick after loading an older on-disk config. Returns the
// list of dotted field names that were filled in, for surfacing to the user.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Search.AcceptanceThreshold == 0 {
		c.Search.AcceptanceThreshold = defaults.Search.AcceptanceThreshold
		added = append(added, "search.acceptance_threshold")
	}
	if c.Search.DefaultMaxThreads == 0 {
		c.Search.DefaultMaxThreads = defaults.Search.DefaultMaxThreads
		added = append(added, "search.default_max_threads")
	}
	if c.Frecency.AccessWeight == 0 && c.Frecency.ModificationWeight == 0 {
		c.Frecency.AccessWeight = defaults.Frecency.AccessWeight
		c.Frecency.ModificationWeight = defaults.Frecency.ModificationWeight
		added = append(added, "frecency.access_weight", "frecency.modification_weight")
	}
	if c.Frecency.RecordTTL == "" {
		c.Frecency.RecordTTL = defaults.Frecency.RecordTTL
		added = append(added, "frecency.record_ttl")
	}
	if c.Performance.SQLiteCacheMB == 0 {
		c.Performance.SQLiteCacheMB = defaults.Performance.SQLiteCacheMB
		added = append(added, "performance.sqlite_cache_mb")
	}

	return added
}
