package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
//
// File-backed fields come from ~/.agent-os/config.json and the nearest
// repo-level .agent-os/config.json. Environment-backed fields are filled once
// by ApplyEnv; nothing else in the module reads the environment.
type Config struct {
	// StateTTLSeconds is how long a cached workspace state stays fresh.
	// A pointer so that an explicit 0 (always refresh) survives Merge.
	StateTTLSeconds *int `json:"state_ttl_seconds,omitempty"`

	// CommandTimeoutSeconds bounds each git/gh invocation.
	CommandTimeoutSeconds int `json:"command_timeout_seconds,omitempty"`

	// CacheDir holds the workspace-state cache, the work-session sentinel,
	// and the resolved session config. Defaults to <base>/cache.
	CacheDir string `json:"cache_dir,omitempty"`

	// LogDir receives the debug log when debugging is enabled. Defaults to <base>/logs.
	LogDir string `json:"log_dir,omitempty"`

	// IntentRulesPath is an optional YAML file replacing the built-in intent patterns.
	IntentRulesPath string `json:"intent_rules_path,omitempty"`

	// DocRules are extra path-pattern → document rules for the drift detector.
	DocRules []DocRule `json:"doc_rules,omitempty"`

	// CoreDocs must exist at the repo root; checked in deep scans.
	CoreDocs []string `json:"core_docs,omitempty"`

	// StopAllowlist holds extra path globs ignored by the stop check.
	StopAllowlist []string `json:"stop_allowlist,omitempty"`

	// DefaultBranch is the integration branch named in remediation text.
	DefaultBranch string `json:"default_branch,omitempty"`

	// RecordDecisions disables the decision audit log when set to false.
	RecordDecisions *bool `json:"record_decisions,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// Environment overlay.
	Debug        bool   `json:"-"` // AGENT_OS_DEBUG
	WorkSession  bool   `json:"-"` // AGENT_OS_WORK_SESSION
	ForceSession bool   `json:"-"` // AGENT_OS_FORCE_SESSION
	NewWork      bool   `json:"-"` // AGENT_OS_NEW_WORK
	WorkType     string `json:"-"` // AGENT_OS_WORK_TYPE: maintenance | new_work
	GitHubIssue  int    `json:"-"` // GITHUB_ISSUE
}

// DocRule maps changed paths matching Pattern (a regular expression over
// repo-relative, slash-separated paths) to a document that should be updated.
type DocRule struct {
	Pattern string `json:"pattern"`
	Doc     string `json:"doc"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	ttl := 60
	record := true
	return &Config{
		StateTTLSeconds:       &ttl,
		CommandTimeoutSeconds: 5,
		CoreDocs:              []string{"README.md", "CHANGELOG.md", "CLAUDE.md"},
		DefaultBranch:         "main",
		RecordDecisions:       &record,
	}
}

// BaseDir returns ~/.agent-os.
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".agent-os"), nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.agent-os.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	cfg.fillPaths(baseDir)
	return cfg, nil
}

// LoadWithRepo loads configuration from both global (~/.agent-os) and repo (.agent-os) directories.
// Repo config is found by walking upward from startDir to find the nearest .agent-os/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	cfg.fillPaths(globalDir)
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .agent-os/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".agent-os", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

func (c *Config) fillPaths(baseDir string) {
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(baseDir, "cache")
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(baseDir, "logs")
	}
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
// Environment fields are not merged; ApplyEnv sets them afterwards.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.StateTTLSeconds = overlay.StateTTLSeconds
	if result.StateTTLSeconds == nil {
		result.StateTTLSeconds = base.StateTTLSeconds
	}

	result.RecordDecisions = overlay.RecordDecisions
	if result.RecordDecisions == nil {
		result.RecordDecisions = base.RecordDecisions
	}

	result.CommandTimeoutSeconds = overlay.CommandTimeoutSeconds
	if result.CommandTimeoutSeconds == 0 {
		result.CommandTimeoutSeconds = base.CommandTimeoutSeconds
	}

	result.CacheDir = firstNonEmpty(overlay.CacheDir, base.CacheDir)
	result.LogDir = firstNonEmpty(overlay.LogDir, base.LogDir)
	result.IntentRulesPath = firstNonEmpty(overlay.IntentRulesPath, base.IntentRulesPath)
	result.DefaultBranch = firstNonEmpty(overlay.DefaultBranch, base.DefaultBranch)

	result.CoreDocs = mergeStringSlice(base.CoreDocs, overlay.CoreDocs)
	result.StopAllowlist = mergeStringSlice(base.StopAllowlist, overlay.StopAllowlist)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DocRules = mergeDocRules(base.DocRules, overlay.DocRules)

	return result
}

// ApplyEnv overlays the AGENT_OS_* environment onto c. lookup is usually
// os.LookupEnv; tests pass a map-backed function. Unparseable numbers are
// ignored and reported in the returned warnings.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) []string {
	var warnings []string

	c.Debug = envBool(lookup, "AGENT_OS_DEBUG")
	c.WorkSession = envBool(lookup, "AGENT_OS_WORK_SESSION")
	c.ForceSession = envBool(lookup, "AGENT_OS_FORCE_SESSION")
	c.NewWork = envBool(lookup, "AGENT_OS_NEW_WORK")

	if v, ok := lookup("AGENT_OS_WORK_TYPE"); ok {
		c.WorkType = strings.ToLower(strings.TrimSpace(v))
	}

	if v, ok := lookup("AGENT_OS_STATE_TTL"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			warnings = append(warnings, "ignoring invalid AGENT_OS_STATE_TTL="+v)
		} else {
			c.StateTTLSeconds = &n
		}
	}

	if v, ok := lookup("GITHUB_ISSUE"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(v), "#"))
		if err != nil || n <= 0 {
			warnings = append(warnings, "ignoring invalid GITHUB_ISSUE="+v)
		} else {
			c.GitHubIssue = n
		}
	}

	return warnings
}

// StateTTL returns the workspace-state cache TTL.
func (c *Config) StateTTL() time.Duration {
	if c.StateTTLSeconds == nil {
		return 60 * time.Second
	}
	return time.Duration(*c.StateTTLSeconds) * time.Second
}

// CommandTimeout returns the per-command timeout for git and gh.
func (c *Config) CommandTimeout() time.Duration {
	if c.CommandTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// ShouldRecordDecisions reports whether gate decisions go to the audit log.
func (c *Config) ShouldRecordDecisions() bool {
	return c.RecordDecisions == nil || *c.RecordDecisions
}

func envBool(lookup func(string) (string, bool), key string) bool {
	v, ok := lookup(key)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

func mergeDocRules(a, b []DocRule) []DocRule {
	seen := make(map[DocRule]bool)
	var result []DocRule
	for _, r := range append(append([]DocRule{}, a...), b...) {
		r.Pattern = strings.TrimSpace(r.Pattern)
		r.Doc = strings.TrimSpace(r.Doc)
		if r.Pattern == "" || r.Doc == "" || seen[r] {
			continue
		}
		seen[r] = true
		result = append(result, r)
	}
	return result
}
