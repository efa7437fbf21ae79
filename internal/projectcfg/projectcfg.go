// Package projectcfg resolves per-project session settings (ports, package
// managers, startup command) from the project's own files.
//
// Precedence, highest first: .env.local / .env, start.sh, then
// .agent-os/product/tech-stack.md. The first resolution in a process is
// frozen; later calls return it unchanged even if the files move on.
package projectcfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/hpungsan/agentos/internal/cache"
)

// Relative paths of the files the resolver reads.
const (
	EnvLocalFile  = ".env.local"
	EnvFile       = ".env"
	StartScript   = "start.sh"
	TechStackFile = ".agent-os/product/tech-stack.md"
)

// SessionConfig is the resolved project configuration.
type SessionConfig struct {
	PythonPackageManager     string    `json:"python_package_manager,omitempty"`
	JavaScriptPackageManager string    `json:"javascript_package_manager,omitempty"`
	FrontendPort             int       `json:"frontend_port,omitempty"`
	BackendPort              int       `json:"backend_port,omitempty"`
	StartupCommand           string    `json:"startup_command,omitempty"`
	Root                     string    `json:"root"`
	ResolvedAt               time.Time `json:"resolved_at"`
}

// Exports renders the config as shell export lines, one per set field, in a
// fixed order.
func (c SessionConfig) Exports() string {
	var b strings.Builder
	add := func(key, val string) {
		if val == "" {
			return
		}
		fmt.Fprintf(&b, "export %s=%s\n", key, shellQuote(val))
	}
	add("AGENT_OS_PYTHON_PACKAGE_MANAGER", c.PythonPackageManager)
	add("AGENT_OS_JS_PACKAGE_MANAGER", c.JavaScriptPackageManager)
	if c.FrontendPort > 0 {
		add("AGENT_OS_FRONTEND_PORT", strconv.Itoa(c.FrontendPort))
	}
	if c.BackendPort > 0 {
		add("AGENT_OS_BACKEND_PORT", strconv.Itoa(c.BackendPort))
	}
	add("AGENT_OS_STARTUP_COMMAND", c.StartupCommand)
	return b.String()
}

var safeShellWord = regexp.MustCompile(`^[A-Za-z0-9_./:@%+=-]+$`)

func shellQuote(s string) string {
	if safeShellWord.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Resolve reads root's files and applies the precedence rules. It never
// fails on missing or malformed files; those simply contribute nothing.
func Resolve(root string) SessionConfig {
	cfg := SessionConfig{Root: root}

	if md, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(TechStackFile))); err == nil {
		applyTechStack(&cfg, string(md))
	}

	if sh, err := os.ReadFile(filepath.Join(root, StartScript)); err == nil {
		js, py := detectPackageManagers(string(sh))
		if js != "" {
			cfg.JavaScriptPackageManager = js
		}
		if py != "" {
			cfg.PythonPackageManager = py
		}
		cfg.StartupCommand = "./" + StartScript
	}

	local := readEnv(filepath.Join(root, EnvLocalFile))
	if port, ok := parsePort(local["PORT"]); ok {
		cfg.FrontendPort = port
	}
	backend := readEnv(filepath.Join(root, EnvFile))
	apiPort := backend["API_PORT"]
	if apiPort == "" {
		apiPort = backend["PORT"]
	}
	if port, ok := parsePort(apiPort); ok {
		cfg.BackendPort = port
	}

	return cfg
}

func readEnv(path string) map[string]string {
	env, err := godotenv.Read(path)
	if err != nil {
		return nil
	}
	return env
}

func parsePort(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 || n > 65535 {
		return 0, false
	}
	return n, true
}

// managerPattern matches one package manager name as a whole word.
type managerPattern struct {
	name string
	re   *regexp.Regexp
}

func managerPatterns(names ...string) []managerPattern {
	out := make([]managerPattern, len(names))
	for i, n := range names {
		out[i] = managerPattern{name: n, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(n) + `\b`)}
	}
	return out
}

// Checked in order; the first hit wins.
var (
	jsManagers = managerPatterns("yarn", "npm", "pnpm", "bun")
	pyManagers = managerPatterns("uv", "pip", "poetry", "pipenv")
)

func detectPackageManagers(script string) (js, py string) {
	return firstWord(script, jsManagers), firstWord(script, pyManagers)
}

func firstWord(text string, candidates []managerPattern) string {
	for _, c := range candidates {
		if c.re.MatchString(text) {
			return c.name
		}
	}
	return ""
}

var techStackFields = map[string]*regexp.Regexp{
	"python":   regexp.MustCompile(`(?m)Python Package Manager:[ \t]*(.+)$`),
	"js":       regexp.MustCompile(`(?m)JavaScript Package Manager:[ \t]*(.+)$`),
	"frontend": regexp.MustCompile(`(?m)Frontend Port:[ \t]*(.+)$`),
	"backend":  regexp.MustCompile(`(?m)Backend Port:[ \t]*(.+)$`),
}

func applyTechStack(cfg *SessionConfig, md string) {
	md = strings.ReplaceAll(md, "*", "")
	field := func(name string) string {
		m := techStackFields[name].FindStringSubmatch(md)
		if m == nil {
			return ""
		}
		return strings.TrimSpace(m[1])
	}
	if v := field("python"); v != "" {
		cfg.PythonPackageManager = v
	}
	if v := field("js"); v != "" {
		cfg.JavaScriptPackageManager = v
	}
	if port, ok := parsePort(field("frontend")); ok {
		cfg.FrontendPort = port
	}
	if port, ok := parsePort(field("backend")); ok {
		cfg.BackendPort = port
	}
}

// Resolver memoizes Resolve on disk (with a TTL) and in process (forever).
type Resolver struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	frozen map[string]SessionConfig
}

// NewResolver creates a Resolver. c may be nil to skip the disk cache.
func NewResolver(c cache.Cache, ttl time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		cache:  c,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		frozen: make(map[string]SessionConfig),
	}
}

// CacheKey returns the disk cache key for root.
func CacheKey(root string) string {
	return cache.DirKey("session-config", root)
}

// Get returns the session config for root. refresh skips the disk cache but
// never replaces a value this process has already handed out.
func (r *Resolver) Get(root string, refresh bool) (SessionConfig, error) {
	if root == "" {
		return SessionConfig{}, errors.New("project root is empty")
	}
	root = filepath.Clean(root)

	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg, ok := r.frozen[root]; ok {
		return cfg, nil
	}

	key := CacheKey(root)
	if r.cache != nil && !refresh {
		if entry, ok := r.cache.Get(key, r.ttl); ok {
			var cfg SessionConfig
			if err := json.Unmarshal(entry.Value, &cfg); err == nil && cfg.Root == root {
				r.frozen[root] = cfg
				return cfg, nil
			}
			r.logger.Debug("session config cache entry unreadable", "key", key)
		}
	}

	cfg := Resolve(root)
	cfg.ResolvedAt = r.now().UTC()

	if r.cache != nil {
		data, err := json.Marshal(cfg)
		if err == nil {
			err = r.cache.Set(key, data)
		}
		if err != nil {
			r.logger.Warn("failed to write session config cache", "error", err)
		}
	}

	r.frozen[root] = cfg
	r.logger.Debug("session config resolved", "root", root,
		"frontend_port", cfg.FrontendPort, "backend_port", cfg.BackendPort)
	return cfg, nil
}
