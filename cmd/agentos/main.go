package main

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/agentos/internal/cache"
	"github.com/hpungsan/agentos/internal/config"
	"github.com/hpungsan/agentos/internal/db"
	"github.com/hpungsan/agentos/internal/exec"
	"github.com/hpungsan/agentos/internal/logging"
	"github.com/hpungsan/agentos/internal/mcp"
	"github.com/hpungsan/agentos/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// MCP server memo sizing.
const (
	memoEntries = 256
	memoMaxAge  = 10 * time.Minute
)

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"state": true, "classify": true, "gate": true,
	"boundary": true, "session": true, "config": true,
	"docs": true, "stop-check": true, "hook": true,
	"decisions": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
    __ _  __ _  ___ _ __ | |_ ___  ___
   / _' |/ _' |/ _ \ '_ \| __/ _ \/ __|
  | (_| | (_| |  __/ | | | || (_) \__ \
   \__,_|\__, |\___|_| |_|\__\___/|___/
         |___/

  Workflow guardrails for AI coding sessions

  Usage: agentos <command> [options]
         agentos --help

  MCP server mode requires piped input.`)
}

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	// No args + interactive terminal → show banner and exit
	if len(args) < 2 && isTerminal() {
		printBanner()
		return 0
	}

	// Handle --help/--version before loading anything
	if isHelpOrVersion(args) {
		return exitCode(newCLIApp(nil, "").Run(args))
	}

	cliMode := isCLIMode(args)

	// Unknown argument + terminal → show error (don't start MCP server)
	if !cliMode && len(args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", args[1])
		fmt.Fprintf(os.Stderr, "Run 'agentos --help' for usage.\n")
		return 1
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine working directory: %v\n", err)
		return 1
	}
	baseDir, err := config.BaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		return 1
	}

	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}
	warnings := cfg.ApplyEnv(os.LookupEnv)

	logger, closeLog, err := logging.New(cfg.LogDir, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		logger, closeLog = logging.Discard(), func() error { return nil }
	}
	defer func() { _ = closeLog() }()
	for _, w := range warnings {
		logger.Debug(w)
	}

	env, closeDB, err := newEnv(cfg, baseDir, !cliMode, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer closeDB()

	if cliMode {
		return exitCode(newCLIApp(env, cwd).Run(args))
	}

	// MCP server mode (default)
	if err := mcp.Run(env, cwd, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// newEnv wires the shared collaborators. The audit database is optional:
// when it cannot be opened, decisions are simply not recorded, so hooks
// never fail on it. memo puts an in-process LRU in front of the file cache.
func newEnv(cfg *config.Config, baseDir string, memo bool, logger *slog.Logger) (*ops.Env, func(), error) {
	var c cache.Cache = cache.NewFileCache(cfg.CacheDir)
	if memo {
		c = cache.NewMemoCache(c, memoEntries, memoMaxAge)
	}

	closeDB := func() {}
	database, err := db.Init(baseDir)
	if err != nil {
		logger.Warn("decision log unavailable", "error", err)
		database = nil
	} else {
		closeDB = func() { database.Close() }
	}

	env, err := ops.NewEnv(cfg, exec.NewRealRunner(cfg.CommandTimeout()), c, database, logger)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return env, closeDB, nil
}

// exitCode prints err's message, if any, and returns the process exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if stderrors.As(err, &ec) {
		if msg := ec.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		return ec.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}
