package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/agentos/internal/boundary"
	"github.com/hpungsan/agentos/internal/docs"
	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/hook"
	"github.com/hpungsan/agentos/internal/ops"
	"github.com/hpungsan/agentos/internal/stophook"
)

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Print the full result as JSON"}
}

// newCLIApp creates the CLI application with all commands. dir is the
// working directory commands act on.
func newCLIApp(env *ops.Env, dir string) *cli.App {
	app := &cli.App{
		Name:    "agentos",
		Usage:   "Workflow guardrails for AI coding sessions",
		Version: Version,
		Commands: []*cli.Command{
			stateCmd(env, dir),
			classifyCmd(env),
			gateCmd(env, dir),
			boundaryCmd(env, dir),
			sessionCmd(env),
			configCmd(env, dir),
			docsCmd(env, dir),
			stopCheckCmd(env, dir),
			hookCmd(env, dir),
			decisionsCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// stateCmd creates the state command.
func stateCmd(env *ops.Env, dir string) *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Report whether the workspace is clean (no uncommitted changes, no open PRs)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "ttl", Usage: "Cache freshness in seconds (0 forces a refresh)"},
			&cli.BoolFlag{Name: "refresh", Usage: "Bypass the cache"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			input := ops.StateInput{Dir: dir, Refresh: c.Bool("refresh")}
			if c.IsSet("ttl") {
				ttl := c.Int("ttl")
				input.TTLSeconds = &ttl
			}

			output, err := ops.State(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, output)
			}

			status := "clean"
			if !output.Clean {
				status = "not clean"
			}
			fmt.Fprintf(c.App.Writer, "workspace: %s\n", status)
			fmt.Fprintf(c.App.Writer, "uncommitted changes: %t\n", output.Dirty)
			if output.PRsKnown {
				fmt.Fprintf(c.App.Writer, "open pull requests: %d\n", output.OpenPRs)
			} else {
				fmt.Fprintln(c.App.Writer, "open pull requests: unknown (gh unavailable)")
			}
			return nil
		},
	}
}

// classifyCmd creates the classify command.
func classifyCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify an instruction as MAINTENANCE, NEW, or AMBIGUOUS",
		ArgsUsage: "<text...>",
		Flags:     []cli.Flag{jsonFlag()},
		Action: func(c *cli.Context) error {
			result := ops.Classify(env, ops.ClassifyInput{Text: joinArgs(c)})
			if c.Bool("json") {
				return outputJSON(c.App.Writer, result)
			}
			fmt.Fprintln(c.App.Writer, result.Intent)
			return nil
		},
	}
}

// gateCmd creates the gate command. Exit 0 allows, 2 blocks.
func gateCmd(env *ops.Env, dir string) *cli.Command {
	return &cli.Command{
		Name:      "gate",
		Usage:     "Decide whether an instruction may proceed (exit 0 allow, 2 block)",
		ArgsUsage: "<text...>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "action", Aliases: []string{"a"}, Value: "write", Usage: "Action type: read|write"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			d, err := ops.Gate(c.Context, env, ops.GateInput{
				Dir:    dir,
				Text:   joinArgs(c),
				Action: c.String("action"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				if err := outputJSON(c.App.Writer, d); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(c.App.Writer, "%s (%s)\n", d.Verdict, d.Intent)
			}
			if !d.Allowed() {
				return outputError(errors.NewBlocked(d.Reason))
			}
			return nil
		},
	}
}

// boundaryCmd creates the boundary command group.
func boundaryCmd(env *ops.Env, dir string) *cli.Command {
	return &cli.Command{
		Name:  "boundary",
		Usage: "Detect and commit workflow boundaries",
		Subcommands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "Map a context label to its boundary type",
				ArgsUsage: "<label>",
				Action: func(c *cli.Context) error {
					output, err := ops.DetectBoundary(c.Args().First())
					if err != nil {
						return outputError(withLabels(err))
					}
					fmt.Fprintln(c.App.Writer, output.Boundary)
					return nil
				},
			},
			{
				Name:      "commit",
				Usage:     "Stage and commit everything at a boundary (no-op without a session or changes)",
				ArgsUsage: "<label>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Commit subject (default: the boundary summary)"},
					jsonFlag(),
				},
				Action: func(c *cli.Context) error {
					res, err := ops.CommitBoundary(c.Context, env, ops.BoundaryCommitInput{
						Dir:     dir,
						Label:   c.Args().First(),
						Message: c.String("message"),
					})
					if err != nil {
						return outputError(withLabels(err))
					}
					if c.Bool("json") {
						return outputJSON(c.App.Writer, res)
					}
					if res.Committed {
						fmt.Fprintf(c.App.Writer, "committed: %s\n", firstLine(res.Message))
					} else {
						fmt.Fprintf(c.App.Writer, "skipped: %s\n", res.Skipped)
					}
					return nil
				},
			},
		},
	}
}

// withLabels adds the known labels to a NO_BOUNDARY message.
func withLabels(err error) error {
	var aErr *errors.AgentError
	if !stderrors.As(err, &aErr) || aErr.Code != errors.ErrNoBoundary {
		return err
	}
	withHint := *aErr
	withHint.Message = fmt.Sprintf("%s; known labels: %s", aErr.Message, strings.Join(boundary.Labels(), ", "))
	return &withHint
}

// sessionCmd creates the session command group.
func sessionCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Start, stop, or inspect the work session",
		Subcommands: []*cli.Command{
			{
				Name:      "start",
				Usage:     "Start a work session",
				ArgsUsage: "[description...]",
				Action: func(c *cli.Context) error {
					info, err := ops.SessionStart(env, joinArgs(c))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, info)
				},
			},
			{
				Name:  "stop",
				Usage: "Stop the work session",
				Action: func(c *cli.Context) error {
					if err := ops.SessionStop(env); err != nil {
						return outputError(err)
					}
					fmt.Fprintln(c.App.Writer, "work session stopped")
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "Show the work session",
				Action: func(c *cli.Context) error {
					info, err := ops.SessionStatus(env)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, info)
				},
			},
		},
	}
}

// configCmd creates the config command group.
func configCmd(env *ops.Env, dir string) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Project session configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "resolve",
				Usage: "Resolve package managers, ports, and startup command",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "exports", Usage: "Print shell export lines for eval"},
					&cli.BoolFlag{Name: "refresh", Usage: "Ignore the on-disk cache"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := ops.ResolveConfig(c.Context, env, ops.ConfigInput{Dir: dir, Refresh: c.Bool("refresh")})
					if err != nil {
						return outputError(err)
					}
					if c.Bool("exports") {
						_, err := io.WriteString(c.App.Writer, cfg.Exports())
						return err
					}
					return outputJSON(c.App.Writer, cfg)
				},
			},
		},
	}
}

// docsCmd creates the docs command. Exit 0 nothing to do, 2 proposals or
// findings, 1 a required document is missing.
func docsCmd(env *ops.Env, dir string) *cli.Command {
	return &cli.Command{
		Name:  "docs",
		Usage: "Detect documentation drift (exit 0 clean, 2 updates recommended, 1 required doc missing)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Propose updates for all working-tree changes (default)"},
			&cli.BoolFlag{Name: "diff-only", Usage: "Propose updates for tracked changes against HEAD"},
			&cli.BoolFlag{Name: "deep", Usage: "Also check core docs, references, spec issues, and the roadmap"},
			&cli.BoolFlag{Name: "create-missing", Usage: "Scaffold proposed documents that do not exist"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			mode, err := docsMode(c)
			if err != nil {
				return outputError(err)
			}

			report, err := ops.ScanDocs(c.Context, env, ops.DocsInput{
				Dir:           dir,
				Mode:          string(mode),
				CreateMissing: c.Bool("create-missing"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				if err := outputJSON(c.App.Writer, report); err != nil {
					return err
				}
			} else {
				printReport(c.App.Writer, report)
			}
			if err := report.Err(); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

func docsMode(c *cli.Context) (docs.Mode, error) {
	var picked []docs.Mode
	for _, m := range []docs.Mode{docs.ModeDryRun, docs.ModeDiffOnly, docs.ModeDeep} {
		if c.Bool(string(m)) {
			picked = append(picked, m)
		}
	}
	switch len(picked) {
	case 0:
		return docs.ModeDryRun, nil
	case 1:
		return picked[0], nil
	}
	return "", errors.NewInvalidRequest("choose one of --dry-run, --diff-only, --deep (e.g. agentos docs --deep)")
}

func printReport(w io.Writer, r *docs.Report) {
	if r.NoChanges {
		fmt.Fprintln(w, docs.NoChangesMessage)
		return
	}
	if len(r.Proposals) == 0 && len(r.Findings) == 0 {
		fmt.Fprintln(w, "documentation is up to date")
	}
	for _, p := range r.Proposals {
		state := "update"
		if !p.Exists {
			state = "create"
		}
		fmt.Fprintf(w, "%s %s (changed: %s)\n", state, p.Doc, strings.Join(p.Triggers, ", "))
	}
	for _, f := range r.Findings {
		fmt.Fprintf(w, "%s: %s: %s\n", f.Kind, f.Path, f.Detail)
	}
	if r.Roadmap != nil {
		fmt.Fprintf(w, "roadmap: %d/%d tasks complete (%d%%)\n", r.Roadmap.Done, r.Roadmap.Total, r.Roadmap.Percent())
	}
	for _, doc := range r.Created {
		fmt.Fprintf(w, "created %s\n", doc)
	}
}

// stopCheckCmd creates the stop-check command. Exit 0 allows, 2 blocks.
func stopCheckCmd(env *ops.Env, dir string) *cli.Command {
	return &cli.Command{
		Name:  "stop-check",
		Usage: "Check for abandoned work before a session ends (exit 0 allow, 2 block)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "hook-active", Usage: "A previous stop was already blocked; never block again"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			res, err := ops.StopCheck(c.Context, env, ops.StopInput{Dir: dir, HookActive: c.Bool("hook-active")})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				if err := outputJSON(c.App.Writer, res); err != nil {
					return err
				}
			}
			if res.Reason == stophook.ReasonNotProject {
				return outputError(errors.NewNotApplicable(stophook.ReasonNotProject + ", exiting"))
			}
			if res.Block {
				return cli.Exit(res.Message, errors.ExitAttention)
			}
			return nil
		},
	}
}

// hookCmd creates the hook command: the adapter the host runtime invokes
// with event JSON on stdin. Malformed input and internal failures allow.
func hookCmd(env *ops.Env, dir string) *cli.Command {
	return &cli.Command{
		Name:      "hook",
		Usage:     "Handle a host hook event read from stdin (exit 0 allow, 2 block)",
		ArgsUsage: "<" + strings.Join(hook.Events, "|") + ">",
		Action: func(c *cli.Context) error {
			event := c.Args().First()

			in, err := hook.ParseInput(c.App.Reader)
			if err != nil {
				env.Logger.Warn("malformed hook input, allowing", "event", event, "error", err)
				return nil
			}

			out, err := ops.Hook(c.Context, env, event, in, dir)
			if err != nil {
				if errors.Is(err, errors.ErrInvalidRequest) {
					return outputError(err)
				}
				env.Logger.Warn("hook failed, allowing", "event", event, "error", err)
				return nil
			}

			if out.Stdout != "" {
				fmt.Fprintln(c.App.Writer, out.Stdout)
			}
			if out.ExitCode != errors.ExitOK {
				return cli.Exit(out.Stderr, out.ExitCode)
			}
			if out.Stderr != "" {
				fmt.Fprintln(c.App.ErrWriter, out.Stderr)
			}
			return nil
		},
	}
}

// decisionsCmd creates the decisions command group.
func decisionsCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "decisions",
		Usage: "Inspect the gate decision log",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded decisions, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "verdict", Usage: "Filter by verdict: allow|block"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum results"},
					&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Skip first N results"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListDecisions(env, ops.DecisionsListInput{
						Verdict: c.String("verdict"),
						Limit:   c.Int("limit"),
						Offset:  c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:  "purge",
				Usage: "Permanently delete old decisions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "older-than", Value: "30d", Usage: "Delete decisions older than N days (e.g., 7d)"},
				},
				Action: func(c *cli.Context) error {
					days, err := parseDuration(c.String("older-than"))
					if err != nil {
						return outputError(errors.NewInvalidRequest(err.Error()))
					}
					output, err := ops.PurgeDecisions(env, ops.PurgeInput{OlderThanDays: days})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
		},
	}
}

// Helper functions

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI, keeping the command's exit code.
func outputError(err error) error {
	var aErr *errors.AgentError
	if stderrors.As(err, &aErr) {
		if aErr.Code == errors.ErrBlocked || aErr.Code == errors.ErrNotApplicable {
			return cli.Exit(aErr.Message, aErr.ExitCode)
		}
		return cli.Exit(fmt.Sprintf("[%s] %s", aErr.Code, aErr.Message), aErr.ExitCode)
	}
	return cli.Exit(err.Error(), errors.ExitFailure)
}

// joinArgs returns the positional arguments as one string.
func joinArgs(c *cli.Context) string {
	return strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
