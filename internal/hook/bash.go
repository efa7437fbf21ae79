package hook

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// CommandKind classifies a shell command for the pretool gate.
type CommandKind string

const (
	CommandGit      CommandKind = "git"
	CommandReadOnly CommandKind = "read-only"
	CommandWrite    CommandKind = "write"
	CommandOther    CommandKind = "other"
)

var readOnlyCommands = map[string]bool{
	"cd": true, "ls": true, "cat": true, "head": true, "tail": true,
	"grep": true, "rg": true, "find": true, "ps": true, "netstat": true,
	"lsof": true, "echo": true, "env": true, "which": true, "pwd": true,
	"wc": true, "sort": true, "uniq": true, "awk": true, "sed": true,
	"diff": true, "tree": true, "stat": true, "file": true, "jq": true,
}

// writeCommands maps commands that change the tree to whether their
// arguments name the files they touch.
var writeCommands = map[string]bool{
	"cp": true, "mv": true, "rm": true, "rmdir": true, "mkdir": true,
	"touch": true, "chmod": true, "chown": true, "ln": true, "tee": true,
	"patch": true, "truncate": true,
	"npm": false, "yarn": false, "pnpm": false, "pip": false, "uv": false,
	"docker": false,
}

var (
	segmentSep       = regexp.MustCompile(`&&|\|\||[;|\n]`)
	harmlessRedirect = regexp.MustCompile(`\d*>&\d+|&?\d*>>?\s*/dev/null`)
	redirectTarget   = regexp.MustCompile(`\d*>>?\s*([^\s;&|<>]+)`)
	inPlaceEdit      = regexp.MustCompile(`\b(sed|awk|perl)\b.*\s-(-in-place|[a-zA-Z]*i)`)
	prCommand        = regexp.MustCompile(`^\s*gh\s+pr\s+(create|merge)\b`)
)

// ClassifyCommand reports what a shell command does. Compound commands are
// split on && || ; and pipes; any writing part makes the whole a write.
// A command made only of git and gh calls is CommandGit.
func ClassifyCommand(cmd string) CommandKind {
	segs := segments(cmd)
	if len(segs) == 0 {
		return CommandOther
	}
	kind := CommandGit
	for _, seg := range segs {
		switch segmentKind(seg) {
		case CommandWrite:
			return CommandWrite
		case CommandOther:
			kind = CommandOther
		case CommandReadOnly:
			if kind == CommandGit {
				kind = CommandReadOnly
			}
		}
	}
	return kind
}

// IsPRCommand reports whether cmd opens or merges a pull request.
func IsPRCommand(cmd string) bool {
	return prCommand.MatchString(cmd)
}

// IsDocsOnlyCommand reports whether every file a writing command touches is
// documentation. Commands whose targets cannot be told apart are not.
func IsDocsOnlyCommand(cmd string) bool {
	var targets []string
	for _, seg := range segments(cmd) {
		if segmentKind(seg) != CommandWrite {
			continue
		}
		t, ok := writeTargets(seg)
		if !ok {
			return false
		}
		targets = append(targets, t...)
	}
	if len(targets) == 0 {
		return false
	}
	for _, t := range targets {
		if !IsDocsPath(t) {
			return false
		}
	}
	return true
}

// IsDocsPath reports whether a repo-relative path is documentation:
// markdown anywhere, anything under docs/, or CLAUDE.md.
func IsDocsPath(p string) bool {
	p = strings.ToLower(filepath.ToSlash(strings.Trim(p, `"'`)))
	p = strings.TrimPrefix(p, "./")
	if p == "" {
		return false
	}
	return strings.HasSuffix(p, ".md") ||
		strings.HasSuffix(p, ".mdc") ||
		strings.HasPrefix(p, "docs/") ||
		path.Base(p) == "claude.md"
}

func segments(cmd string) []string {
	var out []string
	for _, s := range segmentSep.Split(cmd, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func segmentKind(seg string) CommandKind {
	stripped := harmlessRedirect.ReplaceAllString(seg, "")
	if strings.Contains(stripped, ">") || inPlaceEdit.MatchString(seg) {
		return CommandWrite
	}
	name, args := splitCommand(strings.Fields(stripped))
	switch {
	case name == "git" || name == "gh":
		return CommandGit
	case name == "find" && containsAny(args, "-delete", "-exec", "-execdir"):
		return CommandWrite
	case isWriteCommand(name):
		return CommandWrite
	case readOnlyCommands[name]:
		return CommandReadOnly
	}
	return CommandOther
}

func isWriteCommand(name string) bool {
	_, ok := writeCommands[name]
	return ok
}

// splitCommand skips leading VAR=value assignments and sudo.
func splitCommand(fields []string) (string, []string) {
	for len(fields) > 0 && (fields[0] == "sudo" || (strings.Contains(fields[0], "=") && !strings.HasPrefix(fields[0], "-"))) {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return "", nil
	}
	return path.Base(fields[0]), fields[1:]
}

// writeTargets lists the files a writing segment touches.
func writeTargets(seg string) ([]string, bool) {
	stripped := harmlessRedirect.ReplaceAllString(seg, "")

	var targets []string
	for _, m := range redirectTarget.FindAllStringSubmatch(stripped, -1) {
		targets = append(targets, m[1])
	}
	name, args := splitCommand(strings.Fields(redirectTarget.ReplaceAllString(stripped, "")))
	paths := positional(args)

	switch {
	case inPlaceEdit.MatchString(seg):
		if len(paths) == 0 {
			return nil, false
		}
		targets = append(targets, paths[len(paths)-1])
	case isWriteCommand(name):
		if !writeCommands[name] || len(paths) == 0 {
			return nil, false
		}
		targets = append(targets, paths...)
	case len(targets) == 0:
		return nil, false
	}
	return targets, true
}

func positional(args []string) []string {
	var out []string
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			out = append(out, a)
		}
	}
	return out
}

func containsAny(args []string, want ...string) bool {
	for _, a := range args {
		for _, w := range want {
			if a == w {
				return true
			}
		}
	}
	return false
}
