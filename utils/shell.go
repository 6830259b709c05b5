package utils

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// UnknownVersion is reported when a package version cannot be read.
const UnknownVersion = "0.0.0"

// Exec runs cmd through /bin/sh and returns stdout as lines without their
// trailing newlines. Pipelines and redirections are allowed. A non-zero exit
// status is not an error as long as the command could be started.
func Exec(ctx context.Context, cmd string) ([]string, error) {
	return capture(exec.CommandContext(ctx, "sh", "-c", cmd))
}

// Run splits cmdline with shell quoting rules and runs it without a shell.
func Run(ctx context.Context, cmdline string) ([]string, error) {
	argv, err := shlex.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", cmdline, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return capture(exec.CommandContext(ctx, argv[0], argv[1:]...))
}

func capture(c *exec.Cmd) ([]string, error) {
	var stdout bytes.Buffer
	c.Stdout = &stdout
	err := c.Run()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("exec %s: %w", c.Path, err)
	}

	lines := []string{}
	sc := bufio.NewScanner(&stdout)
	sc.Buffer(make([]byte, 0, 1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, strings.TrimSuffix(sc.Text(), "\r"))
	}
	return lines, nil
}

// DpkgVersion reads the installed version of pkg from dpkg.
func DpkgVersion(ctx context.Context, pkg string) string {
	return dpkgVersion(ctx, pkg, Run)
}

func dpkgVersion(ctx context.Context, pkg string, run func(context.Context, string) ([]string, error)) string {
	if strings.TrimSpace(pkg) == "" {
		return UnknownVersion
	}
	lines, err := run(ctx, "dpkg -s "+shellQuote(pkg))
	if err != nil {
		return UnknownVersion
	}
	return parseDpkgVersion(lines)
}

func parseDpkgVersion(lines []string) string {
	for _, line := range lines {
		if v, ok := strings.CutPrefix(line, "Version:"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return UnknownVersion
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
