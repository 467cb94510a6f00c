package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/qobs-build/forge/internal/msg"
)

// Command is an external build invocation
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is added to the inherited environment, KEY=value
	Env []string
}

func (c Command) String() string {
	parts := make([]string, 0, len(c.Env)+len(c.Args)+1)
	parts = append(parts, c.Env...)
	parts = append(parts, c.Name)
	for _, arg := range c.Args {
		if arg == "" || strings.ContainsAny(arg, " \t'\"") {
			arg = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// Runner runs external build commands. The command's output is not inspected.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands on the host, streaming their output indented
type ExecRunner struct {
	Stdout, Stderr io.Writer
}

func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	stdout, stderr := r.Stdout, r.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdout = &msg.IndentWriter{Indent: "    ", W: stdout}
	cmd.Stderr = &msg.IndentWriter{Indent: "    ", W: stderr}

	fmt.Fprintf(stdout, "RUN %s\n", c)
	return cmd.Run()
}
