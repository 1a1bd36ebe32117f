package archive

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/JonMunkholm/comexcl/internal/logging"
)

// LookPath resolves executables; replaced in tests.
var LookPath = exec.LookPath

// Command extracts by running an external tool. The tool must populate
// outDir and exit non-zero on failure.
type Command struct {
	name       string
	candidates []string
	args       func(archivePath, outDir string) []string
}

// NewCommand creates a command capability. The first candidate binary found
// on PATH is used.
func NewCommand(name string, candidates []string, args func(archivePath, outDir string) []string) *Command {
	return &Command{name: name, candidates: candidates, args: args}
}

// Unar runs `unar -force-overwrite -o OUT ARCHIVE`.
func Unar() *Command {
	return NewCommand("unar", []string{"unar"}, func(a, out string) []string {
		return []string{"-force-overwrite", "-o", out, a}
	})
}

// Unrar runs `unrar x -o+ ARCHIVE OUT/`.
func Unrar() *Command {
	return NewCommand("unrar", []string{"unrar", "UnRAR.exe"}, func(a, out string) []string {
		return []string{"x", "-o+", a, strings.TrimRight(out, `/\`) + "/"}
	})
}

// SevenZip runs `7z x -y -oOUT ARCHIVE`.
func SevenZip() *Command {
	return NewCommand("7z", []string{"7z", "7za"}, func(a, out string) []string {
		return []string{"x", "-y", "-o" + out, a}
	})
}

// Name implements Capability.
func (c *Command) Name() string { return c.name }

// Available implements Capability.
func (c *Command) Available() bool {
	_, ok := c.binary()
	return ok
}

func (c *Command) binary() (string, bool) {
	for _, cand := range c.candidates {
		if p, err := LookPath(cand); err == nil {
			return p, true
		}
	}
	return "", false
}

// Extract implements Capability.
func (c *Command) Extract(ctx context.Context, archivePath, outDir string) error {
	bin, ok := c.binary()
	if !ok {
		return fmt.Errorf("%s not found on PATH", c.name)
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, c.args(archivePath, outDir)...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if output.Len() > 0 {
		logging.FromContext(ctx).Debug("extractor output", "extractor", c.name, "output", output.String())
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", c.name, err)
	}
	return nil
}
