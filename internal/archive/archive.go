// Package archive extracts (multi-part) RAR containers staged by a run.
//
// Extraction walks an ordered chain of capabilities. The first capability
// that is available on the host and completes without error wins; the chain
// fails only when every capability is unavailable or fails.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/JonMunkholm/comexcl/internal/catalog"
	"github.com/JonMunkholm/comexcl/internal/logging"
	"github.com/JonMunkholm/comexcl/internal/workspace"
)

// ErrExtraction is returned when no capability could extract an archive.
var ErrExtraction = errors.New("archive extraction failed")

var partSegment = regexp.MustCompile(`(?i)\.part\d+(\.rar)$`)

// Capability is one way of extracting an archive into a directory.
type Capability interface {
	Name() string
	Available() bool
	Extract(ctx context.Context, archivePath, outDir string) error
}

// Part is a staged file belonging to a (possibly single-volume) RAR set.
type Part struct {
	File  workspace.StagedFile
	Index int
}

// NewPart parses the part index from the staged file name.
func NewPart(f workspace.StagedFile) Part {
	return Part{File: f, Index: catalog.PartIndex(f.Name())}
}

// SetName is the volume-set name: the file name without its .partNN segment.
func (p Part) SetName() string {
	return strings.ToLower(partSegment.ReplaceAllString(p.File.Name(), "$1"))
}

// EntryPoints returns one extraction entry part per volume set, in the
// order the sets first appear. The entry is the part numbered 1 when
// present, otherwise the lowest-indexed part.
func EntryPoints(parts []Part) []Part {
	bySet := make(map[string]Part)
	var order []string
	for _, p := range parts {
		key := p.SetName()
		cur, seen := bySet[key]
		if !seen {
			order = append(order, key)
			bySet[key] = p
			continue
		}
		if cur.Index == 1 {
			continue
		}
		if p.Index == 1 || p.Index < cur.Index {
			bySet[key] = p
		}
	}

	out := make([]Part, 0, len(order))
	for _, key := range order {
		out = append(out, bySet[key])
	}
	return out
}

// Extractor runs the capability chain.
type Extractor struct {
	chain []Capability
}

// NewExtractor creates an extractor trying caps in order.
func NewExtractor(caps ...Capability) *Extractor {
	return &Extractor{chain: slices.Clone(caps)}
}

// DefaultChain is unar, unrar, the in-process decoder, then 7-Zip.
func DefaultChain() []Capability {
	return []Capability{
		Unar(),
		Unrar(),
		InProcess(),
		SevenZip(),
	}
}

// Extract unpacks entry into outDir and returns the tabular files found there.
func (e *Extractor) Extract(ctx context.Context, entry workspace.StagedFile, outDir string) ([]workspace.StagedFile, error) {
	logger := logging.FromContext(ctx)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create extraction dir: %w", err)
	}

	var attempts *multierror.Error
	for _, c := range e.chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !c.Available() {
			logger.Debug("extractor unavailable", "extractor", c.Name())
			attempts = multierror.Append(attempts, fmt.Errorf("%s: not available", c.Name()))
			continue
		}

		// A failed attempt may leave partial output behind.
		if err := resetDir(outDir); err != nil {
			return nil, err
		}

		logger.Info("extracting", "archive", entry.Name(), "extractor", c.Name())
		if err := c.Extract(ctx, entry.Path, outDir); err != nil {
			logger.Warn("extractor failed", "extractor", c.Name(), "error", err)
			attempts = multierror.Append(attempts, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}

		return workspace.Discover(outDir)
	}

	if attempts == nil {
		return nil, fmt.Errorf("%w: %s: no extractors configured", ErrExtraction, entry.Name())
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrExtraction, entry.Name(), attempts.ErrorOrNil())
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("reset extraction dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create extraction dir: %w", err)
	}
	return nil
}
