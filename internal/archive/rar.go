package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nwaples/rardecode/v2"
)

// errUnsafePath marks archive entries that would land outside outDir.
var errUnsafePath = errors.New("archive entry escapes output directory")

type inProcess struct{}

// InProcess extracts RAR sets with a pure Go decoder. Following volumes are
// opened next to the entry part automatically.
func InProcess() Capability { return inProcess{} }

func (inProcess) Name() string    { return "rardecode" }
func (inProcess) Available() bool { return true }

func (inProcess) Extract(ctx context.Context, archivePath, outDir string) error {
	rc, err := rardecode.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open rar: %w", err)
	}
	defer rc.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := rc.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read rar entry: %w", err)
		}

		target, err := safeJoin(outDir, hdr.Name)
		if err != nil {
			return err
		}

		if hdr.IsDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", hdr.Name, err)
			}
			continue
		}

		if err := writeEntry(target, rc); err != nil {
			return fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
	}
}

func writeEntry(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// safeJoin resolves an archive entry name below root.
func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.ReplaceAll(name, `\`, "/")))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", errUnsafePath, name)
	}
	return filepath.Join(root, clean), nil
}
