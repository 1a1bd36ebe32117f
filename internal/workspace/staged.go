package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Kind classifies a staged file by extension.
type Kind int

const (
	KindUnknown Kind = iota
	KindArchive
	KindDelimited
	KindSpreadsheet
)

var kindByExt = map[string]Kind{
	".rar":  KindArchive,
	".txt":  KindDelimited,
	".csv":  KindDelimited,
	".xlsx": KindSpreadsheet,
	".xls":  KindSpreadsheet,
}

// KindOf returns the kind for a file name.
func KindOf(name string) Kind {
	return kindByExt[strings.ToLower(filepath.Ext(name))]
}

// IsTabular reports whether k holds rows the ingestor can read.
func (k Kind) IsTabular() bool {
	return k == KindDelimited || k == KindSpreadsheet
}

// StagedFile is a downloaded or extracted artifact in the staging tree.
type StagedFile struct {
	Path string
	Size int64
	Ext  string // lower-cased, with the leading dot
}

// Kind returns the kind of the staged file.
func (f StagedFile) Kind() Kind {
	return kindByExt[f.Ext]
}

// Name returns the base file name.
func (f StagedFile) Name() string {
	return filepath.Base(f.Path)
}

// Stat builds a StagedFile for path.
func Stat(path string) (StagedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return StagedFile{}, fmt.Errorf("stat staged file: %w", err)
	}
	return StagedFile{
		Path: path,
		Size: info.Size(),
		Ext:  strings.ToLower(filepath.Ext(path)),
	}, nil
}

// Discover lists regular files under root whose kind is tabular, in lexical
// path order.
func Discover(root string) ([]StagedFile, error) {
	var out []StagedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || !KindOf(d.Name()).IsTabular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, StagedFile{
			Path: path,
			Size: info.Size(),
			Ext:  strings.ToLower(filepath.Ext(path)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover data files in %s: %w", root, err)
	}
	return out, nil
}

// SortLargestFirst orders files by descending size; equal sizes keep their
// relative order.
func SortLargestFirst(files []StagedFile) {
	slices.SortStableFunc(files, func(a, b StagedFile) int {
		switch {
		case a.Size > b.Size:
			return -1
		case a.Size < b.Size:
			return 1
		default:
			return 0
		}
	})
}
