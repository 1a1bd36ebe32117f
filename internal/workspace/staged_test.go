package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"a.rar", KindArchive},
		{"A.PART01.RAR", KindArchive},
		{"data.TXT", KindDelimited},
		{"data.csv", KindDelimited},
		{"book.xlsx", KindSpreadsheet},
		{"book.xls", KindSpreadsheet},
		{"readme.pdf", KindUnknown},
		{"noext", KindUnknown},
	}

	for _, tt := range tests {
		if got := KindOf(tt.name); got != tt.want {
			t.Errorf("KindOf(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"top.txt":             "1",
		"nested/deep/b.CSV":   "22",
		"nested/c.xlsx":       "333",
		"nested/ignored.pdf":  "4444",
		"nested/deep/x.rar":   "55555",
	}
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("found %d files, want 3: %+v", len(got), got)
	}
	for _, f := range got {
		if !f.Kind().IsTabular() {
			t.Errorf("non-tabular file discovered: %s", f.Path)
		}
		if f.Ext != strings.ToLower(f.Ext) {
			t.Errorf("extension not lower-cased: %q", f.Ext)
		}
	}
}

func TestSortLargestFirst(t *testing.T) {
	files := []StagedFile{
		{Path: "small", Size: 1},
		{Path: "big", Size: 100},
		{Path: "mid-a", Size: 10},
		{Path: "mid-b", Size: 10},
	}
	SortLargestFirst(files)

	want := []string{"big", "mid-a", "mid-b", "small"}
	for i, w := range want {
		if files[i].Path != w {
			t.Errorf("files[%d] = %q, want %q", i, files[i].Path, w)
		}
	}
}
