package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JonMunkholm/comexcl/internal/archive"
	"github.com/JonMunkholm/comexcl/internal/catalog"
	"github.com/JonMunkholm/comexcl/internal/download"
	"github.com/JonMunkholm/comexcl/internal/tabular"
	"github.com/JonMunkholm/comexcl/internal/workspace"
)

type fakeCatalog struct {
	resources []catalog.Resource
	err       error
}

func (f *fakeCatalog) Resources(ctx context.Context, year int) ([]catalog.Resource, error) {
	return f.resources, f.err
}

// fakeDownloader serves file bodies keyed by location.
type fakeDownloader struct {
	bodies map[string]string
	calls  []string
}

func (f *fakeDownloader) Download(ctx context.Context, location, dst string) (int64, error) {
	f.calls = append(f.calls, location)
	body, ok := f.bodies[location]
	if !ok {
		return 0, fmt.Errorf("%w: %s: status 404", download.ErrDownload, location)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	return int64(len(body)), os.WriteFile(dst, []byte(body), 0o644)
}

// fakeExtractor writes files into outDir and records the entry it was given.
type fakeExtractor struct {
	files   map[string]string
	entries []string
	err     error
}

func (f *fakeExtractor) Extract(ctx context.Context, entry workspace.StagedFile, outDir string) ([]workspace.StagedFile, error) {
	f.entries = append(f.entries, entry.Name())
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	for name, body := range f.files {
		if err := os.WriteFile(filepath.Join(outDir, name), []byte(body), 0o644); err != nil {
			return nil, err
		}
	}
	return workspace.Discover(outDir)
}

type fakeWriter struct {
	added     int
	flushed   bool
	discarded bool
	flushErr  error
	onAdd     func(n int)
}

func (f *fakeWriter) Add(ctx context.Context, rec tabular.Record) error {
	f.added++
	if f.onAdd != nil {
		f.onAdd(f.added)
	}
	return nil
}

func (f *fakeWriter) Flush(ctx context.Context) error {
	f.flushed = true
	return f.flushErr
}

func (f *fakeWriter) Discard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.discarded = true
	return nil
}

type envelope struct {
	Descricao  string            `json:"descricao"`
	Total      int               `json:"total"`
	Resultados []json.RawMessage `json:"resultados"`
}

// narrowRows renders n semicolon rows two cells short of the default schema.
func narrowRows(n int) string {
	width := tabular.DefaultSchema().Width() - 2
	var sb strings.Builder
	for r := 0; r < n; r++ {
		cells := make([]string, width)
		for c := range cells {
			cells[c] = fmt.Sprintf("r%dc%d", r, c)
		}
		sb.WriteString(strings.Join(cells, ";"))
		sb.WriteString("\n")
	}
	return sb.String()
}

type fixture struct {
	workdir string
	cat     *fakeCatalog
	dl      *fakeDownloader
	ex      *fakeExtractor
	svc     *Service
}

func newFixture(t *testing.T, resources []catalog.Resource, bodies map[string]string) *fixture {
	t.Helper()
	f := &fixture{
		workdir: filepath.Join(t.TempDir(), "data_work"),
		cat:     &fakeCatalog{resources: resources},
		dl:      &fakeDownloader{bodies: bodies},
		ex:      &fakeExtractor{},
	}
	f.svc = NewService(f.cat, f.dl, f.ex, tabular.DefaultSchema(), catalog.DefaultMonthTokens(), Options{
		WorkDir: f.workdir,
	})
	return f
}

func decodeEnvelope(t *testing.T, out []byte) envelope {
	t.Helper()
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(out, &keys); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if len(keys) != 3 {
		t.Errorf("envelope has %d keys, want 3", len(keys))
	}
	var env envelope
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatal(err)
	}
	return env
}

func assertRemoved(t *testing.T, dir string) {
	t.Helper()
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("workspace %s still exists (err=%v)", dir, err)
	}
}

func TestRun_LimitedNarrowFile(t *testing.T) {
	f := newFixture(t,
		[]catalog.Resource{{Name: "Importaciones marzo 2025", URL: "https://files/imp_marzo_2025.txt"}},
		map[string]string{"https://files/imp_marzo_2025.txt": narrowRows(3)},
	)

	var out bytes.Buffer
	res, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3, Limit: 2, EnableLimit: true}, &out)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	env := decodeEnvelope(t, out.Bytes())
	if env.Total != 2 || len(env.Resultados) != 2 || res.Total != 2 {
		t.Errorf("total = %d, resultados = %d, result = %d; want 2", env.Total, len(env.Resultados), res.Total)
	}
	if !strings.HasSuffix(env.Descricao, "(limitado a 2)") {
		t.Errorf("descricao = %q", env.Descricao)
	}

	var rec map[string]any
	if err := json.Unmarshal(env.Resultados[0], &rec); err != nil {
		t.Fatal(err)
	}
	if want := tabular.DefaultSchema().Width() + 3; len(rec) != want {
		t.Errorf("record has %d keys, want %d", len(rec), want)
	}
	if rec["VAL4"] != nil || rec["SIGVAL4"] != nil {
		t.Error("missing trailing columns must be null")
	}
	if rec["country_code"] != "CL" || rec["ano_ref"] != float64(2025) || rec["mes_ref"] != float64(3) {
		t.Errorf("provenance = %v %v %v", rec["country_code"], rec["ano_ref"], rec["mes_ref"])
	}

	assertRemoved(t, f.workdir)
}

func TestRun_LimitInertWithoutEnable(t *testing.T) {
	f := newFixture(t,
		[]catalog.Resource{{Name: "marzo 2025", URL: "https://files/a.csv"}},
		map[string]string{"https://files/a.csv": narrowRows(5)},
	)

	var out bytes.Buffer
	if _, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3, Limit: 2}, &out); err != nil {
		t.Fatal(err)
	}
	env := decodeEnvelope(t, out.Bytes())
	if env.Total != 5 || len(env.Resultados) != 5 {
		t.Errorf("total = %d, want 5", env.Total)
	}
	if strings.Contains(env.Descricao, "limitado") {
		t.Errorf("descricao mentions a limit: %q", env.Descricao)
	}
	if env.Descricao != "Foram encontradas 5 importações no período de 01/03/2025 a 31/03/2025" {
		t.Errorf("descricao = %q", env.Descricao)
	}
}

func TestRun_NoMatchingResource(t *testing.T) {
	f := newFixture(t,
		[]catalog.Resource{
			{Name: "Importaciones enero 2025", URL: "https://files/enero.rar"},
			{Name: "Importaciones marzo 2024", URL: "https://files/marzo_2024.rar"},
		},
		nil,
	)

	var out bytes.Buffer
	_, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3}, &out)
	if !errors.Is(err, catalog.ErrNoMatchingResource) {
		t.Fatalf("expected ErrNoMatchingResource, got %v", err)
	}
	if len(f.dl.calls) != 0 {
		t.Errorf("downloads attempted: %v", f.dl.calls)
	}
	if out.Len() != 0 {
		t.Errorf("output written on failure: %q", out.String())
	}
	if got := MapError(err).Code; got != "CAT001" {
		t.Errorf("MapError code = %s", got)
	}
	assertRemoved(t, f.workdir)
}

func TestRun_ArchiveSetUsesPartOne(t *testing.T) {
	f := newFixture(t,
		[]catalog.Resource{
			{Name: "marzo 2025 parte 2", URL: "https://files/imp_marzo_2025.part02.rar"},
			{Name: "marzo 2025 parte 1", URL: "https://files/imp_marzo_2025.part01.rar"},
		},
		map[string]string{
			"https://files/imp_marzo_2025.part01.rar": "Rar!1",
			"https://files/imp_marzo_2025.part02.rar": "Rar!2",
		},
	)
	f.ex.files = map[string]string{"data.txt": narrowRows(4), "readme.pdf": "x"}

	var out bytes.Buffer
	res, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3}, &out)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.ex.entries) != 1 || f.ex.entries[0] != "imp_marzo_2025.part01.rar" {
		t.Errorf("extract entries = %v", f.ex.entries)
	}
	if f.dl.calls[0] != "https://files/imp_marzo_2025.part01.rar" {
		t.Errorf("parts not downloaded in order: %v", f.dl.calls)
	}
	if res.Total != 4 || len(res.Files) != 1 {
		t.Errorf("total = %d files = %d", res.Total, len(res.Files))
	}
}

func TestRun_NoDataFound(t *testing.T) {
	f := newFixture(t,
		[]catalog.Resource{{Name: "marzo 2025", URL: "https://files/notes.pdf"}},
		map[string]string{"https://files/notes.pdf": "%PDF"},
	)

	var out bytes.Buffer
	_, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3}, &out)
	if !errors.Is(err, ErrNoDataFound) {
		t.Fatalf("expected ErrNoDataFound, got %v", err)
	}
	assertRemoved(t, f.workdir)
}

func TestRun_DownloadFailure(t *testing.T) {
	f := newFixture(t,
		[]catalog.Resource{{Name: "marzo 2025", URL: "https://files/missing.csv"}},
		map[string]string{},
	)

	var out bytes.Buffer
	_, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3}, &out)
	if !errors.Is(err, download.ErrDownload) {
		t.Fatalf("expected ErrDownload, got %v", err)
	}
	if out.Len() != 0 {
		t.Error("no output expected on failure")
	}
	assertRemoved(t, f.workdir)
}

func TestRun_ExtractionFailure(t *testing.T) {
	f := newFixture(t,
		[]catalog.Resource{{Name: "marzo 2025", URL: "https://files/x.rar"}},
		map[string]string{"https://files/x.rar": "Rar!"},
	)
	f.ex.err = fmt.Errorf("%w: x.rar: all failed", archive.ErrExtraction)

	_, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3}, &bytes.Buffer{})
	if !errors.Is(err, archive.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	assertRemoved(t, f.workdir)
}

func TestRun_LargestFileFirst(t *testing.T) {
	small := "s1;x\n"
	big := "b1;x\nb2;x\nb3;x\n"
	f := newFixture(t,
		[]catalog.Resource{
			{Name: "marzo 2025 a", URL: "https://files/small.csv"},
			{Name: "marzo 2025 b", URL: "https://files/big.csv"},
		},
		map[string]string{"https://files/small.csv": small, "https://files/big.csv": big},
	)

	var out bytes.Buffer
	res, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if res.Files[0].Name() != "big.csv" {
		t.Errorf("first file = %s, want big.csv", res.Files[0].Name())
	}

	env := decodeEnvelope(t, out.Bytes())
	var first map[string]any
	_ = json.Unmarshal(env.Resultados[0], &first)
	if first["NUMENCRIPTADO"] != "b1" {
		t.Errorf("first record = %v, want b1", first["NUMENCRIPTADO"])
	}
}

func TestRun_Idempotent(t *testing.T) {
	bodies := map[string]string{"https://files/a.csv": narrowRows(6)}
	resources := []catalog.Resource{{Name: "marzo 2025", URL: "https://files/a.csv"}}

	var first, second bytes.Buffer
	f := newFixture(t, resources, bodies)
	if _, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3}, &first); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3}, &second); err != nil {
		t.Fatal(err)
	}
	if first.String() != second.String() {
		t.Error("repeated runs produced different output")
	}
}

func TestRun_Persist(t *testing.T) {
	f := newFixture(t,
		[]catalog.Resource{{Name: "marzo 2025", URL: "https://files/a.csv"}},
		map[string]string{"https://files/a.csv": narrowRows(5)},
	)

	var (
		writer *fakeWriter
		gotID  uuid.UUID
	)
	f.svc.WithWriters(func(runID uuid.UUID) RecordWriter {
		gotID = runID
		writer = &fakeWriter{}
		return writer
	})

	res, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3, Limit: 3, EnableLimit: true, Persist: true}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if writer.added != 3 || !writer.flushed {
		t.Errorf("writer added=%d flushed=%v, want 3 and true", writer.added, writer.flushed)
	}
	if gotID != res.RunID {
		t.Errorf("writer run id %s != result run id %s", gotID, res.RunID)
	}
	if writer.discarded {
		t.Error("successful run must keep its records")
	}
}

func TestRun_PersistCancelledMidRunDiscards(t *testing.T) {
	f := newFixture(t,
		[]catalog.Resource{{Name: "marzo 2025", URL: "https://files/a.csv"}},
		map[string]string{"https://files/a.csv": narrowRows(50)},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := &fakeWriter{onAdd: func(n int) {
		if n == 4 {
			cancel()
		}
	}}
	f.svc.WithWriters(func(uuid.UUID) RecordWriter { return writer })

	var out bytes.Buffer
	_, err := f.svc.Run(ctx, Request{Year: 2025, Month: 3, Persist: true}, &out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !writer.discarded {
		t.Error("records of a cancelled run must be discarded")
	}
	if writer.added != 4 {
		t.Errorf("writer added %d records after cancellation, want 4", writer.added)
	}
	if out.Len() != 0 {
		t.Errorf("stdout = %q, want empty", out.String())
	}
	assertRemoved(t, filepath.Join(f.workdir, "2025-03"))
}

func TestRun_PersistFlushFailureDiscards(t *testing.T) {
	f := newFixture(t,
		[]catalog.Resource{{Name: "marzo 2025", URL: "https://files/a.csv"}},
		map[string]string{"https://files/a.csv": narrowRows(5)},
	)
	writer := &fakeWriter{flushErr: errors.New("copy failed")}
	f.svc.WithWriters(func(uuid.UUID) RecordWriter { return writer })

	_, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3, Persist: true}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected flush error")
	}
	if !writer.discarded {
		t.Error("records of a failed run must be discarded")
	}
}

func TestRun_PersistWithoutDatabase(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3, Persist: true}, &bytes.Buffer{})
	if !errors.Is(err, ErrPersistenceDisabled) {
		t.Fatalf("expected ErrPersistenceDisabled, got %v", err)
	}
}

func TestRun_InvalidMonth(t *testing.T) {
	f := newFixture(t, nil, nil)
	for _, m := range []int{0, 13} {
		if _, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: m}, &bytes.Buffer{}); !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("month %d: expected ErrInvalidPeriod, got %v", m, err)
		}
	}
}

func TestRun_IsolatedWorkspacesCleanUp(t *testing.T) {
	f := newFixture(t,
		[]catalog.Resource{{Name: "marzo 2025", URL: "https://files/a.csv"}},
		map[string]string{"https://files/a.csv": "x;y\n"},
	)
	f.svc.opts.IsolateRuns = true

	if _, err := f.svc.Run(context.Background(), Request{Year: 2025, Month: 3}, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	assertRemoved(t, f.workdir)
}

func TestRequest_EffectiveLimit(t *testing.T) {
	tests := []struct {
		req  Request
		want int
	}{
		{Request{Limit: 5, EnableLimit: true}, 5},
		{Request{Limit: 5}, 0},
		{Request{Limit: 0, EnableLimit: true}, 0},
		{Request{Limit: -1, EnableLimit: true}, 0},
	}
	for _, tt := range tests {
		if got := tt.req.EffectiveLimit(); got != tt.want {
			t.Errorf("%+v.EffectiveLimit() = %d, want %d", tt.req, got, tt.want)
		}
	}
}
