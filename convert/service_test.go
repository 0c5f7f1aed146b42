package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"testing"
)

// zipArchiveWriter is a minimal archive writer for service tests so the
// core package does not depend on its own adapters.
type zipArchiveWriter struct {
	zw *zip.Writer
}

func (w *zipArchiveWriter) Add(name string, src io.Reader) error {
	entry, err := w.zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, src)
	return err
}

func (w *zipArchiveWriter) Close() error { return w.zw.Close() }

func zipFactory() ArchiveFactory {
	return func(w io.Writer) ArchiveWriter {
		return &zipArchiveWriter{zw: zip.NewWriter(w)}
	}
}

func newTestService(t *testing.T, engine Engine) (*Service, string) {
	t.Helper()
	workDir := t.TempDir()
	service := NewService(ServiceConfig{
		Engine:      engine,
		NewArchive:  zipFactory(),
		WorkDir:     workDir,
		ValidatePDF: noValidate,
		IDGenerator: func() string { return "req-1" },
	})
	return service, workDir
}

func archiveEntries(t *testing.T, payload []byte) []string {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	var names []string
	for _, f := range reader.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func assertWorkDirEmpty(t *testing.T, workDir string) {
	t.Helper()
	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		var names []string
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Fatalf("expected no staging leftovers, found %v", names)
	}
}

func TestConvert_RejectsEmptyRequest(t *testing.T) {
	service, _ := newTestService(t, &fakeEngine{})

	var out bytes.Buffer
	_, err := service.Convert(context.Background(), ConversionRequest{Output: &out})
	if err == nil {
		t.Fatal("expected request-level error")
	}
	if KindFromError(err) != KindValidation {
		t.Fatalf("expected validation kind, got %s", KindFromError(err))
	}
	if out.Len() != 0 {
		t.Fatal("no archive bytes should be produced for an empty request")
	}
}

func TestConvert_OneEntryPerSheet(t *testing.T) {
	engine := &fakeEngine{queue: []*fakeSession{
		{wb: &fakeWorkbook{sheets: []string{"Summary", "Detail", "Notes"}}},
	}}
	service, workDir := newTestService(t, engine)

	var out bytes.Buffer
	result, err := service.Convert(context.Background(), ConversionRequest{
		Workbooks: []WorkbookInput{{Name: "report.xlsx", Content: strings.NewReader("bytes")}},
		Layout:    ResolveLayout(LayoutOptions{Scale: 100}),
		Output:    &out,
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if result.RequestID != "req-1" || result.ArchiveName != "converted_pdfs_req-1.zip" {
		t.Fatalf("unexpected archive identity: %+v", result)
	}

	want := []string{"report/Detail.pdf", "report/Notes.pdf", "report/Summary.pdf"}
	got := archiveEntries(t, out.Bytes())
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected entry %q, got %q", want[i], got[i])
		}
	}
	assertWorkDirEmpty(t, workDir)
}

func TestConvert_MultipleWorkbooksGetSeparateNamespaces(t *testing.T) {
	engine := &fakeEngine{queue: []*fakeSession{
		{wb: &fakeWorkbook{sheets: []string{"One"}}},
		{wb: &fakeWorkbook{sheets: []string{"One"}}},
	}}
	service, workDir := newTestService(t, engine)

	var out bytes.Buffer
	_, err := service.Convert(context.Background(), ConversionRequest{
		Workbooks: []WorkbookInput{
			{Name: "alpha.xlsx", Content: strings.NewReader("a")},
			{Name: "beta.xls", Content: strings.NewReader("b")},
		},
		Layout: ResolveLayout(LayoutOptions{Scale: 100}),
		Output: &out,
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	got := archiveEntries(t, out.Bytes())
	want := []string{"alpha/One.pdf", "beta/One.pdf"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	assertWorkDirEmpty(t, workDir)
}

func TestConvert_WorkbookFailureDoesNotStopSiblings(t *testing.T) {
	engine := &fakeEngine{queue: []*fakeSession{
		{openErr: errors.New("corrupt workbook")},
		{wb: &fakeWorkbook{sheets: []string{"Data"}}},
	}}
	service, workDir := newTestService(t, engine)

	var lines []string
	var out bytes.Buffer
	result, err := service.Convert(context.Background(), ConversionRequest{
		Workbooks: []WorkbookInput{
			{Name: "broken.xlsx", Content: strings.NewReader("junk")},
			{Name: "fine.xlsx", Content: strings.NewReader("good")},
		},
		Layout: ResolveLayout(LayoutOptions{Scale: 100}),
		Output: &out,
		Sink:   ProgressFunc(func(line string) { lines = append(lines, line) }),
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if len(result.Failures) != 1 || result.Failures[0].DisplayName != "broken.xlsx" {
		t.Fatalf("expected one workbook failure for broken.xlsx, got %+v", result.Failures)
	}
	got := archiveEntries(t, out.Bytes())
	if len(got) != 1 || got[0] != "fine/Data.pdf" {
		t.Fatalf("expected only the healthy workbook archived, got %v", got)
	}

	var sawFailure bool
	for _, line := range lines {
		if strings.Contains(line, "broken.xlsx") && strings.Contains(line, "failed") {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Fatalf("expected a diagnostic line for the failed workbook, got %v", lines)
	}
	assertWorkDirEmpty(t, workDir)
}

func TestConvert_DotPrefixedSheetNameArchived(t *testing.T) {
	engine := &fakeEngine{queue: []*fakeSession{
		{wb: &fakeWorkbook{sheets: []string{".Hidden", "Visible"}}},
	}}
	service, workDir := newTestService(t, engine)

	var out bytes.Buffer
	result, err := service.Convert(context.Background(), ConversionRequest{
		Workbooks: []WorkbookInput{{Name: "book.xlsx", Content: strings.NewReader("x")}},
		Layout:    ResolveLayout(LayoutOptions{Scale: 100}),
		Output:    &out,
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	for _, sheet := range result.Sheets {
		if sheet.Status != StatusExported {
			t.Fatalf("expected %q exported, got %s", sheet.SheetName, sheet.Status)
		}
	}
	got := archiveEntries(t, out.Bytes())
	want := []string{"book/.Hidden.pdf", "book/Visible.pdf"}
	if len(got) != len(want) {
		t.Fatalf("every exported sheet must be archived, got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected entry %q, got %q", want[i], got[i])
		}
	}
	assertWorkDirEmpty(t, workDir)
}

func TestConvert_FailedSheetOmittedFromArchive(t *testing.T) {
	engine := &fakeEngine{queue: []*fakeSession{
		{wb: &fakeWorkbook{
			sheets:     []string{"Good", "Bad"},
			failAlways: map[string]bool{"Bad": true},
		}},
	}}
	service, workDir := newTestService(t, engine)

	var out bytes.Buffer
	result, err := service.Convert(context.Background(), ConversionRequest{
		Workbooks: []WorkbookInput{{Name: "mixed.xlsx", Content: strings.NewReader("x")}},
		Layout:    ResolveLayout(LayoutOptions{Scale: 100}),
		Output:    &out,
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	got := archiveEntries(t, out.Bytes())
	if len(got) != 1 || got[0] != "mixed/Good.pdf" {
		t.Fatalf("expected only the surviving sheet archived, got %v", got)
	}
	if len(result.Failures) != 0 {
		t.Fatalf("a sheet failure is not a workbook failure: %+v", result.Failures)
	}
	assertWorkDirEmpty(t, workDir)
}

func TestConvert_FallbackSheetStillArchived(t *testing.T) {
	engine := &fakeEngine{queue: []*fakeSession{
		{wb: &fakeWorkbook{
			sheets:     []string{"Flaky"},
			failRemain: map[string]int{"Flaky": 1},
		}},
	}}
	service, workDir := newTestService(t, engine)

	var out bytes.Buffer
	result, err := service.Convert(context.Background(), ConversionRequest{
		Workbooks: []WorkbookInput{{Name: "retry.xlsx", Content: strings.NewReader("x")}},
		Layout:    ResolveLayout(LayoutOptions{Scale: 100}),
		Output:    &out,
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if result.Sheets[0].Status != StatusExportedViaFallback {
		t.Fatalf("expected fallback status, got %s", result.Sheets[0].Status)
	}
	got := archiveEntries(t, out.Bytes())
	if len(got) != 1 || got[0] != "retry/Flaky.pdf" {
		t.Fatalf("expected fallback pdf archived at expected path, got %v", got)
	}
	assertWorkDirEmpty(t, workDir)
}

func TestConvert_AllWorkbooksFailedStillProducesArchive(t *testing.T) {
	engine := &fakeEngine{queue: []*fakeSession{
		{openErr: errors.New("corrupt")},
	}}
	service, workDir := newTestService(t, engine)

	var out bytes.Buffer
	_, err := service.Convert(context.Background(), ConversionRequest{
		Workbooks: []WorkbookInput{{Name: "doomed.xlsx", Content: strings.NewReader("x")}},
		Layout:    ResolveLayout(LayoutOptions{Scale: 100}),
		Output:    &out,
	})
	if err != nil {
		t.Fatalf("an empty archive is an accepted outcome, got %v", err)
	}
	if entries := archiveEntries(t, out.Bytes()); len(entries) != 0 {
		t.Fatalf("expected empty archive, got %v", entries)
	}
	assertWorkDirEmpty(t, workDir)
}

func TestConvert_StagedFileKeepsExtension(t *testing.T) {
	var openedPath string
	engine := &pathRecordingEngine{paths: &openedPath}
	service, _ := newTestService(t, engine)

	var out bytes.Buffer
	_, err := service.Convert(context.Background(), ConversionRequest{
		Workbooks: []WorkbookInput{{Name: "legacy.xls", Content: strings.NewReader("x")}},
		Layout:    ResolveLayout(LayoutOptions{Scale: 100}),
		Output:    &out,
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.HasSuffix(openedPath, ".xls") {
		t.Fatalf("staged file should keep the original extension, got %q", openedPath)
	}
}

// pathRecordingEngine captures the staged path handed to OpenWorkbook.
type pathRecordingEngine struct {
	paths *string
}

func (e *pathRecordingEngine) Start(context.Context) (Session, error) {
	return &pathRecordingSession{paths: e.paths}, nil
}

type pathRecordingSession struct {
	paths *string
}

func (s *pathRecordingSession) OpenWorkbook(_ context.Context, path string) (Workbook, error) {
	*s.paths = path
	return &fakeWorkbook{sheets: []string{"Only"}}, nil
}

func (s *pathRecordingSession) Terminate() error { return nil }
