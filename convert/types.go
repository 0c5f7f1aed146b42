package convert

import (
	"context"
	"io"
	"time"
)

// Orientation is the page orientation applied to every exported sheet.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// PaperSize is the paper size applied to every exported sheet.
type PaperSize string

const (
	PaperLetter PaperSize = "letter"
	PaperA4     PaperSize = "a4"
	PaperA3     PaperSize = "a3"
)

// FitMode selects how sheet content is scaled onto the page. Exactly one
// mode is active per export.
type FitMode string

const (
	FitModePage    FitMode = "fit_to_page"
	FitModeColumns FitMode = "fit_columns_wide"
	FitModeScale   FitMode = "scale"
)

// LayoutOptions carries raw user-selected layout values before resolution.
type LayoutOptions struct {
	Scale          int
	FitToPage      bool
	FitColumnsWide bool
	Orientation    string
	MarginInches   float64
	PaperSize      string
}

// LayoutDirective is the resolved, canonical page setup shared by every
// sheet of every workbook in one conversion request. Built once by
// ResolveLayout and read-only thereafter.
type LayoutDirective struct {
	Scale          int
	FitToPage      bool
	FitColumnsWide bool
	Orientation    Orientation
	MarginInches   float64
	PaperSize      PaperSize
}

// ActiveMode returns the single fit mode in effect, honoring the
// FitToPage > FitColumnsWide > Scale priority.
func (d LayoutDirective) ActiveMode() FitMode {
	switch {
	case d.FitToPage:
		return FitModePage
	case d.FitColumnsWide:
		return FitModeColumns
	default:
		return FitModeScale
	}
}

// ExportStatus is the outcome of one sheet export.
type ExportStatus string

const (
	StatusExported            ExportStatus = "exported"
	StatusExportedViaFallback ExportStatus = "exported_via_fallback"
	StatusFailed              ExportStatus = "failed"
)

// SheetExportResult reports the outcome of exporting one sheet.
type SheetExportResult struct {
	SheetName         string
	SanitizedFileName string
	Status            ExportStatus
	ErrorDetail       string
}

// WorkbookInput is one uploaded workbook presented to the orchestrator.
type WorkbookInput struct {
	Name    string
	Content io.Reader
}

// WorkbookJob tracks one staged workbook through a conversion request.
type WorkbookJob struct {
	DisplayName     string
	StagedPath      string
	OutputNamespace string
}

// WorkbookFailure records a workbook that contributed zero PDFs.
type WorkbookFailure struct {
	DisplayName string
	ErrorDetail string
}

// ConversionRequest captures one end-to-end conversion.
type ConversionRequest struct {
	Workbooks []WorkbookInput
	Layout    LayoutDirective
	Output    io.Writer
	// Sink receives this request's diagnostic lines. Falls back to the
	// service-wide sink when nil.
	Sink ProgressSink
}

// ConversionResult captures a completed conversion request.
type ConversionResult struct {
	RequestID    string
	ArchiveName  string
	Sheets       []SheetExportResult
	Failures     []WorkbookFailure
	ArchiveBytes int64
}

// Engine starts rendering-engine process instances. Implementations are
// expected to be fallible and fully synchronous per call.
type Engine interface {
	Start(ctx context.Context) (Session, error)
}

// Session owns one live rendering-engine process. Only the conversion
// session that created it may issue commands through it, and Terminate
// must be called on every exit path.
type Session interface {
	OpenWorkbook(ctx context.Context, path string) (Workbook, error)
	Terminate() error
}

// Workbook is one open workbook inside an engine session.
type Workbook interface {
	// SheetNames returns sheet names in the workbook's native order.
	SheetNames() []string
	// ExportSheet applies the layout directive to the sheet's page setup
	// and writes a PDF at destPath.
	ExportSheet(ctx context.Context, sheetName string, layout LayoutDirective, destPath string) error
	Close() error
}

// ArchiveWriter collects produced PDFs into the request's archive.
type ArchiveWriter interface {
	Add(name string, src io.Reader) error
	Close() error
}

// ArchiveFactory builds an ArchiveWriter over the request output.
type ArchiveFactory func(w io.Writer) ArchiveWriter

// ProgressSink receives in-progress diagnostic lines for the requester.
type ProgressSink interface {
	Progress(line string)
}

// ProgressFunc adapts a function to a ProgressSink.
type ProgressFunc func(line string)

func (f ProgressFunc) Progress(line string) {
	if f != nil {
		f(line)
	}
}

// ArtifactMeta captures stored artifact metadata.
type ArtifactMeta struct {
	ContentType string
	Size        int64
	Filename    string
	CreatedAt   time.Time
}

// ArtifactRef references a stored artifact.
type ArtifactRef struct {
	Key  string
	Meta ArtifactMeta
}

// ArtifactStore stores finished conversion archives.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error)
	Delete(ctx context.Context, key string) error
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger ignores all log output.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
