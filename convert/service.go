package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ServiceConfig supplies dependencies for the conversion Service.
type ServiceConfig struct {
	Engine     Engine
	NewArchive ArchiveFactory
	Sink       ProgressSink
	Logger     Logger
	// WorkDir roots staging and per-workbook output namespaces. Defaults
	// to the system temp directory.
	WorkDir string
	// ValidatePDF verifies each exported file. Defaults to pdfcpu relaxed
	// validation; set to a no-op to disable.
	ValidatePDF func(path string) error
	IDGenerator func() string
}

// Service drives one conversion request end to end: staging, one engine
// session per workbook, archive collection, and cleanup. Workbooks are
// processed strictly one at a time, sheets within a workbook one at a
// time.
type Service struct {
	engine      Engine
	newArchive  ArchiveFactory
	sink        ProgressSink
	logger      Logger
	workDir     string
	validatePDF func(path string) error
	idGenerator func() string
}

// NewService creates a Service with the provided configuration.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	sink := cfg.Sink
	if sink == nil {
		sink = ProgressFunc(nil)
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	validate := cfg.ValidatePDF
	if validate == nil {
		validate = ValidatePDF
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return &Service{
		engine:      cfg.Engine,
		newArchive:  cfg.NewArchive,
		sink:        sink,
		logger:      logger,
		workDir:     workDir,
		validatePDF: validate,
		idGenerator: idGen,
	}
}

// Convert runs one conversion request. Workbook-level and sheet-level
// failures are isolated; the request fails only on empty input or when
// the archive itself cannot be produced. The archive is written to
// req.Output and may contain zero entries if every workbook failed.
func (s *Service) Convert(ctx context.Context, req ConversionRequest) (ConversionResult, error) {
	if s == nil || s.engine == nil || s.newArchive == nil {
		return ConversionResult{}, NewError(KindInternal, "service is not configured", nil)
	}
	if len(req.Workbooks) == 0 {
		return ConversionResult{}, NewError(KindValidation, "please upload at least one workbook", nil)
	}
	if req.Output == nil {
		return ConversionResult{}, NewError(KindValidation, "request output writer is required", nil)
	}

	requestID := s.idGenerator()
	result := ConversionResult{
		RequestID:   requestID,
		ArchiveName: fmt.Sprintf("converted_pdfs_%s.zip", requestID),
	}

	stageRoot, err := os.MkdirTemp(s.workDir, "sheet2pdf-")
	if err != nil {
		return ConversionResult{}, NewError(KindInternal, "allocate staging directory", err)
	}
	defer func() {
		// Best effort: cleanup never escalates to a user-visible failure.
		_ = os.RemoveAll(stageRoot)
	}()

	sink := req.Sink
	if sink == nil {
		sink = s.sink
	}

	archive := s.newArchive(req.Output)
	for _, input := range req.Workbooks {
		sink.Progress(fmt.Sprintf("processing %s", input.Name))
		s.convertWorkbook(ctx, input, req.Layout, stageRoot, archive, sink, &result)
	}
	if err := archive.Close(); err != nil {
		return result, NewError(KindInternal, "finalize archive", err)
	}
	return result, nil
}

// convertWorkbook stages one upload, runs one conversion session against
// it, archives whatever the session produced, and cleans up. Failures are
// recorded in result and never abort sibling workbooks.
func (s *Service) convertWorkbook(ctx context.Context, input WorkbookInput, layout LayoutDirective, stageRoot string, archive ArchiveWriter, sink ProgressSink, result *ConversionResult) {
	job, err := s.stage(input, stageRoot)
	if err != nil {
		s.reportWorkbookFailure(input.Name, err, sink, result)
		return
	}
	defer func() {
		_ = os.Remove(job.StagedPath)
		_ = os.RemoveAll(job.OutputNamespace)
	}()

	exporter := sheetExporter{
		layout:  layout,
		destDir: job.OutputNamespace,
		// Fallback temporaries live beside the namespace, not inside it,
		// so enumeration only ever sees finished exports.
		tmpDir:   stageRoot,
		validate: s.validatePDF,
	}
	sheets, err := runSession(ctx, s.engine, job, exporter, sink, s.logger)
	result.Sheets = append(result.Sheets, sheets...)
	if err != nil {
		s.reportWorkbookFailure(input.Name, err, sink, result)
	}

	// The namespace directory, not the result list, is the source of
	// truth for what enters the archive.
	if err := s.archiveNamespace(archive, input.Name, job.OutputNamespace, result); err != nil {
		s.reportWorkbookFailure(input.Name, err, sink, result)
	}
}

// stage copies the upload's bytes to a uniquely named temporary file that
// keeps the original extension, and allocates the workbook's output
// namespace directory.
func (s *Service) stage(input WorkbookInput, stageRoot string) (WorkbookJob, error) {
	ext := filepath.Ext(input.Name)
	staged, err := os.CreateTemp(stageRoot, "upload-*"+ext)
	if err != nil {
		return WorkbookJob{}, NewError(KindInternal, "stage workbook", err)
	}
	if _, err := staged.ReadFrom(input.Content); err != nil {
		_ = staged.Close()
		return WorkbookJob{}, NewError(KindInternal, "stage workbook", err)
	}
	if err := staged.Close(); err != nil {
		return WorkbookJob{}, NewError(KindInternal, "stage workbook", err)
	}

	stagedPath, err := filepath.Abs(staged.Name())
	if err != nil {
		return WorkbookJob{}, NewError(KindInternal, "resolve staged path", err)
	}

	base := workbookBaseName(input.Name)
	namespace := filepath.Join(stageRoot, "output_"+base)
	if err := os.MkdirAll(namespace, 0o755); err != nil {
		return WorkbookJob{}, NewError(KindInternal, "create output namespace", err)
	}

	return WorkbookJob{
		DisplayName:     input.Name,
		StagedPath:      stagedPath,
		OutputNamespace: namespace,
	}, nil
}

// archiveNamespace enumerates every file the session left in the output
// namespace and adds each one under <workbookBase>/<fileName>.
func (s *Service) archiveNamespace(archive ArchiveWriter, displayName, namespace string, result *ConversionResult) error {
	entries, err := os.ReadDir(namespace)
	if err != nil {
		return NewError(KindInternal, "enumerate output namespace", err)
	}

	base := workbookBaseName(displayName)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(namespace, entry.Name()))
		if err != nil {
			return NewError(KindInternal, fmt.Sprintf("open produced pdf %s", entry.Name()), err)
		}
		addErr := archive.Add(base+"/"+entry.Name(), f)
		_ = f.Close()
		if addErr != nil {
			return NewError(KindInternal, fmt.Sprintf("archive produced pdf %s", entry.Name()), addErr)
		}
		if info, err := entry.Info(); err == nil {
			result.ArchiveBytes += info.Size()
		}
	}
	return nil
}

func (s *Service) reportWorkbookFailure(displayName string, err error, sink ProgressSink, result *ConversionResult) {
	detail := err.Error()
	sink.Progress(fmt.Sprintf("failed to convert %s: %s", displayName, detail))
	s.logger.Errorf("convert %s: %s", displayName, detail)
	result.Failures = append(result.Failures, WorkbookFailure{
		DisplayName: displayName,
		ErrorDetail: detail,
	})
}

// workbookBaseName derives the archive folder prefix from an uploaded
// file's display name.
func workbookBaseName(displayName string) string {
	base := filepath.Base(displayName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "workbook"
	}
	return SanitizeName(base)
}
