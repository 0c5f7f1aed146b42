package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// sheetExporter produces one PDF per sheet through an open workbook
// handle, with a fallback retry path for destinations the engine cannot
// write directly.
type sheetExporter struct {
	layout  LayoutDirective
	destDir string
	// tmpDir hosts fallback temporaries. It must never be the destination
	// directory itself when the destination is later enumerated, so that
	// only finished exports appear there. Defaults to destDir.
	tmpDir   string
	validate func(path string) error
}

func (e sheetExporter) fallbackDir() string {
	if e.tmpDir != "" {
		return e.tmpDir
	}
	return e.destDir
}

// exportSheet applies the layout directive and exports one sheet to
// fileName inside the exporter's destination directory. A failed direct
// export is retried through a freshly allocated temporary file that is
// renamed over the destination. Failures never propagate as errors; they
// are reported in the result so the caller can continue with the next
// sheet.
func (e sheetExporter) exportSheet(ctx context.Context, wb Workbook, sheetName, fileName string) SheetExportResult {
	result := SheetExportResult{
		SheetName:         sheetName,
		SanitizedFileName: fileName,
	}

	if err := os.MkdirAll(e.destDir, 0o755); err != nil {
		result.Status = StatusFailed
		result.ErrorDetail = fmt.Sprintf("create output directory: %v", err)
		return result
	}

	destPath := filepath.Join(e.destDir, fileName)

	directErr := e.export(ctx, wb, sheetName, destPath)
	if directErr == nil {
		result.Status = StatusExported
		return result
	}
	// A failed direct export may leave a partial or invalid file at the
	// destination; clear it so only verified output can be archived.
	_ = os.Remove(destPath)

	if err := e.exportViaFallback(ctx, wb, sheetName, destPath); err != nil {
		result.Status = StatusFailed
		result.ErrorDetail = err.Error()
		return result
	}

	result.Status = StatusExportedViaFallback
	return result
}

func (e sheetExporter) export(ctx context.Context, wb Workbook, sheetName, destPath string) error {
	if err := wb.ExportSheet(ctx, sheetName, e.layout, destPath); err != nil {
		return err
	}
	if e.validate != nil {
		if err := e.validate(destPath); err != nil {
			return fmt.Errorf("exported pdf failed validation: %w", err)
		}
	}
	return nil
}

// exportViaFallback exports to a short temporary path, then atomically
// relocates it over destPath. The temporary file is removed when the
// fallback fails at any step.
func (e sheetExporter) exportViaFallback(ctx context.Context, wb Workbook, sheetName, destPath string) error {
	tmp, err := os.CreateTemp(e.fallbackDir(), "fallback-*.pdf")
	if err != nil {
		return fmt.Errorf("allocate fallback file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("allocate fallback file: %w", err)
	}

	if err := e.export(ctx, wb, sheetName, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("relocate fallback file: %w", err)
	}
	return nil
}
