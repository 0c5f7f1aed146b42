package convert

import (
	"context"
	"fmt"
	"path/filepath"
)

// runSession owns one engine process for the lifetime of one workbook:
// it starts the engine, opens the staged workbook, exports every sheet in
// native order through the sheetExporter, and guarantees the workbook is
// closed and the process released on every exit path.
func runSession(ctx context.Context, engine Engine, job WorkbookJob, exporter sheetExporter, sink ProgressSink, logger Logger) (results []SheetExportResult, err error) {
	if !filepath.IsAbs(job.StagedPath) {
		return nil, NewError(KindWorkbook, fmt.Sprintf("staged path is not absolute: %s", job.StagedPath), nil)
	}

	session, err := engine.Start(ctx)
	if err != nil {
		return nil, NewError(KindEngine, "start rendering engine", err)
	}
	defer func() {
		if terr := session.Terminate(); terr != nil {
			logger.Errorf("terminate engine: %v", terr)
		}
	}()

	wb, err := session.OpenWorkbook(ctx, job.StagedPath)
	if err != nil {
		return nil, NewError(KindWorkbook, fmt.Sprintf("open workbook %q", job.DisplayName), err)
	}
	defer func() {
		if cerr := wb.Close(); cerr != nil {
			logger.Errorf("close workbook %q: %v", job.DisplayName, cerr)
		}
	}()

	seen := map[string]int{}
	for _, sheetName := range wb.SheetNames() {
		fileName := uniqueName(SanitizeName(sheetName), seen) + ".pdf"
		result := exporter.exportSheet(ctx, wb, sheetName, fileName)
		if result.Status == StatusFailed {
			sink.Progress(fmt.Sprintf("failed to export sheet %q of %q: %s", sheetName, job.DisplayName, result.ErrorDetail))
			logger.Errorf("export sheet %q of %q: %s", sheetName, job.DisplayName, result.ErrorDetail)
		} else {
			logger.Debugf("exported sheet %q of %q as %s", sheetName, job.DisplayName, result.SanitizedFileName)
		}
		results = append(results, result)
	}
	return results, nil
}
