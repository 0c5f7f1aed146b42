// Command sheet2pdf converts local spreadsheet workbooks into one PDF
// per sheet, packaged into a single zip archive.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	flag "github.com/spf13/pflag"

	archivezip "github.com/goliatone/go-sheet2pdf/adapters/archive/zip"
	"github.com/goliatone/go-sheet2pdf/adapters/engine/chromium"
	"github.com/goliatone/go-sheet2pdf/convert"
)

func main() {
	var (
		out         = flag.StringP("out", "o", "converted_pdfs.zip", "output archive path")
		scale       = flag.Int("scale", 100, "pdf scale percent (50-200)")
		fitToPage   = flag.Bool("fit-to-page", false, "fit each sheet to a single page")
		fitColumns  = flag.Bool("fit-columns-wide", false, "fit all columns to the page width")
		orientation = flag.String("orientation", "portrait", "page orientation: portrait or landscape")
		margins     = flag.Float64("margins", 0.5, "page margins in inches (0.0-1.0)")
		paperSize   = flag.String("paper-size", "letter", "paper size: letter, a4, or a3")
		browser     = flag.String("browser", "", "path to a Chromium binary (auto-detected when empty)")
		timeout     = flag.Duration("timeout", 2*time.Minute, "per-sheet render timeout (0 disables)")
	)
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: sheet2pdf [flags] workbook.xlsx [workbook2.xls ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(flag.Args(), *out, convert.LayoutOptions{
		Scale:          *scale,
		FitToPage:      *fitToPage,
		FitColumnsWide: *fitColumns,
		Orientation:    *orientation,
		MarginInches:   *margins,
		PaperSize:      *paperSize,
	}, *browser, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "sheet2pdf: %v\n", err)
		os.Exit(1)
	}
}

func run(paths []string, out string, opts convert.LayoutOptions, browser string, timeout time.Duration) error {
	var workbooks []convert.WorkbookInput
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		workbooks = append(workbooks, convert.WorkbookInput{
			Name:    filepath.Base(path),
			Content: f,
		})
	}

	engine := chromium.NewEngine()
	engine.BrowserPath = browser
	engine.Timeout = timeout

	service := convert.NewService(convert.ServiceConfig{
		Engine:     engine,
		NewArchive: archivezip.Factory(),
		Sink: convert.ProgressFunc(func(line string) {
			fmt.Fprintln(os.Stderr, line)
		}),
	})

	archive, err := os.Create(out)
	if err != nil {
		return err
	}

	result, err := service.Convert(context.Background(), convert.ConversionRequest{
		Workbooks: workbooks,
		Layout:    convert.ResolveLayout(opts),
		Output:    archive,
	})
	if cerr := archive.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(out)
		return err
	}

	exported := 0
	for _, sheet := range result.Sheets {
		if sheet.Status != convert.StatusFailed {
			exported++
		}
	}
	fmt.Printf("exported %d/%d sheets from %d workbook(s) to %s\n",
		exported, len(result.Sheets), len(workbooks), out)
	return nil
}
