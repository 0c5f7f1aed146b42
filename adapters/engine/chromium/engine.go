// Package chromium renders workbook sheets to PDF through a headless
// Chromium instance. Each session owns exactly one browser process:
// excelize reads the staged workbook, every sheet is rendered to
// print-ready HTML, and Page.printToPDF produces the PDF with the layout
// directive mapped to paper size, margins, and scale.
package chromium

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/xuri/excelize/v2"

	"github.com/goliatone/go-sheet2pdf/convert"
)

const (
	cssPixelsPerInch = 96.0
	// Chromium rejects print scales outside this range.
	minPrintScale = 0.1
	maxPrintScale = 2.0
)

// Engine starts one headless Chromium process per conversion session.
type Engine struct {
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
	Args        []string
}

// NewEngine returns an Engine with non-interactive defaults.
func NewEngine() *Engine {
	return &Engine{Headless: true}
}

// Start launches a fresh browser process. The returned session must be
// terminated by the caller on every exit path.
func (e *Engine) Start(ctx context.Context) (convert.Session, error) {
	if e == nil {
		return nil, convert.NewError(convert.KindInternal, "chromium engine is nil", nil)
	}

	options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if e.BrowserPath != "" {
		options = append(options, chromedp.ExecPath(e.BrowserPath))
	}
	options = append(options, chromedp.Flag("headless", e.Headless))
	options = append(options, allocatorOptionsFromArgs(e.Args)...)

	// The allocator is rooted in the background context so a canceled
	// request cannot orphan the process: lifetime belongs to Terminate.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), options...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Run with no actions forces the browser to launch now, surfacing
	// startup failures at session start instead of first export.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, err
	}

	return &session{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		timeout:       e.Timeout,
	}, nil
}

type session struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	timeout       time.Duration
}

// OpenWorkbook opens the staged file with excelize.
func (s *session) OpenWorkbook(ctx context.Context, path string) (convert.Workbook, error) {
	_ = ctx
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return &workbook{file: file, sess: s}, nil
}

// Terminate releases the browser process.
func (s *session) Terminate() error {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	return nil
}

type workbook struct {
	file *excelize.File
	sess *session
}

// SheetNames returns sheet names in the workbook's native order,
// including hidden sheets.
func (w *workbook) SheetNames() []string {
	return w.file.GetSheetList()
}

// ExportSheet renders one sheet to a PDF at destPath.
func (w *workbook) ExportSheet(ctx context.Context, sheetName string, layout convert.LayoutDirective, destPath string) error {
	rows, err := w.file.GetRows(sheetName)
	if err != nil {
		return convert.NewError(convert.KindSheet, "read sheet "+sheetName, err)
	}

	htmlDoc, err := renderSheetHTML(rows, layout)
	if err != nil {
		return convert.NewError(convert.KindSheet, "render sheet "+sheetName, err)
	}

	pdf, err := w.sess.printHTML(ctx, htmlDoc, layout)
	if err != nil {
		return convert.NewError(convert.KindEngine, "print sheet "+sheetName, err)
	}

	return os.WriteFile(destPath, pdf, 0o644)
}

func (w *workbook) Close() error {
	return w.file.Close()
}

type pageMetrics struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

const measureJS = `({width: document.documentElement.scrollWidth, height: document.documentElement.scrollHeight})`

// printHTML loads htmlDoc in a fresh tab and prints it with the layout
// directive applied. Fit modes measure the rendered content and derive
// the print scale from the printable area; explicit scale maps the user
// percentage directly.
func (s *session) printHTML(ctx context.Context, htmlDoc string, layout convert.LayoutDirective) ([]byte, error) {
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	defer cancel()

	execCtx, cancelReq := context.WithCancel(tabCtx)
	defer cancelReq()
	go func() {
		select {
		case <-ctx.Done():
			cancelReq()
		case <-execCtx.Done():
		}
	}()
	if s.timeout > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(execCtx, s.timeout)
		defer cancelTimeout()
	}

	var pdf []byte
	actions := []chromedp.Action{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, htmlDoc).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			scale := float64(layout.Scale) / 100
			if layout.ActiveMode() != convert.FitModeScale {
				var metrics pageMetrics
				if err := chromedp.Evaluate(measureJS, &metrics).Do(ctx); err != nil {
					return err
				}
				scale = fitScale(layout, metrics)
			}
			var err error
			pdf, _, err = buildPrintParams(layout, scale).Do(ctx)
			return err
		}),
	}

	if err := chromedp.Run(execCtx, actions...); err != nil {
		return nil, err
	}
	return pdf, nil
}

// buildPrintParams maps the directive onto Page.printToPDF. Orientation
// is expressed through the oriented paper dimensions, so the landscape
// flag is never set.
func buildPrintParams(layout convert.LayoutDirective, scale float64) *page.PrintToPDFParams {
	width, height := layout.PageDimensionsInches()
	return page.PrintToPDF().
		WithPaperWidth(width).
		WithPaperHeight(height).
		WithMarginTop(layout.MarginInches).
		WithMarginBottom(layout.MarginInches).
		WithMarginLeft(layout.MarginInches).
		WithMarginRight(layout.MarginInches).
		WithPrintBackground(true).
		WithScale(clampScale(scale))
}

// fitScale shrinks content so it fits the printable width, and for
// fit-to-page the printable height as well. Fit modes only ever shrink.
func fitScale(layout convert.LayoutDirective, metrics pageMetrics) float64 {
	width, height := layout.PageDimensionsInches()
	printableW := (width - 2*layout.MarginInches) * cssPixelsPerInch
	printableH := (height - 2*layout.MarginInches) * cssPixelsPerInch

	scale := 1.0
	if metrics.Width > 0 && metrics.Width > printableW {
		scale = printableW / metrics.Width
	}
	if layout.ActiveMode() == convert.FitModePage && metrics.Height > 0 && metrics.Height > printableH {
		if s := printableH / metrics.Height; s < scale {
			scale = s
		}
	}
	return clampScale(scale)
}

func clampScale(scale float64) float64 {
	if scale < minPrintScale {
		return minPrintScale
	}
	if scale > maxPrintScale {
		return maxPrintScale
	}
	return scale
}

// allocatorOptionsFromArgs converts raw browser arguments into allocator
// flags. Accepts "--flag", "flag", and "flag=value" forms.
func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		arg = strings.TrimPrefix(arg, "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}
