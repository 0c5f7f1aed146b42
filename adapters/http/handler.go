// Package converthttp exposes the conversion service over HTTP: a
// multipart upload endpoint that runs one conversion request and a
// download endpoint for the finished archive.
package converthttp

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-sheet2pdf/convert"
)

var allowedExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".xlsm": true,
}

// Config configures the HTTP handler.
type Config struct {
	Service *convert.Service
	Store   convert.ArtifactStore
	Logger  convert.Logger
}

// Handler serves conversion requests.
type Handler struct {
	service *convert.Service
	store   convert.ArtifactStore
	logger  convert.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = convert.NopLogger{}
	}
	return &Handler{service: cfg.Service, store: cfg.Store, logger: logger}
}

// RegisterRoutes registers conversion endpoints on the app.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Post("/api/convert", h.Convert)
	app.Get("/api/archives/:key", h.Download)
}

// convertResponse is the upload endpoint's JSON body.
type convertResponse struct {
	RequestID   string                    `json:"request_id"`
	Archive     string                    `json:"archive"`
	ArchiveName string                    `json:"archive_name"`
	Sheets      []sheetResult             `json:"sheets"`
	Failures    []convert.WorkbookFailure `json:"failures,omitempty"`
	Diagnostics []string                  `json:"diagnostics,omitempty"`
}

type sheetResult struct {
	Sheet    string `json:"sheet"`
	FileName string `json:"file_name"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Convert accepts multipart workbook uploads plus layout form fields,
// runs the conversion, stores the archive, and returns its download key
// along with per-sheet results and diagnostic lines.
func (h *Handler) Convert(c *fiber.Ctx) error {
	if h == nil || h.service == nil || h.store == nil {
		return writeError(c, convert.NewError(convert.KindInternal, "handler is not configured", nil))
	}

	form, err := c.MultipartForm()
	if err != nil {
		return writeError(c, convert.NewError(convert.KindValidation, "invalid multipart form", err))
	}

	uploads := form.File["files"]
	if len(uploads) == 0 {
		return writeError(c, convert.NewError(convert.KindValidation, "please upload at least one workbook", nil))
	}
	for _, upload := range uploads {
		ext := strings.ToLower(filepath.Ext(upload.Filename))
		if !allowedExtensions[ext] {
			return writeError(c, convert.NewError(convert.KindValidation, fmt.Sprintf("unsupported file type: %s", upload.Filename), nil))
		}
	}

	layout := convert.ResolveLayout(convert.LayoutOptions{
		Scale:          atoiDefault(c.FormValue("scale"), 100),
		FitToPage:      formBool(c.FormValue("fit_to_page")),
		FitColumnsWide: formBool(c.FormValue("fit_columns_wide")),
		Orientation:    c.FormValue("orientation"),
		MarginInches:   atofDefault(c.FormValue("margins"), 0.5),
		PaperSize:      c.FormValue("paper_size"),
	})

	workbooks, closers, err := openUploads(uploads)
	if err != nil {
		return writeError(c, err)
	}
	defer closers()

	// The archive is spooled to a temp file, then moved into the store.
	spool, err := os.CreateTemp("", "sheet2pdf-archive-*.zip")
	if err != nil {
		return writeError(c, convert.NewError(convert.KindInternal, "allocate archive spool", err))
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	var diagnostics []string
	result, err := h.service.Convert(c.Context(), convert.ConversionRequest{
		Workbooks: workbooks,
		Layout:    layout,
		Output:    spool,
		Sink: convert.ProgressFunc(func(line string) {
			diagnostics = append(diagnostics, line)
		}),
	})
	if err != nil {
		return writeError(c, err)
	}

	if _, err := spool.Seek(0, 0); err != nil {
		return writeError(c, convert.NewError(convert.KindInternal, "rewind archive spool", err))
	}
	ref, err := h.store.Put(c.Context(), result.ArchiveName, spool, convert.ArtifactMeta{
		ContentType: "application/zip",
		Filename:    result.ArchiveName,
	})
	if err != nil {
		return writeError(c, convert.NewError(convert.KindInternal, "store archive", err))
	}

	resp := convertResponse{
		RequestID:   result.RequestID,
		Archive:     ref.Key,
		ArchiveName: result.ArchiveName,
		Failures:    result.Failures,
		Diagnostics: diagnostics,
	}
	for _, sheet := range result.Sheets {
		resp.Sheets = append(resp.Sheets, sheetResult{
			Sheet:    sheet.SheetName,
			FileName: sheet.SanitizedFileName,
			Status:   string(sheet.Status),
			Error:    sheet.ErrorDetail,
		})
	}
	return c.JSON(resp)
}

// Download streams a stored archive as an attachment.
func (h *Handler) Download(c *fiber.Ctx) error {
	if h == nil || h.store == nil {
		return writeError(c, convert.NewError(convert.KindInternal, "handler is not configured", nil))
	}

	key := c.Params("key")
	reader, meta, err := h.store.Open(c.Context(), key)
	if err != nil {
		return writeError(c, err)
	}

	filename := meta.Filename
	if filename == "" {
		filename = key
	}
	c.Set(fiber.HeaderContentType, meta.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.SendStream(reader)
}

func openUploads(uploads []*multipart.FileHeader) ([]convert.WorkbookInput, func(), error) {
	var workbooks []convert.WorkbookInput
	var opened []multipart.File
	closers := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	for _, upload := range uploads {
		f, err := upload.Open()
		if err != nil {
			closers()
			return nil, func() {}, convert.NewError(convert.KindInternal, fmt.Sprintf("open upload %s", upload.Filename), err)
		}
		opened = append(opened, f)
		workbooks = append(workbooks, convert.WorkbookInput{Name: upload.Filename, Content: f})
	}
	return workbooks, closers, nil
}

func writeError(c *fiber.Ctx, err error) error {
	ge := convert.AsGoError(err)
	status := fiber.StatusInternalServerError
	switch convert.KindFromError(err) {
	case convert.KindValidation:
		status = fiber.StatusBadRequest
	case convert.KindNotFound:
		status = fiber.StatusNotFound
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"code":  ge.TextCode,
	})
}

func formBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

func atoiDefault(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func atofDefault(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}
