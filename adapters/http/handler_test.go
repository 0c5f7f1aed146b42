package converthttp

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"

	archivezip "github.com/goliatone/go-sheet2pdf/adapters/archive/zip"
	storefs "github.com/goliatone/go-sheet2pdf/adapters/store/fs"
	"github.com/goliatone/go-sheet2pdf/convert"
)

type stubEngine struct{}

func (stubEngine) Start(context.Context) (convert.Session, error) {
	return stubSession{}, nil
}

type stubSession struct{}

func (stubSession) OpenWorkbook(context.Context, string) (convert.Workbook, error) {
	return stubWorkbook{}, nil
}

func (stubSession) Terminate() error { return nil }

type stubWorkbook struct{}

func (stubWorkbook) SheetNames() []string { return []string{"Sheet1", "Sheet2"} }

func (stubWorkbook) ExportSheet(_ context.Context, _ string, _ convert.LayoutDirective, destPath string) error {
	return os.WriteFile(destPath, []byte("%PDF-1.4 stub"), 0o644)
}

func (stubWorkbook) Close() error { return nil }

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	service := convert.NewService(convert.ServiceConfig{
		Engine:      stubEngine{},
		NewArchive:  archivezip.Factory(),
		WorkDir:     t.TempDir(),
		ValidatePDF: func(string) error { return nil },
	})
	handler := NewHandler(Config{
		Service: service,
		Store:   storefs.NewStore(t.TempDir()),
	})

	app := fiber.New()
	handler.RegisterRoutes(app)
	return app
}

func multipartUpload(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for name, payload := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(payload); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestConvertEndpoint_ProducesDownloadableArchive(t *testing.T) {
	app := newTestApp(t)

	body, contentType := multipartUpload(t,
		map[string]string{
			"scale":       "100",
			"orientation": "landscape",
			"paper_size":  "A4 (210x297mm)",
			"margins":     "0.5",
		},
		map[string][]byte{"report.xlsx": []byte("workbook bytes")},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var payload convertResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Archive == "" {
		t.Fatal("expected archive key in response")
	}
	if len(payload.Sheets) != 2 {
		t.Fatalf("expected 2 sheet results, got %d", len(payload.Sheets))
	}

	dlReq := httptest.NewRequest(http.MethodGet, "/api/archives/"+payload.Archive, nil)
	dlResp, err := app.Test(dlReq, -1)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if dlResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 download, got %d", dlResp.StatusCode)
	}
	archive, err := io.ReadAll(dlResp.Body)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(reader.File) != 2 {
		t.Fatalf("expected 2 pdf entries, got %d", len(reader.File))
	}
}

func TestConvertEndpoint_RejectsEmptyUpload(t *testing.T) {
	app := newTestApp(t)

	body, contentType := multipartUpload(t, map[string]string{"scale": "100"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestConvertEndpoint_RejectsUnsupportedExtension(t *testing.T) {
	app := newTestApp(t)

	body, contentType := multipartUpload(t, nil, map[string][]byte{"notes.txt": []byte("nope")})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDownload_MissingArchiveIs404(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/archives/unknown.zip", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
