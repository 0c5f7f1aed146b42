// Command sheet2pdf-server serves the workbook-to-PDF conversion API:
// upload workbooks with layout options, download the resulting archive.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	_ "go.uber.org/automaxprocs"

	archivezip "github.com/goliatone/go-sheet2pdf/adapters/archive/zip"
	"github.com/goliatone/go-sheet2pdf/adapters/engine/chromium"
	converthttp "github.com/goliatone/go-sheet2pdf/adapters/http"
	storefs "github.com/goliatone/go-sheet2pdf/adapters/store/fs"
	"github.com/goliatone/go-sheet2pdf/convert"
)

func main() {
	cfg := FromEnv()

	appLogger := &SimpleLogger{prefix: "sheet2pdf"}

	engine := chromium.NewEngine()
	engine.BrowserPath = cfg.Engine.BrowserPath
	engine.Headless = cfg.Engine.Headless
	engine.Timeout = cfg.Engine.Timeout
	engine.Args = cfg.Engine.Args

	service := convert.NewService(convert.ServiceConfig{
		Engine:     engine,
		NewArchive: archivezip.Factory(),
		Logger:     appLogger,
	})

	store := storefs.NewStore(cfg.Store.ArtifactDir)

	app := fiber.New(fiber.Config{
		AppName:   "sheet2pdf",
		BodyLimit: cfg.Server.MaxUploadBytes,
	})
	app.Use(logger.New())

	handler := converthttp.NewHandler(converthttp.Config{
		Service: service,
		Store:   store,
		Logger:  appLogger,
	})
	handler.RegisterRoutes(app)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Printf("Starting server on http://%s", addr)
		log.Printf("Convert API: http://%s/api/convert", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	if err := app.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// SimpleLogger is a basic logger implementation.
type SimpleLogger struct {
	prefix string
}

func (l *SimpleLogger) Debugf(format string, args ...any) {
	log.Printf("[DEBUG] "+l.prefix+": "+format, args...)
}

func (l *SimpleLogger) Infof(format string, args ...any) {
	log.Printf("[INFO] "+l.prefix+": "+format, args...)
}

func (l *SimpleLogger) Errorf(format string, args ...any) {
	log.Printf("[ERROR] "+l.prefix+": "+format, args...)
}
