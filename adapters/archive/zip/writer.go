// Package archivezip collects produced PDFs into a zip archive.
package archivezip

import (
	"archive/zip"
	"io"

	"github.com/goliatone/go-sheet2pdf/convert"
)

// Writer adapts archive/zip to the convert.ArchiveWriter interface.
type Writer struct {
	zw *zip.Writer
}

// New creates an archive writer over w.
func New(w io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(w)}
}

// Factory returns an ArchiveFactory for service wiring.
func Factory() convert.ArchiveFactory {
	return func(w io.Writer) convert.ArchiveWriter {
		return New(w)
	}
}

// Add writes one entry. Entry names use forward slashes regardless of
// platform, per the zip format.
func (w *Writer) Add(name string, src io.Reader) error {
	entry, err := w.zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, src)
	return err
}

// Close finalizes the archive central directory.
func (w *Writer) Close() error {
	return w.zw.Close()
}
