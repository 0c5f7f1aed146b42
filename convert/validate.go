package convert

import (
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ValidatePDF checks that an exported file is a well-formed PDF before it
// is counted as exported. Relaxed mode matches what mainstream viewers
// accept.
func ValidatePDF(path string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.ValidateFile(path, cfg)
}
