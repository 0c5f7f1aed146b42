package convert

import "strings"

const (
	minScale  = 50
	maxScale  = 200
	minMargin = 0.0
	maxMargin = 1.0
)

// ResolveLayout translates raw user-selected options into a canonical
// LayoutDirective. Out-of-range values are clamped, never rejected, and
// unrecognized labels fall back to defaults (Letter, portrait). The
// function is pure: identical input yields an identical directive.
func ResolveLayout(opts LayoutOptions) LayoutDirective {
	scale := opts.Scale
	if scale < minScale {
		scale = minScale
	}
	if scale > maxScale {
		scale = maxScale
	}

	margin := opts.MarginInches
	if margin < minMargin {
		margin = minMargin
	}
	if margin > maxMargin {
		margin = maxMargin
	}

	return LayoutDirective{
		Scale:          scale,
		FitToPage:      opts.FitToPage,
		FitColumnsWide: opts.FitColumnsWide,
		Orientation:    parseOrientation(opts.Orientation),
		MarginInches:   margin,
		PaperSize:      parsePaperSize(opts.PaperSize),
	}
}

func parseOrientation(label string) Orientation {
	if strings.EqualFold(strings.TrimSpace(label), string(OrientationLandscape)) {
		return OrientationLandscape
	}
	return OrientationPortrait
}

// parsePaperSize accepts both the short form ("a4") and the labeled form
// the upload UI presents ("A4 (210x297mm)").
func parsePaperSize(label string) PaperSize {
	normalized := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.HasPrefix(normalized, "a4"):
		return PaperA4
	case strings.HasPrefix(normalized, "a3"):
		return PaperA3
	default:
		return PaperLetter
	}
}

// PageDimensionsInches returns width and height in inches for the
// directive's paper size with orientation applied.
func (d LayoutDirective) PageDimensionsInches() (width, height float64) {
	switch d.PaperSize {
	case PaperA4:
		width, height = 8.27, 11.69
	case PaperA3:
		width, height = 11.69, 16.54
	default:
		width, height = 8.5, 11
	}
	if d.Orientation == OrientationLandscape {
		width, height = height, width
	}
	return width, height
}
