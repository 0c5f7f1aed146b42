package chromium

import (
	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-sheet2pdf/convert"
)

// sheetTemplateSrc is the print template loaded into the browser for
// every sheet. Page margins come from Page.printToPDF, not CSS, so the
// body carries none. Fit modes pin the table to the page width and wrap
// cell content; explicit scale lets the table take its natural width and
// paginate.
const sheetTemplateSrc = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<style>
  * { box-sizing: border-box; }
  body { margin: 0; font: 10px/1.4 Arial, Helvetica, sans-serif; color: #1a1a1a; }
  table { border-collapse: collapse;{% if fit %} width: 100%; table-layout: fixed;{% endif %} }
  td { border: 1px solid #d0d0d0; padding: 2px 4px; vertical-align: top;{% if fit %} overflow-wrap: break-word;{% else %} white-space: nowrap;{% endif %} }
</style>
</head>
<body>
<table>
{% for row in rows %}<tr>{% for cell in row %}<td>{{ cell }}</td>{% endfor %}</tr>
{% endfor %}</table>
</body>
</html>
`

var sheetTemplate = pongo2.Must(pongo2.FromString(sheetTemplateSrc))

// renderSheetHTML renders sheet rows into the print template. An empty
// sheet renders an empty table and still produces a blank page.
func renderSheetHTML(rows [][]string, layout convert.LayoutDirective) (string, error) {
	return sheetTemplate.Execute(pongo2.Context{
		"rows": rows,
		"fit":  layout.ActiveMode() != convert.FitModeScale,
	})
}
