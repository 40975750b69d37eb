package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/oriys/storefront/internal/dom"
	"github.com/oriys/storefront/internal/lazyload"
)

//go:embed templates/index.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

var shellTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// AssetsPrefix is where the embedded stylesheet is served.
const AssetsPrefix = "/assets/"

// ShellData fills the page shell. The grid fields drive the CSS grid so the
// browser lays cards out the way the lazy loader's GridLayout assumes.
type ShellData struct {
	Title      string
	Stylesheet string

	Columns    int
	CardHeight int
	Gap        int
}

// NewShellData describes a page whose grid matches layout.
func NewShellData(title string, layout lazyload.GridLayout) ShellData {
	return ShellData{
		Title:      title,
		Stylesheet: AssetsPrefix + "style.css",
		Columns:    layout.Columns,
		CardHeight: layout.CardHeight,
		Gap:        layout.Gap,
	}
}

// NewDocument renders the page shell and parses it into a fresh document.
// Every page load gets its own tree.
func NewDocument(data ShellData) (*dom.Document, error) {
	var buf bytes.Buffer
	if err := shellTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute shell template: %w", err)
	}
	doc, err := dom.Parse(&buf)
	if err != nil {
		return nil, fmt.Errorf("parse shell: %w", err)
	}
	return doc, nil
}

func assetsHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix(AssetsPrefix, http.FileServer(http.FS(sub)))
}
