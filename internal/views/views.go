// Package views renders the HTML pages and partials of the bills app.
package views

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	appweb "billed/web"
)

// Templates holds the parsed page and partial templates.
type Templates struct {
	t *template.Template
}

// Parse loads the embedded templates.
func Parse() (*Templates, error) {
	return ParseFS(appweb.TemplatesFS, "templates/*.html")
}

func ParseFS(fsys fs.FS, patterns ...string) (*Templates, error) {
	t, err := template.New("billed").ParseFS(fsys, patterns...)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Templates{t: t}, nil
}

// Execute renders the named template.
func (t *Templates) Execute(w io.Writer, name string, data any) error {
	if err := t.t.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}

// HTML renders the named template into a fragment for embedding in a page.
func (t *Templates) HTML(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// BillList returns the bill list presenter backed by these templates.
func (t *Templates) BillList() *BillList {
	return &BillList{templates: t}
}
