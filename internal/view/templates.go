package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/stockpulse/stockpulse/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title string
	// Refresh, when set, is the URL the browser reloads after one second.
	Refresh string
	Data    any
}

// RefreshContent renders the content attribute of the refresh meta tag.
func (d TemplateData) RefreshContent() template.HTMLAttr {
	return template.HTMLAttr(`content="1; url=` + template.HTMLEscapeString(d.Refresh) + `"`)
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData and writes it with the
// given status. Nothing is written when execution fails.
func (e *Engine) Render(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
