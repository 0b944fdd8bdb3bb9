// Package web holds the HTML templates and the helpers they call.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.html
var templateFS embed.FS

// markdown renderer for post and comment text; raw HTML is escaped
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
)

func RenderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return template.HTMLEscapeString(content)
	}
	return buf.String()
}

func FuncMap() template.FuncMap {
	return template.FuncMap{
		"now": time.Now,
		"markdown": func(s string) template.HTML {
			return template.HTML(RenderMarkdown(s))
		},
		"date": func(t time.Time) string {
			return t.Local().Format("2 Jan 2006, 15:04")
		},
		// value for <input type="datetime-local">
		"datetimeLocal": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format(DateTimeLocalLayout)
		},
		"deref": func(p *uint) uint {
			if p == nil {
				return 0
			}
			return *p
		},
	}
}

// DateTimeLocalLayout is the layout browsers submit for datetime-local inputs.
const DateTimeLocalLayout = "2006-01-02T15:04"

// Templates parses every embedded template. It panics on a malformed template.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(FuncMap()).ParseFS(templateFS, "templates/*.html"))
}
