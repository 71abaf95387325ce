package workflow

import (
	"bytes"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"github.com/soporteware/helpdesk/internal/model"
)

// TemplateData is the placeholder set available to notification
// templates.
type TemplateData struct {
	Number       string
	Title        string
	StatusCode   string
	PriorityCode string
	TypeCode     string
	ModuleCode   string
	ReleaseCode  string
	OldCode      string
	NewCode      string
	Body         string
}

// NewTemplateData fills placeholder values from a snapshot plus the
// optional event body.
func NewTemplateData(snap Snapshot, body string) TemplateData {
	get := func(key string) string {
		if v := snap[key]; v != nil {
			return *v
		}
		return ""
	}
	return TemplateData{
		Number:       get(FieldNumber),
		Title:        get(FieldTitle),
		StatusCode:   get(FieldStatusCode),
		PriorityCode: get(FieldPriorityCode),
		TypeCode:     get(FieldTypeCode),
		ModuleCode:   get(FieldModuleCode),
		ReleaseCode:  get(FieldReleaseCode),
		OldCode:      get(FieldOldCode),
		NewCode:      get(FieldNewCode),
		Body:         body,
	}
}

// RenderTemplate expands a template's subject, HTML, and text bodies
// with the given data. HTML bodies are rendered with html/template so
// user-entered comment text is escaped.
func RenderTemplate(tpl *model.Template, data TemplateData) (subject, html, text string, err error) {
	subject, err = renderText(tpl.Subject, data)
	if err != nil {
		return "", "", "", fmt.Errorf("rendering subject of template %s: %w", tpl.ID, err)
	}

	html, err = renderHTML(tpl.HTML, data)
	if err != nil {
		return "", "", "", fmt.Errorf("rendering html of template %s: %w", tpl.ID, err)
	}

	text, err = renderText(tpl.Text, data)
	if err != nil {
		return "", "", "", fmt.Errorf("rendering text of template %s: %w", tpl.ID, err)
	}

	return subject, html, text, nil
}

func renderHTML(body string, data TemplateData) (string, error) {
	t, err := template.New("html").Parse(body)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderText(body string, data TemplateData) (string, error) {
	t, err := texttemplate.New("text").Parse(body)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
