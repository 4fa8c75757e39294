package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Energy Report {{.Kind}}]
Run: {{.RunID}}
Time: {{.At.Format "2006-01-02 15:04:05 MST"}}
{{- if .Error }}
Error: {{.Error}}
{{- end }}
{{- if .LastUsage }}
Last usage date: {{.LastUsage}}
{{- end }}
{{- if .Suggestion }}
Suggestion: {{.Suggestion}}
{{- end }}
{{- if .ReportURL }}
Report: {{.ReportURL}}
{{- end }}`

// Template renders alert content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses an alert template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("energy-alert").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to msg.
func (t *Template) Render(msg AlertMessage) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, msg); err != nil {
		return "", err
	}
	return buf.String(), nil
}
