// Package formpost builds the hidden, self-submitting HTML form used to hand
// the browser over to an external site with a POST.
package formpost

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/url"
)

// TemplateName is the name Template is registered under.
const TemplateName = "formpost"

var (
	ErrInvalidAction = errors.New("form action must be an absolute http(s) url")
	ErrNoFields      = errors.New("form has no fields")
	ErrEmptyField    = errors.New("form field name is required")
)

// Template renders a Form. The submit button only shows without JavaScript.
var Template = template.Must(template.New(TemplateName).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Redirecting to payment</title></head>
<body>
<form id="formpost" method="POST" action="{{.Action}}" style="display:none">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
<noscript><button type="submit">Continue</button></noscript>
</form>
<script>document.getElementById("formpost").submit();</script>
</body>
</html>
`))

// Field is one hidden input. Name is sent exactly as given.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Form is a POST to Action carrying Fields in order.
type Form struct {
	Action string  `json:"action"`
	Fields []Field `json:"fields"`
}

// New validates action and fields and returns the form.
func New(action string, fields ...Field) (*Form, error) {
	u, err := url.Parse(action)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, ErrEmptyField
		}
	}
	return &Form{Action: action, Fields: fields}, nil
}

// Value returns the value of the named field.
func (f *Form) Value(name string) (string, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// Render writes the self-submitting page for f to w.
func Render(w io.Writer, f *Form) error {
	return Template.Execute(w, f)
}
