package notification

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"
)

func renderText(body string, data map[string]string) (string, error) {
	if body == "" {
		return "", nil
	}
	tmpl, err := template.New("text").Option("missingkey=zero").Parse(body)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHTML(body string, data map[string]string) (string, error) {
	if body == "" {
		return "", nil
	}
	tmpl, err := htmltemplate.New("html").Option("missingkey=zero").Parse(body)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
