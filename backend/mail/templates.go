package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	TemplateVerification  = "verification"
	TemplatePasswordReset = "password_reset"
	TemplateWelcome       = "welcome"
	TemplatePromotional   = "promotional"
)

// Data is the input of every template.
type Data struct {
	AppName   string
	AppURL    string
	FullName  string
	ActionURL string
	Year      int
}

type Templates struct {
	set     map[string]*template.Template
	appName string
	appURL  string
}

func LoadTemplates(appName, appURL string) (*Templates, error) {
	t := &Templates{set: map[string]*template.Template{}, appName: appName, appURL: appURL}
	for _, name := range []string{TemplateVerification, TemplatePasswordReset, TemplateWelcome, TemplatePromotional} {
		tpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		t.set[name] = tpl
	}
	return t, nil
}

// Render executes the named template. AppName, AppURL and Year are filled in
// when empty.
func (t *Templates) Render(name string, data Data) (string, error) {
	tpl, ok := t.set[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	if data.AppName == "" {
		data.AppName = t.appName
	}
	if data.AppURL == "" {
		data.AppURL = t.appURL
	}
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
