package usecase

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"MarketBrief/internal/domain/models"
)

//go:embed templates/prompt.tmpl
var defaultPromptTemplate string

// PromptTemplate renders models.PromptData into the model prompt.
type PromptTemplate struct {
	tmpl *template.Template
}

// NewPromptTemplate parses the template at path, or the built-in one when path is empty.
func NewPromptTemplate(path string) (*PromptTemplate, error) {
	text := defaultPromptTemplate
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading prompt template: %w", err)
		}
		text = string(b)
	}

	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}
	return &PromptTemplate{tmpl: tmpl}, nil
}

func (p *PromptTemplate) Build(data models.PromptData) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing prompt template: %w", err)
	}
	return buf.String(), nil
}

var builtinPrompt = template.Must(template.New("prompt").Parse(defaultPromptTemplate))

// BuildPrompt renders the built-in template.
func BuildPrompt(data models.PromptData) (string, error) {
	return (&PromptTemplate{tmpl: builtinPrompt}).Build(data)
}
