package report

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
)

// ExportTemplate describes one report layout from the catalog.
type ExportTemplate struct {
	Name        TemplateName `yaml:"name" json:"name"`
	Description string       `yaml:"description" json:"description"`
	Layout      string       `yaml:"layout" json:"layout"`
	Styles      string       `yaml:"styles" json:"styles"`
}

//go:embed templates.yaml
var builtinTemplates []byte

var (
	catalogOnce sync.Once
	catalog     []ExportTemplate
	catalogErr  error
)

func loadCatalog() {
	var doc struct {
		Templates []ExportTemplate `yaml:"templates"`
	}
	if err := yaml.Unmarshal(builtinTemplates, &doc); err != nil {
		catalogErr = apperrors.New(apperrors.ErrCodeExport, "failed to parse builtin templates", err)
		return
	}
	catalog = doc.Templates
}

// Templates returns the template catalog.
func Templates() ([]ExportTemplate, error) {
	catalogOnce.Do(loadCatalog)
	return catalog, catalogErr
}

// TemplateByName resolves one template from the catalog.
func TemplateByName(name TemplateName) (*ExportTemplate, error) {
	templates, err := Templates()
	if err != nil {
		return nil, err
	}
	for i := range templates {
		if templates[i].Name == name {
			return &templates[i], nil
		}
	}
	return nil, apperrors.New(apperrors.ErrCodeValidation,
		fmt.Sprintf("unknown export template %q", name), nil)
}

// LoadTemplateFile reads a user-provided template from a yaml file, for
// custom layouts outside the builtin catalog.
func LoadTemplateFile(path string) (*ExportTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeExport, "failed to read template file", err)
	}
	var tmpl ExportTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeExport, "failed to parse template file", err)
	}
	if tmpl.Name == "" {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "template file missing name", nil)
	}
	return &tmpl, nil
}
