package school

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
)

var (
	errEmptyMaterial     = errors.New("material path is required")
	errDuplicateMaterial = errors.New("material already attached to this aula")
	ErrMaterialNotFound  = core.NewNotFoundError("material not found")
)

// AddMaterial appends path to the aula's materials, keeping their order.
func (a *Aula) AddMaterial(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return core.NewValidationError(errEmptyMaterial, core.FieldError{Field: "path", Error: errEmptyMaterial.Error()})
	}
	for _, m := range a.Materiais {
		if m == path {
			return core.NewValidationError(errDuplicateMaterial, core.FieldError{Field: "path", Error: errDuplicateMaterial.Error()})
		}
	}
	a.Materiais = append(a.Materiais, path)
	return nil
}

// RemoveMaterial removes path from the aula's materials, keeping the others in order.
func (a *Aula) RemoveMaterial(path string) error {
	for i, m := range a.Materiais {
		if m == path {
			a.Materiais = append(a.Materiais[:i:i], a.Materiais[i+1:]...)
			return nil
		}
	}
	return ErrMaterialNotFound
}

// ParseLegacyMaterials splits the old comma-joined materials column into a list.
// Blank entries are dropped and duplicates keep their first position.
func ParseLegacyMaterials(s string) []string {
	materials := make([]string, 0)
	seen := make(map[string]bool)
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		materials = append(materials, p)
	}
	return materials
}
