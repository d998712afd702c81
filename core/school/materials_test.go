package school

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/escola/core"
)

func TestParseLegacyMaterials(t *testing.T) {
	tests := []struct {
		name   string
		legacy string
		want   []string
	}{
		{name: "empty", legacy: "", want: []string{}},
		{name: "single", legacy: "aulas/1/slides.pdf", want: []string{"aulas/1/slides.pdf"}},
		{name: "trims and drops blanks", legacy: " a.pdf , ,b.pdf,", want: []string{"a.pdf", "b.pdf"}},
		{name: "duplicates keep first position", legacy: "b.pdf,a.pdf,b.pdf", want: []string{"b.pdf", "a.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLegacyMaterials(tt.legacy))
		})
	}
}

func TestAula_Materials(t *testing.T) {
	aula := Aula{Materiais: []string{}}

	assert.NoError(t, aula.AddMaterial("a.pdf"))
	assert.NoError(t, aula.AddMaterial(" b.pdf "))
	assert.NoError(t, aula.AddMaterial("c.pdf"))
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, aula.Materiais)

	_, isValidation := aula.AddMaterial("b.pdf").(*core.ValidationError)
	assert.True(t, isValidation, "duplicate material")
	_, isValidation = aula.AddMaterial("  ").(*core.ValidationError)
	assert.True(t, isValidation, "blank material")

	before := aula.Materiais
	assert.NoError(t, aula.RemoveMaterial("b.pdf"))
	assert.Equal(t, []string{"a.pdf", "c.pdf"}, aula.Materiais)
	assert.Equal(t, "b.pdf", before[1], "removal must not alias the previous slice")

	assert.Equal(t, ErrMaterialNotFound, aula.RemoveMaterial("b.pdf"))
}
