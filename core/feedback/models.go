package feedback

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
)

type QuestionKind string

const (
	KindText   QuestionKind = "texto"
	KindChoice QuestionKind = "escolha"
	KindRating QuestionKind = "avaliacao" // 1 to 5

	minRating = 1
	maxRating = 5
)

type Pergunta struct {
	Text     string       `json:"text" validate:"required"`
	Kind     QuestionKind `json:"kind" validate:"required,oneof=texto escolha avaliacao"`
	Options  []string     `json:"options" validate:"omitempty,dive,required"`
	Required bool         `json:"required"`
}

type Perguntas []Pergunta

func (p Perguntas) Value() (driver.Value, error) {
	if p == nil {
		p = Perguntas{}
	}
	b, err := json.Marshal(p)
	return string(b), err
}

func (p *Perguntas) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// Formulario is a feedback form handed out at an aula.
type Formulario struct {
	ID        string    `json:"id"`
	AulaID    string    `json:"aula_id"`
	Title     string    `json:"title"`
	Perguntas Perguntas `json:"perguntas"`
	CreatedAt time.Time `json:"created_at"`
}

// Resposta answers the pergunta at the same position. Text is used by texto and escolha questions, Rating by avaliacao ones.
type Resposta struct {
	Text   string `json:"text,omitempty"`
	Rating int    `json:"rating,omitempty"`
}

type Respostas []Resposta

func (r Respostas) Value() (driver.Value, error) {
	if r == nil {
		r = Respostas{}
	}
	b, err := json.Marshal(r)
	return string(b), err
}

func (r *Respostas) Scan(src interface{}) error {
	return scanJSON(src, r)
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case nil:
		return nil
	}
	return errors.Errorf("cannot scan %T into %T", src, dst)
}

type Response struct {
	ID           string    `json:"id"`
	FormularioID string    `json:"formulario_id"`
	AlunoID      string    `json:"aluno_id"`
	Respostas    Respostas `json:"respostas"`
	CreatedAt    time.Time `json:"created_at"`
}

type NewFormulario struct {
	AulaID    string     `json:"aula_id" validate:"required,uuid"`
	Title     string     `json:"title" validate:"required"`
	Perguntas []Pergunta `json:"perguntas" validate:"required,min=1,dive"`
}

func (nf *NewFormulario) Validate(validate *validator.Validate) error {
	nf.Title = core.CleanString(nf.Title)
	for i := range nf.Perguntas {
		nf.Perguntas[i].Text = core.CleanString(nf.Perguntas[i].Text)
	}
	if err := validate.Struct(nf); err != nil {
		return err
	}
	for i, p := range nf.Perguntas {
		if p.Kind == KindChoice && len(p.Options) < 2 {
			return core.NewValidationError(nil, core.FieldError{
				Field: fieldName("perguntas", i, "options"),
				Error: "must have at least 2 options",
			})
		}
	}
	return nil
}

type NewResponse struct {
	Respostas []Resposta `json:"respostas" validate:"required"`
}

func (nr *NewResponse) Validate(validate *validator.Validate) error {
	for i := range nr.Respostas {
		nr.Respostas[i].Text = core.CleanString(nr.Respostas[i].Text)
	}
	return validate.Struct(nr)
}
