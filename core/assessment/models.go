package assessment

import (
	"database/sql/driver"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
)

type QuestionKind string

const (
	MultipleChoice QuestionKind = "multipla_escolha"
	FreeText       QuestionKind = "texto"
)

type Question struct {
	Text         string       `json:"text" validate:"required"`
	Kind         QuestionKind `json:"kind" validate:"required,oneof=multipla_escolha texto"`
	Options      []string     `json:"options" validate:"omitempty,dive,required"`
	CorrectIndex int          `json:"correct_index" validate:"gte=0"`
	Points       float64      `json:"points" validate:"gte=0"`
}

// Questions is stored as a jsonb column.
type Questions []Question

func (q Questions) Value() (driver.Value, error) {
	if q == nil {
		q = Questions{}
	}
	b, err := json.Marshal(q)
	return string(b), err
}

func (q *Questions) Scan(src interface{}) error {
	return scanJSON(src, q)
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

// Avaliacao is a quiz attached to a turma.
type Avaliacao struct {
	ID            string    `json:"id"`
	TurmaID       string    `json:"turma_id"`
	Title         string    `json:"title"`
	Questoes      Questions `json:"questoes"`
	NotaMinima    float64   `json:"nota_minima"`    // minimum percentage to pass
	PontosTotais  float64   `json:"pontos_totais"`  // 0: sum of the questions' points
	MaxTentativas int       `json:"max_tentativas"` // 0: unlimited
	CreatedBy     string    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TotalPoints is the score of a perfect attempt.
func (av Avaliacao) TotalPoints() float64 {
	if av.PontosTotais > 0 {
		return av.PontosTotais
	}
	var total float64
	for _, q := range av.Questoes {
		total += q.Points
	}
	return total
}

// StudentView is a quiz as shown to alunos: without the correct answers.
type StudentView struct {
	ID            string            `json:"id"`
	TurmaID       string            `json:"turma_id"`
	Title         string            `json:"title"`
	Questoes      []StudentQuestion `json:"questoes"`
	NotaMinima    float64           `json:"nota_minima"`
	PontosTotais  float64           `json:"pontos_totais"`
	MaxTentativas int               `json:"max_tentativas"`
}

type StudentQuestion struct {
	Text    string       `json:"text"`
	Kind    QuestionKind `json:"kind"`
	Options []string     `json:"options"`
	Points  float64      `json:"points"`
}

func (av Avaliacao) ForStudent() StudentView {
	qs := make([]StudentQuestion, 0, len(av.Questoes))
	for _, q := range av.Questoes {
		qs = append(qs, StudentQuestion{Text: q.Text, Kind: q.Kind, Options: q.Options, Points: q.Points})
	}
	return StudentView{
		ID:            av.ID,
		TurmaID:       av.TurmaID,
		Title:         av.Title,
		Questoes:      qs,
		NotaMinima:    av.NotaMinima,
		PontosTotais:  av.TotalPoints(),
		MaxTentativas: av.MaxTentativas,
	}
}

// Answer is the response to the question at the same position. Selected is nil when no option was picked.
type Answer struct {
	Selected *int   `json:"selected"`
	Text     string `json:"text,omitempty"`
}

type Answers []Answer

func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		a = Answers{}
	}
	b, err := json.Marshal(a)
	return string(b), err
}

func (a *Answers) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// Result is the outcome of scoring an attempt.
type Result struct {
	Pontuacao  float64 `json:"pontuacao"`
	Percentual float64 `json:"percentual"`
	Aprovado   bool    `json:"aprovado"`
}

// Tentativa is one stored attempt. Every submission adds a new one.
type Tentativa struct {
	ID          string    `json:"id"`
	AvaliacaoID string    `json:"avaliacao_id"`
	AlunoID     string    `json:"aluno_id"`
	Respostas   Answers   `json:"respostas"`
	Pontuacao   float64   `json:"pontuacao"`
	Percentual  float64   `json:"percentual"`
	Aprovado    bool      `json:"aprovado"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewAvaliacao struct {
	TurmaID       string     `json:"turma_id" validate:"required,uuid"`
	Title         string     `json:"title" validate:"required"`
	Questoes      []Question `json:"questoes" validate:"required,min=1,dive"`
	NotaMinima    float64    `json:"nota_minima" validate:"gte=0,lte=100"`
	PontosTotais  float64    `json:"pontos_totais" validate:"gte=0"`
	MaxTentativas int        `json:"max_tentativas" validate:"gte=0"`
}

func (na *NewAvaliacao) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	for i := range na.Questoes {
		na.Questoes[i].Text = core.CleanString(na.Questoes[i].Text)
	}
	if err := validate.Struct(na); err != nil {
		return err
	}

	fldErrs := make([]core.FieldError, 0)
	for i, q := range na.Questoes {
		if q.Kind != MultipleChoice {
			continue
		}
		field := "questoes[" + strconv.Itoa(i) + "]"
		switch {
		case len(q.Options) < 2:
			fldErrs = append(fldErrs, core.FieldError{Field: field + ".options", Error: "must have at least 2 options"})
		case q.CorrectIndex >= len(q.Options):
			fldErrs = append(fldErrs, core.FieldError{Field: field + ".correct_index", Error: "must point to one of the options"})
		}
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}
	return nil
}

type Submission struct {
	Respostas []Answer `json:"respostas" validate:"required"`
}

func (s *Submission) Validate(validate *validator.Validate) error {
	return validate.Struct(s)
}
