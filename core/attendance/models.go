package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Presenca is the stored attendance of one aluno at one aula. There is at most one per (aula, aluno).
type Presenca struct {
	ID          string    `json:"id"`
	AulaID      string    `json:"aula_id"`
	AlunoID     string    `json:"aluno_id"`
	Presente    bool      `json:"presente"`
	Observacoes string    `json:"observacoes"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Record is one line of a roll call.
type Record struct {
	AlunoID     string `json:"aluno_id" validate:"required,uuid"`
	AlunoName   string `json:"aluno_name,omitempty"`
	Presente    bool   `json:"presente"`
	Observacoes string `json:"observacoes" validate:"max=500"`
}

type OutcomeStatus string

const (
	OutcomeOK    OutcomeStatus = "ok"
	OutcomeError OutcomeStatus = "error"
)

type RowOutcome struct {
	AlunoID string        `json:"aluno_id"`
	Status  OutcomeStatus `json:"status"`
	Error   string        `json:"error,omitempty"`
}

// BatchResult reports what happened to every row of a saved roll call.
type BatchResult struct {
	Saved    int          `json:"saved"`
	Failed   int          `json:"failed"`
	Outcomes []RowOutcome `json:"outcomes"`
}

func (br BatchResult) Partial() bool { return br.Failed > 0 }

type SaveRequest struct {
	Records []Record `json:"records" validate:"required,min=1,dive"`
}

func (sr *SaveRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(sr)
}

// MarkAll sets every record of the roll call present or absent.
func MarkAll(records []Record, present bool) {
	for i := range records {
		records[i].Presente = present
	}
}
