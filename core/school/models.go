package school

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/escola/core"
)

type Aluno struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type ProfessorStatus string

const (
	ProfessorAtivo    ProfessorStatus = "ativo"
	ProfessorInativo  ProfessorStatus = "inativo"
	ProfessorPendente ProfessorStatus = "pendente"
)

type Professor struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id,omitempty"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	Especializacoes []string        `json:"especializacoes"`
	Status          ProfessorStatus `json:"status"`
	NivelMentoria   string          `json:"nivel_mentoria"`
	CreatedAt       time.Time       `json:"created_at"`
}

type TurmaStatus string

const (
	TurmaPlanejada TurmaStatus = "planejada"
	TurmaAtiva     TurmaStatus = "ativa"
	TurmaConcluida TurmaStatus = "concluida"
	TurmaCancelada TurmaStatus = "cancelada"
)

type Turma struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	ProfessorID string      `json:"professor_id,omitempty"`
	Capacity    int         `json:"capacity"` // 0: unlimited
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`
	Status      TurmaStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

type MatriculaStatus string

const (
	MatriculaAtiva     MatriculaStatus = "ativa"
	MatriculaTrancada  MatriculaStatus = "trancada"
	MatriculaCancelada MatriculaStatus = "cancelada"
)

type Matricula struct {
	ID        string          `json:"id"`
	AlunoID   string          `json:"aluno_id"`
	TurmaID   string          `json:"turma_id"`
	Status    MatriculaStatus `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

type AulaStatus string

const (
	AulaAgendada    AulaStatus = "agendada"
	AulaEmAndamento AulaStatus = "em_andamento"
	AulaConcluida   AulaStatus = "concluida"
	AulaCancelada   AulaStatus = "cancelada"
)

type Aula struct {
	ID          string     `json:"id"`
	TurmaID     string     `json:"turma_id"`
	ProfessorID string     `json:"professor_id,omitempty"`
	Title       string     `json:"title"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      time.Time  `json:"ends_at"`
	Location    string     `json:"location"`
	Status      AulaStatus `json:"status"`
	Materiais   []string   `json:"materiais"` // ordered storage paths
	RemindedAt  time.Time  `json:"reminded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type (
	TurmaFilter struct {
		IDs         []string
		ProfessorID string
		AlunoID     string // active enrollments only
	}

	AulaFilter struct {
		TurmaIDs []string
		From     time.Time
		To       time.Time
		Statuses []AulaStatus
	}
)

// NewTurma holds the data needed to create a Turma.
type NewTurma struct {
	Name        string      `json:"name" validate:"required"`
	Description string      `json:"description"`
	ProfessorID string      `json:"professor_id" validate:"omitempty,uuid"`
	Capacity    int         `json:"capacity" validate:"gte=0"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date" validate:"omitempty,gtefield=StartDate"`
	Status      TurmaStatus `json:"status" validate:"omitempty,oneof=planejada ativa concluida cancelada"`
}

func (nt *NewTurma) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	if nt.Status == "" {
		nt.Status = TurmaPlanejada
	}
	return validate.Struct(nt)
}

// NewAula holds the data needed to schedule an Aula.
type NewAula struct {
	TurmaID   string    `json:"turma_id" validate:"required,uuid"`
	Title     string    `json:"title" validate:"required"`
	StartsAt  time.Time `json:"starts_at" validate:"required"`
	EndsAt    time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Location  string    `json:"location"`
	Materiais []string  `json:"materiais" validate:"omitempty,dive,storage_path"`
}

func (na *NewAula) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Location = core.CleanString(na.Location)
	for i, m := range na.Materiais {
		na.Materiais[i] = core.CleanString(m)
	}
	return validate.Struct(na)
}

type EnrollRequest struct {
	AlunoIDs []string `json:"aluno_ids" validate:"required,min=1,dive,uuid"`
}

func (er *EnrollRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(er)
}

type MaterialRequest struct {
	Path string `json:"path" validate:"required,storage_path"`
}

func (mr *MaterialRequest) Validate(validate *validator.Validate) error {
	mr.Path = core.CleanString(mr.Path)
	return validate.Struct(mr)
}
