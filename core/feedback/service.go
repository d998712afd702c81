package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/school"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("formulario not found")
	ErrAlreadyResponded = core.NewConflictError("formulario already answered")
)

type (
	Repository interface {
		CreateFormulario(ctx context.Context, f Formulario) (Formulario, error)
		GetFormulario(ctx context.Context, id string) (Formulario, error)
		ListFormularios(ctx context.Context, aulaID string) ([]Formulario, error)
		// CreateResponse returns ErrAlreadyResponded when the aluno already answered the form.
		CreateResponse(ctx context.Context, r Response) (Response, error)
		ListResponses(ctx context.Context, formularioID string) ([]Response, error)
	}

	Aulas interface {
		GetAula(ctx context.Context, id string) (school.Aula, error)
	}

	Service struct {
		repo    Repository
		aulas   Aulas
		NowFunc func() time.Time // mockable
	}
)

func NewService(repo Repository, aulas Aulas) *Service {
	return &Service{repo: repo, aulas: aulas, NowFunc: time.Now}
}

func fieldName(list string, i int, field string) string {
	return fmt.Sprintf("%s[%d].%s", list, i, field)
}

// CheckAnswers validates answers against the form's questions, position by position.
func CheckAnswers(f Formulario, answers []Resposta) error {
	fldErrs := make([]core.FieldError, 0)
	if len(answers) > len(f.Perguntas) {
		fldErrs = append(fldErrs, core.FieldError{Field: "respostas", Error: "more answers than questions"})
	}

	for i, p := range f.Perguntas {
		var ans Resposta
		if i < len(answers) {
			ans = answers[i]
		}
		switch p.Kind {
		case KindRating:
			if ans.Rating == 0 {
				if p.Required {
					fldErrs = append(fldErrs, core.FieldError{Field: fieldName("respostas", i, "rating"), Error: "this field is required"})
				}
				continue
			}
			if ans.Rating < minRating || ans.Rating > maxRating {
				fldErrs = append(fldErrs, core.FieldError{
					Field: fieldName("respostas", i, "rating"),
					Error: fmt.Sprintf("must be between %d and %d", minRating, maxRating),
				})
			}
		case KindChoice:
			if ans.Text == "" {
				if p.Required {
					fldErrs = append(fldErrs, core.FieldError{Field: fieldName("respostas", i, "text"), Error: "this field is required"})
				}
				continue
			}
			if !contains(p.Options, ans.Text) {
				fldErrs = append(fldErrs, core.FieldError{Field: fieldName("respostas", i, "text"), Error: "must be one of the options"})
			}
		default:
			if ans.Text == "" && p.Required {
				fldErrs = append(fldErrs, core.FieldError{Field: fieldName("respostas", i, "text"), Error: "this field is required"})
			}
		}
	}

	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}
	return nil
}

func contains(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}

func (svc *Service) Create(ctx context.Context, nf NewFormulario) (Formulario, error) {
	if _, err := svc.aulas.GetAula(ctx, nf.AulaID); err != nil {
		return Formulario{}, err
	}
	return svc.repo.CreateFormulario(ctx, Formulario{
		ID:        uuid.New().String(),
		AulaID:    nf.AulaID,
		Title:     nf.Title,
		Perguntas: nf.Perguntas,
		CreatedAt: svc.NowFunc().UTC(),
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Formulario, error) {
	return svc.repo.GetFormulario(ctx, id)
}

func (svc *Service) ListForAula(ctx context.Context, aulaID string) ([]Formulario, error) {
	return svc.repo.ListFormularios(ctx, aulaID)
}

// Respond stores the aluno's answers to the form. Each aluno answers a form once.
func (svc *Service) Respond(ctx context.Context, formularioID, alunoID string, answers []Resposta) (Response, error) {
	f, err := svc.repo.GetFormulario(ctx, formularioID)
	if err != nil {
		return Response{}, err
	}
	if err = CheckAnswers(f, answers); err != nil {
		return Response{}, err
	}
	r, err := svc.repo.CreateResponse(ctx, Response{
		ID:           uuid.New().String(),
		FormularioID: f.ID,
		AlunoID:      alunoID,
		Respostas:    answers,
		CreatedAt:    svc.NowFunc().UTC(),
	})
	if err != nil && !core.IsConflict(err) {
		return Response{}, errors.Wrap(err, "creating response")
	}
	return r, err
}

func (svc *Service) Responses(ctx context.Context, formularioID string) ([]Response, error) {
	if _, err := svc.repo.GetFormulario(ctx, formularioID); err != nil {
		return nil, err
	}
	return svc.repo.ListResponses(ctx, formularioID)
}
