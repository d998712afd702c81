package school

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/user"
)

var (
	// errors
	ErrAlunoNotFound     = core.NewNotFoundError("aluno not found")
	ErrProfessorNotFound = core.NewNotFoundError("professor not found")
	ErrTurmaNotFound     = core.NewNotFoundError("turma not found")
	ErrAulaNotFound      = core.NewNotFoundError("aula not found")
	ErrAlreadyEnrolled   = errors.New("aluno already enrolled in this turma")
	ErrTurmaFull         = errors.New("turma is full")
)

type (
	Repository interface {
		CreateAluno(ctx context.Context, a Aluno) (Aluno, error)
		GetAluno(ctx context.Context, id string) (Aluno, error)
		GetAlunoByUserID(ctx context.Context, userID string) (Aluno, error)
		// ListAlunos returns every aluno, ordered by name.
		ListAlunos(ctx context.Context) ([]Aluno, error)

		CreateProfessor(ctx context.Context, p Professor) (Professor, error)
		GetProfessorByUserID(ctx context.Context, userID string) (Professor, error)
		ListProfessores(ctx context.Context) ([]Professor, error)

		CreateTurma(ctx context.Context, t Turma) (Turma, error)
		GetTurma(ctx context.Context, id string) (Turma, error)
		// LockTurma serializes the enrollments in the turma until the surrounding transaction ends.
		LockTurma(ctx context.Context, id string) error
		ListTurmas(ctx context.Context, filter TurmaFilter) ([]Turma, error)

		CreateMatriculas(ctx context.Context, ms []Matricula) error
		ListMatriculas(ctx context.Context, turmaID string) ([]Matricula, error)
		// ListEnrolledAlunos returns the alunos actively enrolled in the turma, ordered by name.
		ListEnrolledAlunos(ctx context.Context, turmaID string) ([]Aluno, error)

		CreateAula(ctx context.Context, a Aula) (Aula, error)
		GetAula(ctx context.Context, id string) (Aula, error)
		// ListAulas returns the matching aulas ordered by start time.
		ListAulas(ctx context.Context, filter AulaFilter) ([]Aula, error)
		UpdateMateriais(ctx context.Context, aulaID string, materiais []string) error
		MarkAulaReminded(ctx context.Context, aulaID string, at time.Time) error
		// ListAulasToRemind returns scheduled aulas starting in [from, to) that were not reminded yet.
		ListAulasToRemind(ctx context.Context, from, to time.Time) ([]Aula, error)
	}

	Service struct {
		repo    Repository
		tx      core.Transactor
		NowFunc func() time.Time // mockable
	}
)

var _ user.ProfileWriter = (*Service)(nil)

func NewService(repo Repository, tx core.Transactor) *Service {
	return &Service{repo: repo, tx: tx, NowFunc: time.Now}
}

func (svc *Service) now() time.Time { return svc.NowFunc().UTC() }

// CreateProfile creates the aluno or professor row of a freshly created user. Admins have no profile.
func (svc *Service) CreateProfile(ctx context.Context, usr user.User, role user.Role, phone string) error {
	switch role {
	case user.RoleAluno:
		_, err := svc.repo.CreateAluno(ctx, Aluno{
			ID:        uuid.New().String(),
			UserID:    usr.ID,
			Name:      usr.Name,
			Email:     usr.Email,
			Phone:     phone,
			CreatedAt: usr.CreatedAt,
		})
		return err
	case user.RoleProfessor:
		_, err := svc.repo.CreateProfessor(ctx, Professor{
			ID:              uuid.New().String(),
			UserID:          usr.ID,
			Name:            usr.Name,
			Email:           usr.Email,
			Phone:           phone,
			Especializacoes: []string{},
			Status:          ProfessorAtivo,
			CreatedAt:       usr.CreatedAt,
		})
		return err
	}
	return nil
}

// AlunoFor returns the aluno profile of the actor.
func (svc *Service) AlunoFor(ctx context.Context, actor user.Actor) (Aluno, error) {
	return svc.repo.GetAlunoByUserID(ctx, actor.ID)
}

// TurmasFor returns the turmas the actor can see: all of them for admins, the ones they teach for professors,
// the ones they are enrolled in for alunos.
func (svc *Service) TurmasFor(ctx context.Context, actor user.Actor) ([]Turma, error) {
	var filter TurmaFilter
	switch actor.Role {
	case user.RoleAdmin:
	case user.RoleProfessor:
		prof, err := svc.repo.GetProfessorByUserID(ctx, actor.ID)
		if err != nil {
			if core.IsNotFound(err) {
				return []Turma{}, nil
			}
			return nil, errors.Wrap(err, "getting professor")
		}
		filter.ProfessorID = prof.ID
	case user.RoleAluno:
		aluno, err := svc.repo.GetAlunoByUserID(ctx, actor.ID)
		if err != nil {
			if core.IsNotFound(err) {
				return []Turma{}, nil
			}
			return nil, errors.Wrap(err, "getting aluno")
		}
		filter.AlunoID = aluno.ID
	default:
		return nil, core.ErrForbidden
	}
	return svc.repo.ListTurmas(ctx, filter)
}

// CheckCanManageTurma returns core.ErrForbidden unless the actor is an admin or the turma's professor.
func (svc *Service) CheckCanManageTurma(ctx context.Context, actor user.Actor, turmaID string) error {
	turma, err := svc.repo.GetTurma(ctx, turmaID)
	if err != nil {
		return err
	}
	return svc.checkCanManage(ctx, actor, turma)
}

func (svc *Service) checkCanManage(ctx context.Context, actor user.Actor, turma Turma) error {
	switch actor.Role {
	case user.RoleAdmin:
		return nil
	case user.RoleProfessor:
		prof, err := svc.repo.GetProfessorByUserID(ctx, actor.ID)
		if err != nil {
			if core.IsNotFound(err) {
				return core.ErrForbidden
			}
			return errors.Wrap(err, "getting professor")
		}
		if turma.ProfessorID == prof.ID {
			return nil
		}
	}
	return core.ErrForbidden
}

// CheckCanViewTurma allows staff who manage the turma and alunos enrolled in it.
func (svc *Service) CheckCanViewTurma(ctx context.Context, actor user.Actor, turmaID string) error {
	if !actor.IsAluno() {
		return svc.CheckCanManageTurma(ctx, actor, turmaID)
	}
	turmas, err := svc.TurmasFor(ctx, actor)
	if err != nil {
		return err
	}
	for _, t := range turmas {
		if t.ID == turmaID {
			return nil
		}
	}
	return core.ErrForbidden
}

func (svc *Service) CreateTurma(ctx context.Context, actor user.Actor, nt NewTurma) (Turma, error) {
	if !actor.IsStaff() {
		return Turma{}, core.ErrForbidden
	}
	if actor.IsProfessor() {
		prof, err := svc.repo.GetProfessorByUserID(ctx, actor.ID)
		if err != nil {
			return Turma{}, errors.Wrap(err, "getting professor")
		}
		nt.ProfessorID = prof.ID
	}
	return svc.repo.CreateTurma(ctx, Turma{
		ID:          uuid.New().String(),
		Name:        nt.Name,
		Description: nt.Description,
		ProfessorID: nt.ProfessorID,
		Capacity:    nt.Capacity,
		StartDate:   nt.StartDate,
		EndDate:     nt.EndDate,
		Status:      nt.Status,
		CreatedAt:   svc.now(),
	})
}

func (svc *Service) GetTurma(ctx context.Context, id string) (Turma, error) {
	return svc.repo.GetTurma(ctx, id)
}

// AvailableStudents returns the alunos that can still be enrolled in the turma: those without any enrollment in it.
func (svc *Service) AvailableStudents(ctx context.Context, turmaID string) ([]Aluno, error) {
	if _, err := svc.repo.GetTurma(ctx, turmaID); err != nil {
		return nil, err
	}
	enrolled, err := svc.enrolledSet(ctx, turmaID)
	if err != nil {
		return nil, err
	}
	alunos, err := svc.repo.ListAlunos(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing alunos")
	}

	available := make([]Aluno, 0, len(alunos))
	for _, a := range alunos {
		if !enrolled[a.ID] {
			available = append(available, a)
		}
	}
	return available, nil
}

func (svc *Service) enrolledSet(ctx context.Context, turmaID string) (map[string]bool, error) {
	ms, err := svc.repo.ListMatriculas(ctx, turmaID)
	if err != nil {
		return nil, errors.Wrap(err, "listing matriculas")
	}
	set := make(map[string]bool, len(ms))
	for _, m := range ms {
		set[m.AlunoID] = true
	}
	return set, nil
}

// Enroll enrolls the alunos in the turma. Nothing is written if any of them cannot be enrolled.
func (svc *Service) Enroll(ctx context.Context, turmaID string, alunoIDs []string) ([]Matricula, error) {
	var ms []Matricula
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		if err := svc.repo.LockTurma(ctx, turmaID); err != nil {
			return err
		}
		var err error
		ms, err = svc.enroll(ctx, turmaID, alunoIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ms, nil
}

// enroll checks capacity and duplicates against the locked turma.
func (svc *Service) enroll(ctx context.Context, turmaID string, alunoIDs []string) ([]Matricula, error) {
	turma, err := svc.repo.GetTurma(ctx, turmaID)
	if err != nil {
		return nil, err
	}
	enrolled, err := svc.enrolledSet(ctx, turmaID)
	if err != nil {
		return nil, err
	}

	var active int
	if turma.Capacity > 0 {
		alunos, err := svc.repo.ListEnrolledAlunos(ctx, turmaID)
		if err != nil {
			return nil, errors.Wrap(err, "listing enrolled alunos")
		}
		active = len(alunos)
	}

	now := svc.now()
	fldErrs := make([]core.FieldError, 0)
	ms := make([]Matricula, 0, len(alunoIDs))
	for i, id := range alunoIDs {
		field := fmt.Sprintf("aluno_ids[%d]", i)
		if enrolled[id] {
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: ErrAlreadyEnrolled.Error()})
			continue
		}
		if _, err := svc.repo.GetAluno(ctx, id); err != nil {
			if core.IsNotFound(err) {
				fldErrs = append(fldErrs, core.FieldError{Field: field, Error: ErrAlunoNotFound.Error()})
				continue
			}
			return nil, errors.Wrap(err, "getting aluno")
		}
		enrolled[id] = true
		ms = append(ms, Matricula{
			ID:        uuid.New().String(),
			AlunoID:   id,
			TurmaID:   turmaID,
			Status:    MatriculaAtiva,
			CreatedAt: now,
		})
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(nil, fldErrs...)
	}
	if turma.Capacity > 0 && active+len(ms) > turma.Capacity {
		return nil, core.NewValidationError(ErrTurmaFull, core.FieldError{Field: "aluno_ids", Error: ErrTurmaFull.Error()})
	}

	if err = svc.repo.CreateMatriculas(ctx, ms); err != nil {
		if core.IsConflict(err) {
			return nil, core.NewValidationError(ErrAlreadyEnrolled, core.FieldError{Field: "aluno_ids", Error: ErrAlreadyEnrolled.Error()})
		}
		return nil, errors.Wrap(err, "creating matriculas")
	}
	return ms, nil
}

// Roster returns the alunos actively enrolled in the turma, ordered by name.
func (svc *Service) Roster(ctx context.Context, turmaID string) ([]Aluno, error) {
	return svc.repo.ListEnrolledAlunos(ctx, turmaID)
}

func (svc *Service) CreateAula(ctx context.Context, actor user.Actor, na NewAula) (Aula, error) {
	turma, err := svc.repo.GetTurma(ctx, na.TurmaID)
	if err != nil {
		return Aula{}, err
	}
	if err = svc.checkCanManage(ctx, actor, turma); err != nil {
		return Aula{}, err
	}

	aula := Aula{
		ID:          uuid.New().String(),
		TurmaID:     turma.ID,
		ProfessorID: turma.ProfessorID,
		Title:       na.Title,
		StartsAt:    na.StartsAt.UTC(),
		EndsAt:      na.EndsAt.UTC(),
		Location:    na.Location,
		Status:      AulaAgendada,
		Materiais:   []string{},
		CreatedAt:   svc.now(),
	}
	for _, m := range na.Materiais {
		if err = aula.AddMaterial(m); err != nil {
			return Aula{}, err
		}
	}
	return svc.repo.CreateAula(ctx, aula)
}

func (svc *Service) GetAula(ctx context.Context, id string) (Aula, error) {
	return svc.repo.GetAula(ctx, id)
}

// AulasFor returns the aulas of the turmas visible to the actor within [from, to).
func (svc *Service) AulasFor(ctx context.Context, actor user.Actor, from, to time.Time) ([]Aula, error) {
	turmas, err := svc.TurmasFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(turmas) == 0 {
		return []Aula{}, nil
	}
	ids := make([]string, 0, len(turmas))
	for _, t := range turmas {
		ids = append(ids, t.ID)
	}
	return svc.repo.ListAulas(ctx, AulaFilter{TurmaIDs: ids, From: from, To: to})
}

// UpcomingAulas returns the scheduled aulas of the actor's turmas starting within the next daysAhead days.
func (svc *Service) UpcomingAulas(ctx context.Context, actor user.Actor, daysAhead int) ([]Aula, error) {
	if daysAhead <= 0 {
		daysAhead = 7
	}
	now := svc.now()
	aulas, err := svc.AulasFor(ctx, actor, now, now.AddDate(0, 0, daysAhead))
	if err != nil {
		return nil, err
	}
	upcoming := make([]Aula, 0, len(aulas))
	for _, a := range aulas {
		if a.Status == AulaAgendada || a.Status == AulaEmAndamento {
			upcoming = append(upcoming, a)
		}
	}
	return upcoming, nil
}

func (svc *Service) AddMaterial(ctx context.Context, actor user.Actor, aulaID, path string) (Aula, error) {
	return svc.updateMateriais(ctx, actor, aulaID, func(a *Aula) error { return a.AddMaterial(path) })
}

func (svc *Service) RemoveMaterial(ctx context.Context, actor user.Actor, aulaID, path string) (Aula, error) {
	return svc.updateMateriais(ctx, actor, aulaID, func(a *Aula) error { return a.RemoveMaterial(path) })
}

func (svc *Service) updateMateriais(ctx context.Context, actor user.Actor, aulaID string, fn func(a *Aula) error) (Aula, error) {
	aula, err := svc.repo.GetAula(ctx, aulaID)
	if err != nil {
		return Aula{}, err
	}
	if err = svc.CheckCanManageTurma(ctx, actor, aula.TurmaID); err != nil {
		return Aula{}, err
	}
	if err = fn(&aula); err != nil {
		return Aula{}, err
	}
	if err = svc.repo.UpdateMateriais(ctx, aula.ID, aula.Materiais); err != nil {
		return Aula{}, errors.Wrap(err, "updating materiais")
	}
	return aula, nil
}

// ImportLegacyMaterials replaces the aula's materials with the entries of a comma-joined legacy value.
func (svc *Service) ImportLegacyMaterials(ctx context.Context, aulaID, legacy string) ([]string, error) {
	if _, err := svc.repo.GetAula(ctx, aulaID); err != nil {
		return nil, err
	}
	materials := ParseLegacyMaterials(legacy)
	if err := svc.repo.UpdateMateriais(ctx, aulaID, materials); err != nil {
		return nil, errors.Wrap(err, "updating materiais")
	}
	return materials, nil
}

// AulasToRemind returns the scheduled aulas starting in [from, to) whose alunos were not reminded yet.
func (svc *Service) AulasToRemind(ctx context.Context, from, to time.Time) ([]Aula, error) {
	return svc.repo.ListAulasToRemind(ctx, from, to)
}

func (svc *Service) MarkReminded(ctx context.Context, aulaID string) error {
	return svc.repo.MarkAulaReminded(ctx, aulaID, svc.now())
}

func (svc *Service) ListAlunos(ctx context.Context) ([]Aluno, error) {
	return svc.repo.ListAlunos(ctx)
}

func (svc *Service) ListProfessores(ctx context.Context) ([]Professor, error) {
	return svc.repo.ListProfessores(ctx)
}
