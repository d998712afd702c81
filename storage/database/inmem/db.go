package inmemdb

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/assessment"
	"github.com/trezcool/escola/core/attendance"
	"github.com/trezcool/escola/core/content"
	"github.com/trezcool/escola/core/feedback"
	"github.com/trezcool/escola/core/gamification"
	"github.com/trezcool/escola/core/invite"
	"github.com/trezcool/escola/core/school"
	"github.com/trezcool/escola/core/user"
)

// DB keeps every table in memory behind a single lock. It backs the unit tests and the DEV server without a database.
type DB struct {
	mu sync.RWMutex

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex // row locks taken inside InTx

	users     map[string]user.User
	roles     map[string]user.RoleRecord // {user_id: role}
	invites   map[string]invite.Invite
	alunos    map[string]school.Aluno
	profs     map[string]school.Professor
	turmas    map[string]school.Turma
	matrics   map[string]school.Matricula
	aulas     map[string]school.Aula
	presencas map[string]attendance.Presenca
	conteudos map[string]content.Conteudo
	avisos    map[string]content.Aviso
	quizzes   map[string]assessment.Avaliacao
	attempts  map[string]assessment.Tentativa
	forms     map[string]feedback.Formulario
	responses map[string]feedback.Response
	points    []gamification.Entry
	badges    []gamification.Conquista
}

var (
	_ core.Transactor = (*DB)(nil)
	_ core.Pinger     = (*DB)(nil)
)

func Open() *DB {
	return &DB{
		locks:     make(map[string]*sync.Mutex),
		users:     make(map[string]user.User),
		roles:     make(map[string]user.RoleRecord),
		invites:   make(map[string]invite.Invite),
		alunos:    make(map[string]school.Aluno),
		profs:     make(map[string]school.Professor),
		turmas:    make(map[string]school.Turma),
		matrics:   make(map[string]school.Matricula),
		aulas:     make(map[string]school.Aula),
		presencas: make(map[string]attendance.Presenca),
		conteudos: make(map[string]content.Conteudo),
		avisos:    make(map[string]content.Aviso),
		quizzes:   make(map[string]assessment.Avaliacao),
		attempts:  make(map[string]assessment.Tentativa),
		forms:     make(map[string]feedback.Formulario),
		responses: make(map[string]feedback.Response),
	}
}

type txKey struct{}

// txLocks are the row locks held by one transaction, released when it ends.
type txLocks map[string]*sync.Mutex

var errNoTx = errors.New("row lock taken outside a transaction")

// InTx runs fn directly: writes made before a failure are not rolled back.
// Locks taken by fn are held until it returns. Nested calls join the outer transaction.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(txLocks); ok {
		return fn(ctx)
	}

	held := make(txLocks)
	defer func() {
		for _, m := range held {
			m.Unlock()
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, held))
}

// lock blocks until the row lock named key is free, then holds it for the rest of the transaction.
func (db *DB) lock(ctx context.Context, key string) error {
	held, ok := ctx.Value(txKey{}).(txLocks)
	if !ok {
		return errNoTx
	}
	if _, ok := held[key]; ok {
		return nil
	}

	db.locksMu.Lock()
	m, ok := db.locks[key]
	if !ok {
		m = new(sync.Mutex)
		db.locks[key] = m
	}
	db.locksMu.Unlock()

	m.Lock()
	held[key] = m
	return nil
}

func (db *DB) PingContext(ctx context.Context) error { return ctx.Err() }

func copyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}

func stringSet(s []string) map[string]bool {
	set := make(map[string]bool, len(s))
	for _, v := range s {
		set[v] = true
	}
	return set
}
