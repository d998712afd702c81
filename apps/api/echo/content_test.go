package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escola/core/content"
	"github.com/trezcool/escola/core/feedback"
	"github.com/trezcool/escola/core/user"
	"github.com/trezcool/escola/tests"
)

func Test_contentApi_conteudos(t *testing.T) {
	env, app := setup(t)
	_, prof := testutil.CreateUser(t, env, user.RoleProfessor, "Paulo Freire", "paulo@escola.test")
	anaActor, ana := testutil.CreateAluno(t, env, "Ana Lima", "ana@escola.test")
	caioActor, _ := testutil.CreateAluno(t, env, "Caio Reis", "caio@escola.test")
	turma := testutil.CreateTurma(t, env, prof, "Matemática", 0)
	testutil.Enroll(t, env, turma.ID, ana.ID)

	profToken := getToken(t, env, prof)
	video := content.NewConteudo{TurmaID: turma.ID, Title: "Frações em 5 minutos", Kind: "VIDEO", URL: "https://videos.escola.test/fracoes"}

	tests := []httpTest{
		{name: "aluno cannot publish", method: http.MethodPost, path: "/v1/conteudos", token: getToken(t, env, anaActor), body: marchallObj(t, video), wantCode: http.StatusForbidden},
		{
			name: "unknown kind", method: http.MethodPost, path: "/v1/conteudos", token: profToken,
			body: marchallObj(t, content.NewConteudo{TurmaID: turma.ID, Title: "X", Kind: "podcast"}), wantCode: http.StatusBadRequest,
		},
		{
			name: "bad url", method: http.MethodPost, path: "/v1/conteudos", token: profToken,
			body: marchallObj(t, content.NewConteudo{TurmaID: turma.ID, Title: "X", Kind: content.KindLink, URL: "not a url"}), wantCode: http.StatusBadRequest,
		},
		{name: "published", method: http.MethodPost, path: "/v1/conteudos", token: profToken, body: marchallObj(t, video), wantCode: http.StatusCreated},
		{name: "outsider cannot list", path: "/v1/turmas/" + turma.ID + "/conteudos", token: getToken(t, env, caioActor), wantCode: http.StatusForbidden},
	}
	runHTTPTests(t, app, tests)

	req, rec := newAuthRequest(http.MethodGet, "/v1/turmas/"+turma.ID+"/conteudos", getToken(t, env, anaActor))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []content.Conteudo
	unmarshal(t, rec, &got)
	require.Len(t, got, 1)
	assert.Equal(t, content.KindVideo, got[0].Kind)
	assert.Equal(t, "Frações em 5 minutos", got[0].Title)
}

func Test_contentApi_avisos(t *testing.T) {
	env, app := setup(t)
	_, admin := testutil.CreateUser(t, env, user.RoleAdmin, "Dona Admin", "admin@escola.test")
	_, prof := testutil.CreateUser(t, env, user.RoleProfessor, "Paulo Freire", "paulo@escola.test")
	anaActor, ana := testutil.CreateAluno(t, env, "Ana Lima", "ana@escola.test")
	caioActor, _ := testutil.CreateAluno(t, env, "Caio Reis", "caio@escola.test")
	turma := testutil.CreateTurma(t, env, prof, "Matemática", 0)
	testutil.Enroll(t, env, turma.ID, ana.ID)

	clock := time.Date(2024, 8, 5, 9, 0, 0, 0, time.UTC)
	env.Content.NowFunc = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	profToken := getToken(t, env, prof)

	tests := []httpTest{
		{
			name: "professor cannot publish general avisos", method: http.MethodPost, path: "/v1/avisos", token: profToken,
			body: marchallObj(t, content.NewAviso{Title: "Feriado", Body: "Não haverá aula."}), wantCode: http.StatusForbidden,
		},
		{
			name: "aluno cannot publish", method: http.MethodPost, path: "/v1/avisos", token: getToken(t, env, anaActor),
			body: marchallObj(t, content.NewAviso{TurmaID: turma.ID, Title: "Oi", Body: "Oi"}), wantCode: http.StatusForbidden,
		},
		{
			name: "general aviso", method: http.MethodPost, path: "/v1/avisos", token: getToken(t, env, admin),
			body: marchallObj(t, content.NewAviso{Title: "Feriado", Body: "Não haverá aula."}), wantCode: http.StatusCreated,
		},
		{
			name: "turma aviso", method: http.MethodPost, path: "/v1/avisos", token: profToken,
			body: marchallObj(t, content.NewAviso{TurmaID: turma.ID, Title: "Prova", Body: "Prova na sexta."}), wantCode: http.StatusCreated,
		},
		{name: "body required", method: http.MethodPost, path: "/v1/avisos", token: profToken, body: marchallObj(t, content.NewAviso{TurmaID: turma.ID, Title: "Prova"}), wantCode: http.StatusBadRequest},
	}
	runHTTPTests(t, app, tests)

	titles := func(token, query string) []string {
		req, rec := newAuthRequest(http.MethodGet, "/v1/avisos"+query, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var avisos []content.Aviso
		unmarshal(t, rec, &avisos)
		ts := make([]string, 0, len(avisos))
		for _, a := range avisos {
			ts = append(ts, a.Title)
		}
		return ts
	}

	assert.Equal(t, []string{"Prova", "Feriado"}, titles(getToken(t, env, anaActor), ""))
	assert.Equal(t, []string{"Prova"}, titles(getToken(t, env, anaActor), "?limit=1"))
	assert.Equal(t, []string{"Feriado"}, titles(getToken(t, env, caioActor), ""))
}

func Test_contentApi_formularios(t *testing.T) {
	env, app := setup(t)
	_, prof := testutil.CreateUser(t, env, user.RoleProfessor, "Paulo Freire", "paulo@escola.test")
	_, other := testutil.CreateUser(t, env, user.RoleProfessor, "Outro Prof", "outro@escola.test")
	anaActor, ana := testutil.CreateAluno(t, env, "Ana Lima", "ana@escola.test")
	caioActor, _ := testutil.CreateAluno(t, env, "Caio Reis", "caio@escola.test")
	turma := testutil.CreateTurma(t, env, prof, "Matemática", 0)
	testutil.Enroll(t, env, turma.ID, ana.ID)
	aula := testutil.CreateAula(t, env, prof, turma.ID, time.Date(2024, 8, 5, 13, 0, 0, 0, time.UTC))

	profToken := getToken(t, env, prof)
	anaToken := getToken(t, env, anaActor)
	form := feedback.NewFormulario{
		AulaID: aula.ID,
		Title:  "Como foi a aula?",
		Perguntas: []feedback.Pergunta{
			{Text: "Nota", Kind: feedback.KindRating, Required: true},
			{Text: "Ritmo", Kind: feedback.KindChoice, Options: []string{"lento", "bom", "rápido"}},
			{Text: "Comentários", Kind: feedback.KindText},
		},
	}

	tests := []httpTest{
		{name: "aluno cannot create", method: http.MethodPost, path: "/v1/formularios", token: anaToken, body: marchallObj(t, form), wantCode: http.StatusForbidden},
		{name: "other professor cannot create", method: http.MethodPost, path: "/v1/formularios", token: getToken(t, env, other), body: marchallObj(t, form), wantCode: http.StatusForbidden},
		{
			name: "choice without options", method: http.MethodPost, path: "/v1/formularios", token: profToken,
			body: marchallObj(t, feedback.NewFormulario{AulaID: aula.ID, Title: "X", Perguntas: []feedback.Pergunta{{Text: "?", Kind: feedback.KindChoice}}}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"perguntas[0].options": "must have at least 2 options"}),
		},
	}
	runHTTPTests(t, app, tests)

	req, rec := newAuthRequest(http.MethodPost, "/v1/formularios", profToken, marchallObj(t, form))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var f feedback.Formulario
	unmarshal(t, rec, &f)

	path := "/v1/formularios/" + f.ID
	respond := func(rs ...feedback.Resposta) []byte { return marchallObj(t, feedback.NewResponse{Respostas: rs}) }

	tests = []httpTest{
		{name: "listed for the aula", path: "/v1/aulas/" + aula.ID + "/formularios", token: profToken, wantData: marchallObj(t, []feedback.Formulario{f})},
		{name: "aluno sees the form", path: path, token: anaToken, wantData: marchallObj(t, f)},
		{name: "outsider does not", path: path, token: getToken(t, env, caioActor), wantCode: http.StatusForbidden},
		{
			name: "rating out of range", method: http.MethodPost, path: path + "/respostas", token: anaToken,
			body: respond(feedback.Resposta{Rating: 6}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"respostas[0].rating": "must be between 1 and 5"}),
		},
		{
			name: "unknown option", method: http.MethodPost, path: path + "/respostas", token: anaToken,
			body: respond(feedback.Resposta{Rating: 4}, feedback.Resposta{Text: "ótimo"}), wantCode: http.StatusBadRequest,
		},
		{
			name: "required rating missing", method: http.MethodPost, path: path + "/respostas", token: anaToken,
			body: respond(feedback.Resposta{}, feedback.Resposta{Text: "bom"}), wantCode: http.StatusBadRequest,
		},
		{
			name: "answered", method: http.MethodPost, path: path + "/respostas", token: anaToken,
			body: respond(feedback.Resposta{Rating: 5}, feedback.Resposta{Text: "bom"}, feedback.Resposta{Text: " Gostei muito "}), wantCode: http.StatusCreated,
		},
		{
			name: "answered once", method: http.MethodPost, path: path + "/respostas", token: anaToken,
			body: respond(feedback.Resposta{Rating: 1}), wantCode: http.StatusConflict,
		},
		{name: "staff cannot answer", method: http.MethodPost, path: path + "/respostas", token: profToken, body: respond(feedback.Resposta{Rating: 5}), wantCode: http.StatusForbidden},
		{name: "alunos cannot read answers", path: path + "/respostas", token: anaToken, wantCode: http.StatusForbidden},
		{name: "unknown form", path: "/v1/formularios/5b0f3ef1-3d0e-4cbe-8f6b-3a9f6a0b2c44", token: profToken, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, app, tests)

	req, rec = newAuthRequest(http.MethodGet, path+"/respostas", profToken)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var rs []feedback.Response
	unmarshal(t, rec, &rs)
	require.Len(t, rs, 1)
	assert.Equal(t, ana.ID, rs[0].AlunoID)
	assert.Equal(t, "Gostei muito", rs[0].Respostas[2].Text)
}
