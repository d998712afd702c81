package content

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/escola/core"
)

type Kind string

const (
	KindVideo   Kind = "video"
	KindArtigo  Kind = "artigo"
	KindLink    Kind = "link"
	KindArquivo Kind = "arquivo"
)

// Conteudo is supplementary material published for a turma.
type Conteudo struct {
	ID          string    `json:"id"`
	TurmaID     string    `json:"turma_id"`
	Title       string    `json:"title"`
	Kind        Kind      `json:"kind"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Aviso is an announcement. Avisos without a turma are shown to everyone.
type Aviso struct {
	ID          string    `json:"id"`
	TurmaID     string    `json:"turma_id,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CreatedBy   string    `json:"created_by,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

type NewConteudo struct {
	TurmaID     string `json:"turma_id" validate:"required,uuid"`
	Title       string `json:"title" validate:"required"`
	Kind        Kind   `json:"kind" validate:"required,oneof=video artigo link arquivo"`
	URL         string `json:"url" validate:"omitempty,url"`
	Description string `json:"description"`
}

func (nc *NewConteudo) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Kind = Kind(core.CleanString(string(nc.Kind), true /* lower */))
	nc.URL = core.CleanString(nc.URL)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type NewAviso struct {
	TurmaID string `json:"turma_id" validate:"omitempty,uuid"`
	Title   string `json:"title" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

func (na *NewAviso) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Body = core.CleanString(na.Body)
	return validate.Struct(na)
}
