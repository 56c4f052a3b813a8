package models

import "time"

// Session states. Expiry is evaluated lazily on access, so a stored
// session may still read ATIVA after its deadline passed.
const (
	SessaoAtiva    = "ativa"
	SessaoExpirada = "expirada"
)

// Sessao binds an opaque token to a customer matricula for a bounded
// inactivity window. Matricula is set at creation and never changes;
// Nome is resolved lazily after the first successful identity lookup.
type Sessao struct {
	ID              string    `bson:"_id" json:"sessao_id"`
	Matricula       string    `bson:"matricula" json:"matricula"`
	Nome            string    `bson:"nome,omitempty" json:"nome,omitempty"`
	Estado          string    `bson:"estado" json:"estado"`
	CriadaEm        time.Time `bson:"criada_em" json:"criada_em"`
	UltimaAtividade time.Time `bson:"ultima_atividade" json:"ultima_atividade"`
}
