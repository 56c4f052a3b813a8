package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Cliente holds the identity data extracted from a customer's bill.
// Records are written by the extraction pipeline and read-only here.
type Cliente struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Matricula string             `bson:"matricula" json:"matricula"`
	Nome      string             `bson:"nome" json:"nome"`
	Endereco  string             `bson:"endereco,omitempty" json:"endereco,omitempty"`
}

// Fatura is one structured billing record per customer per month.
// Uniquely identified by (matricula, ano, mes); immutable once created.
type Fatura struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Matricula       string             `bson:"matricula" json:"matricula"`
	Ano             int                `bson:"ano" json:"ano"`
	Mes             int                `bson:"mes" json:"mes"`
	ConsumoKWh      float64            `bson:"consumo_kwh" json:"consumo_kwh"`
	ValorTotal      float64            `bson:"valor_total" json:"valor_total"`
	Endereco        string             `bson:"endereco,omitempty" json:"endereco,omitempty"`
	ClasseTarifaria string             `bson:"classe_tarifaria,omitempty" json:"classe_tarifaria,omitempty"`
	Bandeira        string             `bson:"bandeira,omitempty" json:"bandeira,omitempty"`
	DataVencimento  time.Time          `bson:"data_vencimento,omitempty" json:"data_vencimento,omitempty"`
	ExtraidaEm      time.Time          `bson:"extraida_em" json:"extraida_em"`
}

// Periodo returns the sortable "YYYY-MM" key for the billing month.
func (f Fatura) Periodo() string {
	return fmt.Sprintf("%04d-%02d", f.Ano, f.Mes)
}

// Rotulo returns the human label used in charts and prompts, e.g. "Mar/2024".
func (f Fatura) Rotulo() string {
	return fmt.Sprintf("%s/%d", nomeMesAbrev(f.Mes), f.Ano)
}

// TextoIndexavel renders the fatura as the normalized-ready text that gets
// embedded. Two faturas with identical rendered text share one embedding.
func (f Fatura) TextoIndexavel() string {
	return fmt.Sprintf(
		"Fatura de energia da matrícula %s referente a %s de %d. Consumo de %.1f kWh, valor total de R$ %.2f. Classe tarifária %s. Endereço: %s.",
		f.Matricula, nomeMes(f.Mes), f.Ano, f.ConsumoKWh, f.ValorTotal, f.ClasseTarifaria, f.Endereco,
	)
}

// DocumentRef resolves a vector-index match back to a Fatura without the
// index owning any document content.
type DocumentRef struct {
	Matricula string `bson:"matricula" json:"matricula"`
	Periodo   string `bson:"periodo" json:"periodo"`
}

// Ref returns the back-reference registered into the vector index.
func (f Fatura) Ref() DocumentRef {
	return DocumentRef{Matricula: f.Matricula, Periodo: f.Periodo()}
}

var mesesPT = [13]string{"", "Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro"}

func nomeMes(m int) string {
	if m < 1 || m > 12 {
		return "?"
	}
	return mesesPT[m]
}

func nomeMesAbrev(m int) string {
	if m < 1 || m > 12 {
		return "?"
	}
	return mesesPT[m][:3]
}
