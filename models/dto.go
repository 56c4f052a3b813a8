package models

// Wire DTOs for the public JSON contract. Field names are part of the
// stable contract and must not change with internal refactors.

// SessaoRequest starts a new session for a matricula.
type SessaoRequest struct {
	Matricula string `json:"matricula" binding:"required"`
}

// SessaoResponse returns the opaque session token. NomeUsuario stays
// empty until the first successful identity resolution.
type SessaoResponse struct {
	SessaoID    string `json:"sessao_id"`
	NomeUsuario string `json:"nome_usuario"`
}

// MensagemRequest carries one user question scoped to a session.
type MensagemRequest struct {
	SessaoID string `json:"sessao_id" binding:"required"`
	Mensagem string `json:"mensagem" binding:"required"`
}

// MensagemResponse is the generated answer plus an optional structured
// payload the frontend can chart.
type MensagemResponse struct {
	Resposta        string           `json:"resposta"`
	DadosAdicionais *DadosAdicionais `json:"dados_adicionais"`
}

// Payload discriminators for DadosAdicionais.Tipo.
const (
	TipoVisualizacaoConsumo = "visualizacao_consumo"
	TipoPrevisao            = "previsao"
	TipoComparacao          = "comparacao"
)

// DadosAdicionais wraps one of the derived payloads, discriminated by Tipo.
type DadosAdicionais struct {
	Tipo  string `json:"tipo"`
	Dados any    `json:"dados"`
}

// VisualizacaoConsumo holds parallel series for the consumption chart.
// The three slices always have equal length, ordered by period.
type VisualizacaoConsumo struct {
	Labels  []string  `json:"labels"`
	Consumo []float64 `json:"consumo"`
	Valores []float64 `json:"valores"`
}

// PrevisaoItem is one forecast month.
type PrevisaoItem struct {
	Mes             string  `json:"mes"`
	ConsumoEstimado float64 `json:"consumo_estimado"`
	MargemErro      float64 `json:"margem_erro"`
}

// Previsao is the simple forecast payload for the next months.
type Previsao struct {
	PrevisaoProximosMeses []PrevisaoItem `json:"previsao_proximos_meses"`
}

// Comparacao contrasts consumption between two billing periods.
type Comparacao struct {
	Periodo1            string  `json:"periodo1"`
	Periodo2            string  `json:"periodo2"`
	Consumo1            float64 `json:"consumo1"`
	Consumo2            float64 `json:"consumo2"`
	DiferencaPercentual float64 `json:"diferenca_percentual"`
}
