package services

import (
	"regexp"
	"strings"
)

// Query intents. The intent decides which structured payload (chart
// data, forecast, comparison) accompanies the generated answer.
const (
	ConsultaConsumo      = "consumo"
	ConsultaGasto        = "gasto"
	ConsultaComparacao   = "comparacao"
	ConsultaPrevisao     = "previsao"
	ConsultaAnalise      = "analise"
	ConsultaHistorico    = "historico"
	ConsultaProcedimento = "procedimento"
	ConsultaGeral        = "geral"
)

var acentos = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

var padroesConsulta = map[string][]*regexp.Regexp{
	ConsultaConsumo: {
		regexp.MustCompile(`(consumo|consumiu|kwh|kw/h|quilowatt|quanto.*consum)`),
		regexp.MustCompile(`(usar|uso|utiliz)\s+(energia|luz|eletricidade)`),
		regexp.MustCompile(`(quanto|media).*(energia|luz)`),
	},
	ConsultaGasto: {
		regexp.MustCompile(`(gasto|gastei|valor|custo|paguei|conta|fatura|dinheiro|reais|r\$|quanto .*pag|pagou|pago)`),
		regexp.MustCompile(`(quanto|valor|preco).*(conta|fatura|energia|luz)`),
		regexp.MustCompile(`(custou|custa|saiu)`),
	},
	ConsultaComparacao: {
		regexp.MustCompile(`(compar|diferenca|mais que|menos que|aumento|diminuicao|variacao|percentual|mudanca)`),
		regexp.MustCompile(`(maior|menor).*(consumo|gasto|valor|conta)`),
	},
	ConsultaPrevisao: {
		regexp.MustCompile(`(previs|proximo|futur|estim|projecao|quanto.*(sera|vai custar|vou gastar|vai dar|vai ficar))`),
		regexp.MustCompile(`(proximo|seguinte).*(mes|bimestre|trimestre|fatura|conta)`),
		regexp.MustCompile(`(vai|ira).*(aumentar|diminuir|custar)`),
	},
	ConsultaAnalise: {
		regexp.MustCompile(`(analise|analisar|tendencia|padrao|media|regular|normal|usual|comportamento)`),
		regexp.MustCompile(`(media|mediana|total).*(consumo|gasto|energia|luz)`),
		regexp.MustCompile(`(maximo|minimo|maior|menor).*(conta|valor|consumo)`),
	},
	ConsultaHistorico: {
		regexp.MustCompile(`(historico|antigo|anterior|passado|ultimos?|anteriores).*(conta|consumo|gasto|fatura)`),
		regexp.MustCompile(`(meses|bimestre|trimestre|semestre|ano).*(anteriores|passados)`),
	},
	ConsultaProcedimento: {
		regexp.MustCompile(`(como|dica|sugestao|reduzir|diminuir|economizar|poupar).*(gasto|consumo|energia|luz|conta)`),
		regexp.MustCompile(`(eficien|reducao|diminuicao).*(energetica|consumo|gasto)`),
	},
}

// Classifier assigns a billing-query intent to free text using the rule
// patterns above. Deterministic: identical input yields identical intent.
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

// Classificar scores each intent by pattern matches over the normalized
// text. Falls back to ConsultaGeral when nothing matches.
func (c *Classifier) Classificar(texto string) map[string]float64 {
	norm := normalizarConsulta(texto)

	scores := map[string]float64{}
	total := 0.0
	for tipo, padroes := range padroesConsulta {
		for _, padrao := range padroes {
			n := len(padrao.FindAllString(norm, -1))
			scores[tipo] += float64(n) * 0.5
			total += float64(n) * 0.5
		}
	}

	if total == 0 {
		return map[string]float64{ConsultaGeral: 1.0}
	}
	for tipo := range scores {
		scores[tipo] /= total
	}
	return scores
}

// TipoPrincipal returns the highest-scoring intent, with a fixed
// priority order as tie-break so classification stays deterministic.
func (c *Classifier) TipoPrincipal(texto string) string {
	scores := c.Classificar(texto)

	ordem := []string{
		ConsultaComparacao, ConsultaPrevisao, ConsultaConsumo, ConsultaGasto,
		ConsultaAnalise, ConsultaHistorico, ConsultaProcedimento, ConsultaGeral,
	}

	melhor := ConsultaGeral
	melhorScore := 0.0
	for _, tipo := range ordem {
		if scores[tipo] > melhorScore {
			melhor = tipo
			melhorScore = scores[tipo]
		}
	}
	return melhor
}

// normalizarConsulta lowercases, strips accents and collapses everything
// outside [a-z0-9$ ] so the regex patterns stay simple.
func normalizarConsulta(texto string) string {
	texto = acentos.Replace(strings.ToLower(texto))

	var b strings.Builder
	b.Grow(len(texto))
	ultimoEspaco := false
	for _, r := range texto {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '$' || r == '/':
			b.WriteRune(r)
			ultimoEspaco = false
		default:
			if !ultimoEspaco {
				b.WriteByte(' ')
				ultimoEspaco = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
