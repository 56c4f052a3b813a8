package pipeline

import (
	"fmt"
	"math"
	"sort"

	"conta-luz-chatbot/models"
	"conta-luz-chatbot/services"
	"conta-luz-chatbot/utils"
)

// derivarPayload builds the structured chart payload for the intent, or
// nil when the retrieved documents cannot support one.
func derivarPayload(tipo string, faturas []models.Fatura) *models.DadosAdicionais {
	if len(faturas) == 0 {
		return nil
	}

	ordenadas := make([]models.Fatura, len(faturas))
	copy(ordenadas, faturas)
	sort.Slice(ordenadas, func(i, j int) bool {
		return ordenadas[i].Periodo() < ordenadas[j].Periodo()
	})

	switch tipo {
	case services.ConsultaPrevisao:
		if p := derivarPrevisao(ordenadas); p != nil {
			return &models.DadosAdicionais{Tipo: models.TipoPrevisao, Dados: p}
		}
	case services.ConsultaComparacao:
		if c := derivarComparacao(ordenadas); c != nil {
			return &models.DadosAdicionais{Tipo: models.TipoComparacao, Dados: c}
		}
	}

	// Consumption/spend/history questions all chart the same series.
	return &models.DadosAdicionais{Tipo: models.TipoVisualizacaoConsumo, Dados: derivarVisualizacao(ordenadas)}
}

// derivarVisualizacao emits the parallel labels/consumo/valores series,
// always equal length, ordered by period.
func derivarVisualizacao(faturas []models.Fatura) *models.VisualizacaoConsumo {
	v := &models.VisualizacaoConsumo{
		Labels:  make([]string, 0, len(faturas)),
		Consumo: make([]float64, 0, len(faturas)),
		Valores: make([]float64, 0, len(faturas)),
	}
	for _, f := range faturas {
		v.Labels = append(v.Labels, f.Rotulo())
		v.Consumo = append(v.Consumo, f.ConsumoKWh)
		v.Valores = append(v.Valores, f.ValorTotal)
	}
	return v
}

// derivarPrevisao is the original product's naive forecast: the moving
// average of the most recent three months projected three months ahead,
// with the observed spread as the error margin. Needs at least two
// months of history.
func derivarPrevisao(faturas []models.Fatura) *models.Previsao {
	if len(faturas) < 2 {
		return nil
	}

	janela := faturas
	if len(janela) > 3 {
		janela = janela[len(janela)-3:]
	}

	var soma float64
	for _, f := range janela {
		soma += f.ConsumoKWh
	}
	media := soma / float64(len(janela))

	var desvio float64
	for _, f := range janela {
		if d := math.Abs(f.ConsumoKWh - media); d > desvio {
			desvio = d
		}
	}

	ultima := faturas[len(faturas)-1]
	itens := make([]models.PrevisaoItem, 0, 3)
	ano, mes := ultima.Ano, ultima.Mes
	for i := 0; i < 3; i++ {
		mes++
		if mes > 12 {
			mes = 1
			ano++
		}
		itens = append(itens, models.PrevisaoItem{
			Mes:             (models.Fatura{Ano: ano, Mes: mes}).Rotulo(),
			ConsumoEstimado: arredondar(media),
			MargemErro:      arredondar(desvio),
		})
	}
	return &models.Previsao{PrevisaoProximosMeses: itens}
}

// derivarComparacao contrasts the two most recent retrieved periods.
func derivarComparacao(faturas []models.Fatura) *models.Comparacao {
	if len(faturas) < 2 {
		return nil
	}

	anterior := faturas[len(faturas)-2]
	atual := faturas[len(faturas)-1]

	var delta float64
	if anterior.ConsumoKWh != 0 {
		delta = (atual.ConsumoKWh - anterior.ConsumoKWh) / anterior.ConsumoKWh * 100
	}

	return &models.Comparacao{
		Periodo1:            anterior.Rotulo(),
		Periodo2:            atual.Rotulo(),
		Consumo1:            anterior.ConsumoKWh,
		Consumo2:            atual.ConsumoKWh,
		DiferencaPercentual: arredondar(delta),
	}
}

func arredondar(v float64) float64 {
	return math.Round(v*100) / 100
}

// resumoFatura renders one retrieved fatura as a context line for the
// generation prompt.
func resumoFatura(f models.Fatura) string {
	return fmt.Sprintf("%s: consumo de %s kWh, valor de %s (classe %s)",
		f.Rotulo(), utils.FormatarNumero(f.ConsumoKWh, 1), utils.FormatarReais(f.ValorTotal), f.ClasseTarifaria)
}
