package services

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Periodo is a closed month range used to filter context documents.
type Periodo struct {
	De  time.Time // first day of the first month
	Ate time.Time // first day of the last month
}

// Contem reports whether the billing month (ano, mes) falls inside the range.
func (p Periodo) Contem(ano, mes int) bool {
	m := time.Date(ano, time.Month(mes), 1, 0, 0, 0, 0, time.UTC)
	return !m.Before(p.De) && !m.After(p.Ate)
}

func (p Periodo) String() string {
	return fmt.Sprintf("%04d-%02d..%04d-%02d", p.De.Year(), p.De.Month(), p.Ate.Year(), p.Ate.Month())
}

var mesesConsulta = map[string]int{
	"janeiro": 1, "fevereiro": 2, "marco": 3, "abril": 4, "maio": 5, "junho": 6,
	"julho": 7, "agosto": 8, "setembro": 9, "outubro": 10, "novembro": 11, "dezembro": 12,
}

var (
	ultimoMesRe = regexp.MustCompile(`(ultimo|passado|anterior)\s+mes|mes\s+(passado|anterior)`)
	ultimosNRe  = regexp.MustCompile(`(ultimos|passados|anteriores)\s+(\d+)\s+mes`)
	esteMesRe   = regexp.MustCompile(`(este|atual|corrente)\s+mes`)
	ultimoAnoRe = regexp.MustCompile(`(ultimo|passado|anterior)\s+ano|ano\s+(passado|anterior)`)
	esteAnoRe   = regexp.MustCompile(`(este|atual|corrente)\s+ano`)
	anoRe       = regexp.MustCompile(`\b(20\d{2})\b`)
	mesNomeRe   = regexp.MustCompile(`\b(janeiro|fevereiro|marco|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)\b`)
)

// PeriodExtractor parses Portuguese period phrases ("último mês",
// "últimos 3 meses", "março de 2024", "este ano") out of a question.
// The reference clock is injectable for tests.
type PeriodExtractor struct {
	Agora func() time.Time
}

func NewPeriodExtractor() *PeriodExtractor {
	return &PeriodExtractor{Agora: time.Now}
}

// Extrair returns the month range mentioned in the text and whether any
// period phrase was recognized. Default on no match: the last 12 months.
func (pe *PeriodExtractor) Extrair(texto string) (Periodo, bool) {
	norm := normalizarConsulta(texto)
	hoje := pe.Agora()
	mesAtual := time.Date(hoje.Year(), hoje.Month(), 1, 0, 0, 0, 0, time.UTC)

	if ultimoMesRe.MatchString(norm) {
		anterior := mesAtual.AddDate(0, -1, 0)
		return Periodo{De: anterior, Ate: anterior}, true
	}

	if m := ultimosNRe.FindStringSubmatch(norm); m != nil {
		n, _ := strconv.Atoi(m[2])
		if n < 1 {
			n = 1
		}
		return Periodo{De: mesAtual.AddDate(0, -n, 0), Ate: mesAtual.AddDate(0, -1, 0)}, true
	}

	if esteMesRe.MatchString(norm) {
		return Periodo{De: mesAtual, Ate: mesAtual}, true
	}

	if ultimoAnoRe.MatchString(norm) {
		ano := hoje.Year() - 1
		return Periodo{
			De:  time.Date(ano, 1, 1, 0, 0, 0, 0, time.UTC),
			Ate: time.Date(ano, 12, 1, 0, 0, 0, 0, time.UTC),
		}, true
	}

	if esteAnoRe.MatchString(norm) {
		return Periodo{
			De:  time.Date(hoje.Year(), 1, 1, 0, 0, 0, 0, time.UTC),
			Ate: mesAtual,
		}, true
	}

	if m := mesNomeRe.FindStringSubmatch(norm); m != nil {
		mes := mesesConsulta[m[1]]
		ano := hoje.Year()
		if am := anoRe.FindStringSubmatch(norm); am != nil {
			ano, _ = strconv.Atoi(am[1])
		}
		ref := time.Date(ano, time.Month(mes), 1, 0, 0, 0, 0, time.UTC)
		return Periodo{De: ref, Ate: ref}, true
	}

	return Periodo{De: mesAtual.AddDate(0, -12, 0), Ate: mesAtual}, false
}
