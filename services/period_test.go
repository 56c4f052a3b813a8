package services

import (
	"testing"
	"time"
)

func extractorFixo() *PeriodExtractor {
	pe := NewPeriodExtractor()
	pe.Agora = func() time.Time {
		return time.Date(2024, 4, 18, 10, 30, 0, 0, time.UTC)
	}
	return pe
}

func mes(ano, m int) time.Time {
	return time.Date(ano, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
}

func TestExtrairUltimoMes(t *testing.T) {
	pe := extractorFixo()

	p, ok := pe.Extrair("qual foi meu consumo no último mês?")
	if !ok {
		t.Fatal("period phrase not recognized")
	}
	if !p.De.Equal(mes(2024, 3)) || !p.Ate.Equal(mes(2024, 3)) {
		t.Errorf("período = %s, want 2024-03 only", p)
	}
}

func TestExtrairUltimosNMeses(t *testing.T) {
	pe := extractorFixo()

	p, ok := pe.Extrair("como foi meu gasto nos últimos 3 meses")
	if !ok {
		t.Fatal("period phrase not recognized")
	}
	if !p.De.Equal(mes(2024, 1)) || !p.Ate.Equal(mes(2024, 3)) {
		t.Errorf("período = %s, want 2024-01..2024-03", p)
	}
}

func TestExtrairEsteMes(t *testing.T) {
	pe := extractorFixo()

	p, ok := pe.Extrair("quanto já consumi este mês?")
	if !ok {
		t.Fatal("period phrase not recognized")
	}
	if !p.De.Equal(mes(2024, 4)) || !p.Ate.Equal(mes(2024, 4)) {
		t.Errorf("período = %s, want 2024-04 only", p)
	}
}

func TestExtrairUltimoAno(t *testing.T) {
	pe := extractorFixo()

	p, ok := pe.Extrair("resumo do ano passado")
	if !ok {
		t.Fatal("period phrase not recognized")
	}
	if !p.De.Equal(mes(2023, 1)) || !p.Ate.Equal(mes(2023, 12)) {
		t.Errorf("período = %s, want all of 2023", p)
	}
}

func TestExtrairMesNomeado(t *testing.T) {
	pe := extractorFixo()

	p, ok := pe.Extrair("qual foi a conta de março de 2023?")
	if !ok {
		t.Fatal("period phrase not recognized")
	}
	if !p.De.Equal(mes(2023, 3)) || !p.Ate.Equal(mes(2023, 3)) {
		t.Errorf("período = %s, want 2023-03 only", p)
	}
}

func TestExtrairMesNomeadoSemAno(t *testing.T) {
	pe := extractorFixo()

	// Without an explicit year the reference year is the current one.
	p, ok := pe.Extrair("quanto gastei em janeiro?")
	if !ok {
		t.Fatal("period phrase not recognized")
	}
	if !p.De.Equal(mes(2024, 1)) || !p.Ate.Equal(mes(2024, 1)) {
		t.Errorf("período = %s, want 2024-01 only", p)
	}
}

func TestExtrairPadraoSemMencao(t *testing.T) {
	pe := extractorFixo()

	p, ok := pe.Extrair("qual é a bandeira tarifária?")
	if ok {
		t.Fatal("no period phrase present, ok must be false")
	}
	if !p.De.Equal(mes(2023, 4)) || !p.Ate.Equal(mes(2024, 4)) {
		t.Errorf("default período = %s, want trailing 12 months", p)
	}
}

func TestPeriodoContem(t *testing.T) {
	p := Periodo{De: mes(2024, 1), Ate: mes(2024, 3)}

	casos := []struct {
		ano, mes int
		dentro   bool
	}{
		{2023, 12, false},
		{2024, 1, true},
		{2024, 2, true},
		{2024, 3, true},
		{2024, 4, false},
	}
	for _, c := range casos {
		if got := p.Contem(c.ano, c.mes); got != c.dentro {
			t.Errorf("Contem(%d, %d) = %v, want %v", c.ano, c.mes, got, c.dentro)
		}
	}
}
