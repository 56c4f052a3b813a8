package utils

import (
	"fmt"
	"strings"
)

// FormatarNumero renders a float in Brazilian convention: comma decimal
// separator and dot thousands separator, e.g. 1234.5 -> "1.234,50".
func FormatarNumero(valor float64, decimais int) string {
	s := fmt.Sprintf("%.*f", decimais, valor)
	partes := strings.SplitN(s, ".", 2)
	inteira := partes[0]

	negativo := strings.HasPrefix(inteira, "-")
	if negativo {
		inteira = inteira[1:]
	}

	var b strings.Builder
	for i, d := range inteira {
		if i > 0 && (len(inteira)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}

	out := b.String()
	if negativo {
		out = "-" + out
	}
	if len(partes) == 2 {
		out += "," + partes[1]
	}
	return out
}

// FormatarReais renders a currency amount, e.g. "R$ 1.234,56".
func FormatarReais(valor float64) string {
	return "R$ " + FormatarNumero(valor, 2)
}
