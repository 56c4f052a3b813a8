package pipeline

import "errors"

var (
	// ErrConsultaInvalida rejects an empty or over-long message before
	// any provider cost is incurred.
	ErrConsultaInvalida = errors.New("consulta invalida")

	// ErrProviderTimeout is a provider call that exceeded its deadline.
	// Distinct from a provider error so callers can tell "slow" from
	// "broken"; both are retry-safe.
	ErrProviderTimeout = errors.New("tempo limite do provedor excedido")
)
