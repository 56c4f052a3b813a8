package session

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"time"

	"conta-luz-chatbot/internal/logger"
	"conta-luz-chatbot/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrMatriculaInvalida rejects a malformed customer identifier.
	ErrMatriculaInvalida = errors.New("matricula invalida")
	// ErrNaoEncontrada means the token is unknown to the registry.
	ErrNaoEncontrada = errors.New("sessao nao encontrada")
	// ErrExpirada means the session exceeded its inactivity window and
	// must be recreated.
	ErrExpirada = errors.New("sessao expirada")
)

var matriculaRe = regexp.MustCompile(`^\d{6,12}$`)

const chaveSessao = "sessao:"

// Registry tracks active sessions in memory and mirrors them to Redis so
// they survive a restart. Expiry is checked lazily on every access; the
// periodic sweep only reclaims memory.
type Registry struct {
	mu          sync.RWMutex
	sessoes     map[string]*models.Sessao
	inatividade time.Duration
	rdb         *redis.Client
	agora       func() time.Time
}

// NewRegistry creates a registry with the configured inactivity window.
// rdb may be nil; persistence is then skipped.
func NewRegistry(inatividade time.Duration, rdb *redis.Client) *Registry {
	return &Registry{
		sessoes:     make(map[string]*models.Sessao),
		inatividade: inatividade,
		rdb:         rdb,
		agora:       time.Now,
	}
}

// Create allocates a new ACTIVE session bound to the matricula. The
// binding is immutable for the session's lifetime.
func (r *Registry) Create(ctx context.Context, matricula string) (*models.Sessao, error) {
	if !matriculaRe.MatchString(matricula) {
		return nil, ErrMatriculaInvalida
	}

	agora := r.agora()
	s := &models.Sessao{
		ID:              uuid.NewString(),
		Matricula:       matricula,
		Estado:          models.SessaoAtiva,
		CriadaEm:        agora,
		UltimaAtividade: agora,
	}

	r.mu.Lock()
	r.sessoes[s.ID] = s
	r.mu.Unlock()

	r.persistir(ctx, s)
	logger.Info("sessao criada", "sessao_id", s.ID, "matricula", matricula)
	return s, nil
}

// Touch validates the session and refreshes its activity deadline,
// returning the bound matricula. An exceeded inactivity window flips the
// session to EXPIRED and fails with ErrExpirada.
func (r *Registry) Touch(ctx context.Context, sessaoID string) (string, error) {
	r.mu.Lock()
	s, ok := r.sessoes[sessaoID]
	if !ok {
		// The Redis restore is a network round-trip; it must not run
		// under the registry lock or one unknown id stalls every other
		// session.
		r.mu.Unlock()
		restaurada := r.restaurar(ctx, sessaoID)
		if restaurada == nil {
			return "", ErrNaoEncontrada
		}
		r.mu.Lock()
		if s, ok = r.sessoes[sessaoID]; !ok {
			s = restaurada
			r.sessoes[sessaoID] = s
		}
	}

	if s.Estado == models.SessaoExpirada {
		r.mu.Unlock()
		return "", ErrExpirada
	}

	if r.agora().Sub(s.UltimaAtividade) > r.inatividade {
		s.Estado = models.SessaoExpirada
		r.mu.Unlock()
		r.remover(ctx, sessaoID)
		return "", ErrExpirada
	}

	s.UltimaAtividade = r.agora()
	copia := *s
	r.mu.Unlock()

	r.persistir(ctx, &copia)
	return copia.Matricula, nil
}

// Nome returns the session's resolved display name, empty if not yet set.
func (r *Registry) Nome(sessaoID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sessoes[sessaoID]; ok {
		return s.Nome
	}
	return ""
}

// ResolverNome fills in the lazily resolved display name. Last write
// wins: a later resolution overwrites an earlier one.
func (r *Registry) ResolverNome(ctx context.Context, sessaoID, nome string) {
	r.mu.Lock()
	s, ok := r.sessoes[sessaoID]
	if !ok {
		r.mu.Unlock()
		return
	}
	s.Nome = nome
	copia := *s
	r.mu.Unlock()

	r.persistir(ctx, &copia)
}

// Invalidate is the explicit logout. Idempotent: invalidating an unknown
// or already expired session is a no-op.
func (r *Registry) Invalidate(ctx context.Context, sessaoID string) {
	r.mu.Lock()
	if s, ok := r.sessoes[sessaoID]; ok {
		s.Estado = models.SessaoExpirada
	}
	r.mu.Unlock()
	r.remover(ctx, sessaoID)
}

// Sweep reclaims memory held by sessions past their inactivity window.
// Advisory only; Touch re-checks expiry regardless.
func (r *Registry) Sweep(ctx context.Context) int {
	agora := r.agora()
	var expiradas []string

	r.mu.Lock()
	for id, s := range r.sessoes {
		if s.Estado == models.SessaoExpirada || agora.Sub(s.UltimaAtividade) > r.inatividade {
			delete(r.sessoes, id)
			expiradas = append(expiradas, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expiradas {
		r.remover(ctx, id)
	}
	if len(expiradas) > 0 {
		logger.Info("sessoes inativas removidas", "quantidade", len(expiradas))
	}
	return len(expiradas)
}

// persistir mirrors the session to Redis. Fail-open: a persistence error
// never blocks the request path.
func (r *Registry) persistir(ctx context.Context, s *models.Sessao) {
	if r.rdb == nil {
		return
	}
	dados, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, chaveSessao+s.ID, dados, 2*r.inatividade).Err(); err != nil {
		logger.Warn("falha ao persistir sessao", "sessao_id", s.ID, "error", err)
	}
}

// restaurar loads a session from Redis after a restart. Runs without the
// registry lock; the caller re-checks the map before inserting.
func (r *Registry) restaurar(ctx context.Context, sessaoID string) *models.Sessao {
	if r.rdb == nil {
		return nil
	}
	dados, err := r.rdb.Get(ctx, chaveSessao+sessaoID).Bytes()
	if err != nil {
		return nil
	}
	var s models.Sessao
	if err := json.Unmarshal(dados, &s); err != nil {
		logger.Warn("sessao persistida corrompida", "sessao_id", sessaoID, "error", err)
		return nil
	}
	logger.Info("sessao restaurada", "sessao_id", sessaoID)
	return &s
}

func (r *Registry) remover(ctx context.Context, sessaoID string) {
	if r.rdb == nil {
		return
	}
	if err := r.rdb.Del(ctx, chaveSessao+sessaoID).Err(); err != nil {
		logger.Warn("falha ao remover sessao persistida", "sessao_id", sessaoID, "error", err)
	}
}
