package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"conta-luz-chatbot/internal/ai"
	"conta-luz-chatbot/internal/embedding"
	"conta-luz-chatbot/internal/index"
	"conta-luz-chatbot/internal/logger"
	"conta-luz-chatbot/internal/session"
	"conta-luz-chatbot/internal/store"
	"conta-luz-chatbot/models"
	"conta-luz-chatbot/services"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Per-query states, recorded on the trace span. FAILED is reachable from
// any of them.
const (
	estadoRecebido        = "RECEIVED"
	estadoSessaoValidada  = "SESSION_VALIDATED"
	estadoEmbutido        = "EMBEDDED"
	estadoRecuperado      = "RETRIEVED"
	estadoContextoMontado = "CONTEXT_ASSEMBLED"
	estadoRespondido      = "ANSWERED"
)

// Options bound the pipeline's retrieval and provider behavior.
type Options struct {
	TopK              int
	MaxMensagemChars  int
	MaxContextoChars  int
	GenerationTimeout time.Duration
}

// Pipeline orchestrates one query end to end: session gate, query
// embedding, scoped similarity search, bounded context assembly and the
// generation call. All collaborators are passed in explicitly; the
// pipeline holds no ambient state.
type Pipeline struct {
	registry  *session.Registry
	cache     *embedding.Cache
	idx       *index.Index
	store     store.BillingStore
	gerador   ai.Generator
	classific *services.Classifier
	periodos  *services.PeriodExtractor
	opts      Options
}

func New(registry *session.Registry, cache *embedding.Cache, idx *index.Index,
	billing store.BillingStore, gerador ai.Generator, opts Options) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxMensagemChars <= 0 {
		opts.MaxMensagemChars = 1000
	}
	if opts.MaxContextoChars <= 0 {
		opts.MaxContextoChars = 6000
	}
	return &Pipeline{
		registry:  registry,
		cache:     cache,
		idx:       idx,
		store:     billing,
		gerador:   gerador,
		classific: services.NewClassifier(),
		periodos:  services.NewPeriodExtractor(),
		opts:      opts,
	}
}

// Handle processes one user message scoped to a session and returns the
// generated answer plus any derived chart payload. Session, query and
// provider failures surface as the package sentinel errors; no partial
// state is committed on any failure path.
func (p *Pipeline) Handle(ctx context.Context, sessaoID, mensagem string) (*models.MensagemResponse, error) {
	tracer := otel.Tracer("query-pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.handle")
	defer span.End()

	estado := estadoRecebido
	defer func() { span.SetAttributes(attribute.String("pipeline.final_state", estado)) }()

	// Session gate. Expired and unknown sessions propagate unchanged.
	matricula, err := p.registry.Touch(ctx, sessaoID)
	if err != nil {
		return nil, err
	}
	estado = estadoSessaoValidada

	// Bound the message before any provider cost.
	mensagem = strings.TrimSpace(mensagem)
	if mensagem == "" {
		return nil, fmt.Errorf("%w: mensagem vazia", ErrConsultaInvalida)
	}
	if len([]rune(mensagem)) > p.opts.MaxMensagemChars {
		return nil, fmt.Errorf("%w: mensagem excede %d caracteres", ErrConsultaInvalida, p.opts.MaxMensagemChars)
	}

	p.resolverIdentidade(ctx, sessaoID, matricula)

	// Embed the question through the cache.
	vetor, err := p.cache.GetOrCompute(ctx, mensagem)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: embedding", ErrProviderTimeout)
		}
		return nil, err
	}
	estado = estadoEmbutido

	// The index is not customer-scoped; oversample and post-filter to
	// the session's matricula so no cross-customer document can leak.
	brutos, err := p.idx.Search(vetor, p.opts.TopK*8)
	if err != nil {
		return nil, err
	}

	faturas := p.resolverResultados(ctx, brutos, matricula)

	// A recognized period phrase ("último mês", "março de 2024") narrows
	// the context to the months it names.
	if periodo, ok := p.periodos.Extrair(mensagem); ok {
		filtradas := faturas[:0]
		for _, f := range faturas {
			if periodo.Contem(f.Ano, f.Mes) {
				filtradas = append(filtradas, f)
			}
		}
		faturas = filtradas
	}
	estado = estadoRecuperado
	span.SetAttributes(attribute.Int("pipeline.retrieved_docs", len(faturas)))

	// Zero matches is a legitimate outcome (new customer): proceed with
	// an empty context rather than failing.
	contexto := p.montarContexto(faturas)
	tipo := p.classific.TipoPrincipal(mensagem)
	payload := derivarPayload(tipo, faturas)
	estado = estadoContextoMontado
	span.SetAttributes(attribute.String("pipeline.query_type", tipo))

	genCtx := ctx
	if p.opts.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, p.opts.GenerationTimeout)
		defer cancel()
	}
	resposta, err := p.gerador.Generate(genCtx, mensagem, contexto)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: geracao", ErrProviderTimeout)
		}
		return nil, err
	}
	estado = estadoRespondido

	return &models.MensagemResponse{
		Resposta:        resposta,
		DadosAdicionais: payload,
	}, nil
}

// resolverIdentidade fills in the session's display name on the first
// successful lookup. Missing customer data is not an error here; the
// question just runs against an empty history.
func (p *Pipeline) resolverIdentidade(ctx context.Context, sessaoID, matricula string) {
	if p.registry.Nome(sessaoID) != "" {
		return
	}
	cliente, err := p.store.Cliente(ctx, matricula)
	if err != nil {
		if !errors.Is(err, store.ErrClienteNaoEncontrado) {
			logger.Warn("falha ao resolver identidade", "matricula", matricula, "error", err)
		}
		return
	}
	p.registry.ResolverNome(ctx, sessaoID, cliente.Nome)
}

// resolverResultados maps index matches back to faturas, dropping every
// result that does not belong to the session's matricula.
func (p *Pipeline) resolverResultados(ctx context.Context, brutos []index.Result, matricula string) []models.Fatura {
	faturas := make([]models.Fatura, 0, p.opts.TopK)
	for _, r := range brutos {
		if r.Ref.Matricula != matricula {
			continue
		}
		f, err := p.store.Fatura(ctx, r.Ref)
		if err != nil {
			logger.Warn("referencia de indice sem documento", "matricula", r.Ref.Matricula, "periodo", r.Ref.Periodo, "error", err)
			continue
		}
		faturas = append(faturas, *f)
		if len(faturas) == p.opts.TopK {
			break
		}
	}
	return faturas
}

// montarContexto renders the retrieved documents, best match first,
// truncated to the context budget.
func (p *Pipeline) montarContexto(faturas []models.Fatura) []string {
	contexto := make([]string, 0, len(faturas))
	total := 0
	for _, f := range faturas {
		linha := resumoFatura(f)
		if total+len(linha) > p.opts.MaxContextoChars {
			break
		}
		contexto = append(contexto, linha)
		total += len(linha)
	}
	return contexto
}
