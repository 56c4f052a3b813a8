package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"conta-luz-chatbot/internal/embedding"
	"conta-luz-chatbot/internal/index"
	"conta-luz-chatbot/internal/pipeline"
	"conta-luz-chatbot/internal/session"
	"conta-luz-chatbot/internal/store"
	"conta-luz-chatbot/models"

	"github.com/gin-gonic/gin"
)

type stubProvider struct{}

func (stubProvider) Embed(ctx context.Context, texto string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubProvider) Modelo() string { return "stub" }

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, pergunta string, contexto []string) (string, error) {
	return "Resposta de teste.", nil
}

type stubStore struct{}

func (stubStore) Cliente(ctx context.Context, matricula string) (*models.Cliente, error) {
	return nil, store.ErrClienteNaoEncontrado
}

func (stubStore) Faturas(ctx context.Context, matricula string) ([]models.Fatura, error) {
	return nil, nil
}

func (stubStore) Fatura(ctx context.Context, ref models.DocumentRef) (*models.Fatura, error) {
	return nil, fmt.Errorf("fatura nao encontrada")
}

func (stubStore) Todas(ctx context.Context) ([]models.Fatura, error) { return nil, nil }

func montarRouter(t *testing.T) (*gin.Engine, *session.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := session.NewRegistry(30*time.Minute, nil)
	cache := embedding.NewCache(stubProvider{}, nil, time.Second)
	idx, err := index.New(3)
	if err != nil {
		t.Fatal(err)
	}
	pipe := pipeline.New(registry, cache, idx, stubStore{}, stubGenerator{}, pipeline.Options{})

	router := gin.New()
	SetupAPIRoutes(router, registry, pipe, nil)
	return router, registry
}

func postJSON(router *gin.Engine, caminho string, corpo any) *httptest.ResponseRecorder {
	dados, _ := json.Marshal(corpo)
	req := httptest.NewRequest(http.MethodPost, caminho, bytes.NewReader(dados))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := montarRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", w.Code)
	}

	var corpo map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &corpo); err != nil {
		t.Fatal(err)
	}
	if corpo["status"] != "OK" {
		t.Errorf("status = %q, want OK", corpo["status"])
	}
	if _, err := time.Parse(time.RFC3339, corpo["timestamp"]); err != nil {
		t.Errorf("timestamp %q is not RFC 3339: %v", corpo["timestamp"], err)
	}
}

func TestIniciarSessao(t *testing.T) {
	router, _ := montarRouter(t)

	w := postJSON(router, "/iniciar_sessao", models.SessaoRequest{Matricula: "123456789"})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /iniciar_sessao = %d, body %s", w.Code, w.Body.String())
	}

	var resp models.SessaoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessaoID == "" {
		t.Error("empty sessao_id")
	}
}

func TestIniciarSessaoMatriculaInvalida(t *testing.T) {
	router, _ := montarRouter(t)

	casos := []any{
		models.SessaoRequest{Matricula: "abc"},
		models.SessaoRequest{Matricula: "123"},
		map[string]string{},
	}

	for _, corpo := range casos {
		w := postJSON(router, "/iniciar_sessao", corpo)
		if w.Code != http.StatusBadRequest {
			t.Errorf("POST /iniciar_sessao %v = %d, want 400", corpo, w.Code)
			continue
		}
		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp["error_code"] != "matricula_invalida" {
			t.Errorf("error_code = %v, want matricula_invalida", resp["error_code"])
		}
	}
}

func TestEnviarMensagem(t *testing.T) {
	router, registry := montarRouter(t)

	s, err := registry.Create(context.Background(), "123456789")
	if err != nil {
		t.Fatal(err)
	}

	w := postJSON(router, "/enviar_mensagem", models.MensagemRequest{
		SessaoID: s.ID,
		Mensagem: "qual meu consumo?",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /enviar_mensagem = %d, body %s", w.Code, w.Body.String())
	}

	var resp models.MensagemResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Resposta == "" {
		t.Error("empty resposta")
	}
}

func TestEnviarMensagemSessaoDesconhecida(t *testing.T) {
	router, _ := montarRouter(t)

	w := postJSON(router, "/enviar_mensagem", models.MensagemRequest{
		SessaoID: "nao-existe",
		Mensagem: "qual meu consumo?",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown session = %d, want 404", w.Code)
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error_code"] != "sessao_nao_encontrada" {
		t.Errorf("error_code = %v, want sessao_nao_encontrada", resp["error_code"])
	}
}

func TestEnviarMensagemSessaoEncerrada(t *testing.T) {
	router, registry := montarRouter(t)
	ctx := context.Background()

	s, _ := registry.Create(ctx, "123456789")
	registry.Invalidate(ctx, s.ID)

	w := postJSON(router, "/enviar_mensagem", models.MensagemRequest{
		SessaoID: s.ID,
		Mensagem: "qual meu consumo?",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expired session = %d, want 404", w.Code)
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error_code"] != "sessao_expirada" {
		t.Errorf("error_code = %v, want sessao_expirada", resp["error_code"])
	}
}

func TestEnviarMensagemVazia(t *testing.T) {
	router, registry := montarRouter(t)

	s, _ := registry.Create(context.Background(), "123456789")

	w := postJSON(router, "/enviar_mensagem", map[string]string{
		"sessao_id": s.ID,
		"mensagem":  "   ",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank message = %d, want 400", w.Code)
	}
}

func TestEncerrarSessao(t *testing.T) {
	router, registry := montarRouter(t)

	s, _ := registry.Create(context.Background(), "123456789")

	w := postJSON(router, "/encerrar_sessao", map[string]string{"sessao_id": s.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /encerrar_sessao = %d", w.Code)
	}

	// Idempotent.
	w = postJSON(router, "/encerrar_sessao", map[string]string{"sessao_id": s.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("repeated encerrar_sessao = %d, want 200", w.Code)
	}
}
