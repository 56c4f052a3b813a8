package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"conta-luz-chatbot/internal/ai"
	"conta-luz-chatbot/internal/embedding"
	"conta-luz-chatbot/internal/logger"
	"conta-luz-chatbot/internal/pipeline"
	"conta-luz-chatbot/internal/session"
	"conta-luz-chatbot/models"
	"conta-luz-chatbot/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// SetupAPIRoutes registers the public JSON contract: session start,
// message handling and health.
func SetupAPIRoutes(router *gin.Engine, registry *session.Registry, pipe *pipeline.Pipeline, mongoClient *mongo.Client) {
	router.POST("/iniciar_sessao", func(c *gin.Context) {
		var req models.SessaoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "matricula_invalida", "Informe a matrícula no corpo da requisição", gin.H{"error": err.Error()})
			return
		}

		sessao, err := registry.Create(c.Request.Context(), req.Matricula)
		if err != nil {
			if errors.Is(err, session.ErrMatriculaInvalida) {
				utils.RespondWithBadRequest(c, "matricula_invalida", "Matrícula em formato inválido", nil)
				return
			}
			logger.Error("falha ao criar sessao", "error", err)
			utils.RespondWithInternalError(c, "Erro ao criar sessão", nil)
			return
		}

		c.JSON(http.StatusOK, models.SessaoResponse{
			SessaoID:    sessao.ID,
			NomeUsuario: sessao.Nome,
		})
	})

	router.POST("/enviar_mensagem", func(c *gin.Context) {
		var req models.MensagemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "consulta_invalida", "Requisição malformada", gin.H{"error": err.Error()})
			return
		}

		resp, err := pipe.Handle(c.Request.Context(), req.SessaoID, req.Mensagem)
		if err != nil {
			respondPipelineError(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	})

	router.POST("/encerrar_sessao", func(c *gin.Context) {
		var req struct {
			SessaoID string `json:"sessao_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "sessao_invalida", "Informe o sessao_id", nil)
			return
		}
		registry.Invalidate(c.Request.Context(), req.SessaoID)
		c.JSON(http.StatusOK, gin.H{"encerrada": true})
	})

	router.GET("/health", func(c *gin.Context) {
		status := "OK"
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if mongoClient != nil {
			if err := mongoClient.Ping(ctx, nil); err != nil {
				status = "offline"
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
}

// respondPipelineError maps the error taxonomy onto the wire contract:
// session failures are client-actionable (404-class), provider failures
// and timeouts are retry-safe server failures (5xx-class).
func respondPipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNaoEncontrada):
		utils.RespondWithNotFound(c, "sessao_nao_encontrada", "Sessão desconhecida. Inicie uma nova sessão.")
	case errors.Is(err, session.ErrExpirada):
		utils.RespondWithNotFound(c, "sessao_expirada", "Sessão expirada por inatividade. Inicie uma nova sessão.")
	case errors.Is(err, pipeline.ErrConsultaInvalida):
		utils.RespondWithBadRequest(c, "consulta_invalida", "Mensagem vazia ou acima do limite de caracteres", nil)
	case errors.Is(err, pipeline.ErrProviderTimeout):
		utils.RespondWithGatewayTimeout(c, "O serviço demorou para responder. Tente novamente.")
	case errors.Is(err, embedding.ErrProvider):
		logger.Error("provedor de embeddings indisponivel", "error", err)
		utils.RespondWithServiceUnavailable(c, "falha_embeddings", "Serviço temporariamente indisponível. Tente novamente.")
	case errors.Is(err, ai.ErrGeracao):
		logger.Error("provedor de geracao indisponivel", "error", err)
		utils.RespondWithServiceUnavailable(c, "falha_geracao", "Serviço temporariamente indisponível. Tente novamente.")
	default:
		logger.Error("erro interno no pipeline", "error", err)
		utils.RespondWithInternalError(c, "Erro interno ao processar a mensagem", nil)
	}
}
