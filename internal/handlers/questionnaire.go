package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/paulexconde/questflow/internal/pkg/logger"
	"github.com/paulexconde/questflow/internal/services"
)

// QuestionnaireHandler exposes the rendering-client endpoints: the type
// catalogue and the assembled schema.
type QuestionnaireHandler struct {
	log      *logger.Logger
	questSvc services.QuestionnaireService
}

func NewQuestionnaireHandler(log *logger.Logger, questSvc services.QuestionnaireService) *QuestionnaireHandler {
	return &QuestionnaireHandler{
		log:      log.With("handler", "QuestionnaireHandler"),
		questSvc: questSvc,
	}
}

// GET /api/questionnaire/types?page=1&limit=20
func (h *QuestionnaireHandler) ListTypes(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	types, err := h.questSvc.ListTypes(c.Request.Context(), page, limit)
	if err != nil {
		RespondFault(c, h.log, err)
		return
	}
	RespondOK(c, types)
}

// GET /api/questionnaire/schema/:typeCode
func (h *QuestionnaireHandler) GetSchema(c *gin.Context) {
	schema, err := h.questSvc.Schema(c.Request.Context(), c.Param("typeCode"))
	if err != nil {
		RespondFault(c, h.log, err)
		return
	}
	RespondOK(c, schema)
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 1 {
		return def
	}
	return v
}
