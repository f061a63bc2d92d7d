package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/paulexconde/questflow/internal/models"
	"github.com/paulexconde/questflow/internal/pkg/logger"
	"github.com/paulexconde/questflow/internal/services"
)

// FlowHandler exposes the editor-facing flow endpoints.
type FlowHandler struct {
	log     *logger.Logger
	flowSvc services.FlowService
}

func NewFlowHandler(log *logger.Logger, flowSvc services.FlowService) *FlowHandler {
	return &FlowHandler{
		log:     log.With("handler", "FlowHandler"),
		flowSvc: flowSvc,
	}
}

// POST /api/flow/save
func (h *FlowHandler) SaveFlow(c *gin.Context) {
	var req models.SaveFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	resp, err := h.flowSvc.SaveFlow(c.Request.Context(), req)
	if err != nil {
		RespondFault(c, h.log, err)
		return
	}
	RespondOK(c, resp)
}

// GET /api/flow/:questionnaireTypeId
func (h *FlowHandler) GetFlow(c *gin.Context) {
	typeID, ok := pathInt(c, "questionnaireTypeId")
	if !ok {
		return
	}

	graph, err := h.flowSvc.LoadFlow(c.Request.Context(), typeID)
	if err != nil {
		RespondFault(c, h.log, err)
		return
	}
	RespondOK(c, graph)
}

// DELETE /api/flow/:questionnaireTypeId
func (h *FlowHandler) DeleteFlow(c *gin.Context) {
	typeID, ok := pathInt(c, "questionnaireTypeId")
	if !ok {
		return
	}

	if err := h.flowSvc.DeleteFlow(c.Request.Context(), typeID); err != nil {
		RespondFault(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

// GET /api/flow/:questionnaireTypeId/reference-tables
func (h *FlowHandler) GetReferenceTables(c *gin.Context) {
	typeID, ok := pathInt(c, "questionnaireTypeId")
	if !ok {
		return
	}

	tables, err := h.flowSvc.ReferenceTables(c.Request.Context(), typeID)
	if err != nil {
		RespondFault(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"tables": tables})
}

// GET /api/flow/:questionnaireTypeId/reference-table-metadata
func (h *FlowHandler) GetReferenceTableMetadata(c *gin.Context) {
	typeID, ok := pathInt(c, "questionnaireTypeId")
	if !ok {
		return
	}

	meta, err := h.flowSvc.ReferenceTableMetadata(c.Request.Context(), typeID)
	if err != nil {
		RespondFault(c, h.log, err)
		return
	}
	RespondOK(c, gin.H{"tables": meta})
}

func pathInt(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_path_param", err)
		return 0, false
	}
	return v, true
}
