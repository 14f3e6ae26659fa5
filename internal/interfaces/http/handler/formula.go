package handler

import (
	"time"

	mfgapp "github.com/erp/manufacturing/internal/application/manufacturing"
	"github.com/erp/manufacturing/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FormulaHandler handles manufacturing formula API endpoints
type FormulaHandler struct {
	BaseHandler
	formulaService *mfgapp.FormulaService
	metrics        *telemetry.ManufacturingMetrics
}

// NewFormulaHandler creates a new FormulaHandler
func NewFormulaHandler(formulaService *mfgapp.FormulaService) *FormulaHandler {
	return &FormulaHandler{
		formulaService: formulaService,
	}
}

// SetMetrics attaches manufacturing metrics recording to the handler
func (h *FormulaHandler) SetMetrics(metrics *telemetry.ManufacturingMetrics) {
	h.metrics = metrics
}

// Create godoc
// @Summary      Create a manufacturing formula
// @Description  Create a new manufacturing formula in DRAFT status
// @Tags         formulas
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body mfgapp.CreateFormulaRequest true "Formula creation request"
// @Success      201 {object} dto.Response{data=mfgapp.FormulaResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/formulas [post]
func (h *FormulaHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	var req mfgapp.CreateFormulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	formula, err := h.formulaService.CreateFormula(c.Request.Context(), tenantID, userID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordFormulaCreated(c.Request.Context(), tenantID)
	}

	h.Created(c, formula)
}

// GetByID godoc
// @Summary      Get formula by ID
// @Tags         formulas
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Formula ID" format(uuid)
// @Success      200 {object} dto.Response{data=mfgapp.FormulaResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/formulas/{id} [get]
func (h *FormulaHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	formulaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid formula ID format")
		return
	}

	formula, err := h.formulaService.GetFormula(c.Request.Context(), tenantID, formulaID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, formula)
}

// List godoc
// @Summary      List manufacturing formulas
// @Description  Retrieve a paginated list of formulas with optional filtering
// @Tags         formulas
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        search query string false "Search term (formula number, name)"
// @Param        status query string false "Formula status" Enums(DRAFT, ACTIVE, INACTIVE, ARCHIVED)
// @Param        product_id query string false "Product ID" format(uuid)
// @Param        price_tier query string false "Price tier" Enums(FIRST, SECOND, THIRD)
// @Param        effective_at query string false "Effective at (ISO 8601)" format(date-time)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]mfgapp.FormulaResponse,meta=dto.Meta}
// @Router       /manufacturing/formulas [get]
func (h *FormulaHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter mfgapp.FormulaListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.formulaService.ListFormulas(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// FindActive godoc
// @Summary      Find active formulas for a product
// @Description  Retrieve formulas that are ACTIVE and effective at the given time for a product
// @Tags         formulas
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        product_id path string true "Product ID" format(uuid)
// @Param        at query string false "Point in time (ISO 8601, defaults to now)" format(date-time)
// @Success      200 {object} dto.Response{data=[]mfgapp.FormulaResponse}
// @Router       /manufacturing/formulas/active/{product_id} [get]
func (h *FormulaHandler) FindActive(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	productID, err := uuid.Parse(c.Param("product_id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	at := time.Now()
	if atParam := c.Query("at"); atParam != "" {
		parsed, err := time.Parse(time.RFC3339, atParam)
		if err != nil {
			h.BadRequest(c, "Invalid 'at' timestamp, expected RFC 3339")
			return
		}
		at = parsed
	}

	formulas, err := h.formulaService.FindActiveFormula(c.Request.Context(), tenantID, productID, at)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, formulas)
}

// Update godoc
// @Summary      Update a manufacturing formula
// @Description  Update formula fields (quantities only editable in DRAFT status)
// @Tags         formulas
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Formula ID" format(uuid)
// @Param        request body mfgapp.UpdateFormulaRequest true "Formula update request"
// @Success      200 {object} dto.Response{data=mfgapp.FormulaResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/formulas/{id} [put]
func (h *FormulaHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	formulaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid formula ID format")
		return
	}

	var req mfgapp.UpdateFormulaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	formula, err := h.formulaService.UpdateFormula(c.Request.Context(), tenantID, userID, formulaID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, formula)
}

// ChangeStatus godoc
// @Summary      Change formula status
// @Description  Transition a formula between DRAFT, ACTIVE, INACTIVE and ARCHIVED
// @Tags         formulas
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Formula ID" format(uuid)
// @Param        request body mfgapp.ChangeFormulaStatusRequest true "Status change request"
// @Success      200 {object} dto.Response{data=mfgapp.FormulaResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/formulas/{id}/status [post]
func (h *FormulaHandler) ChangeStatus(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	formulaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid formula ID format")
		return
	}

	var req mfgapp.ChangeFormulaStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	formula, err := h.formulaService.ChangeFormulaStatus(c.Request.Context(), tenantID, userID, formulaID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, formula)
}

// Delete godoc
// @Summary      Delete a manufacturing formula
// @Description  Soft-delete a formula (not allowed while ACTIVE)
// @Tags         formulas
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Formula ID" format(uuid)
// @Success      204
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/formulas/{id} [delete]
func (h *FormulaHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	formulaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid formula ID format")
		return
	}

	if err := h.formulaService.DeleteFormula(c.Request.Context(), tenantID, userID, formulaID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}
