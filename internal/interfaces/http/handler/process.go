package handler

import (
	"errors"

	mfgapp "github.com/erp/manufacturing/internal/application/manufacturing"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProcessHandler handles manufacturing process API endpoints
type ProcessHandler struct {
	BaseHandler
	processService *mfgapp.ProcessService
	metrics        *telemetry.ManufacturingMetrics
}

// NewProcessHandler creates a new ProcessHandler
func NewProcessHandler(processService *mfgapp.ProcessService) *ProcessHandler {
	return &ProcessHandler{
		processService: processService,
	}
}

// SetMetrics attaches manufacturing metrics recording to the handler
func (h *ProcessHandler) SetMetrics(metrics *telemetry.ManufacturingMetrics) {
	h.metrics = metrics
}

// Create godoc
// @Summary      Create a manufacturing process
// @Description  Create a new manufacturing process in DRAFT status, optionally from a formula
// @Tags         processes
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body mfgapp.CreateProcessRequest true "Process creation request"
// @Success      201 {object} dto.Response{data=mfgapp.ProcessResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/processes [post]
func (h *ProcessHandler) Create(c *gin.Context) {
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

	var req mfgapp.CreateProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	process, err := h.processService.CreateProcess(c.Request.Context(), tenantID, userID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, process)
}

// GetByID godoc
// @Summary      Get process by ID
// @Tags         processes
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Process ID" format(uuid)
// @Success      200 {object} dto.Response{data=mfgapp.ProcessResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/processes/{id} [get]
func (h *ProcessHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid process ID format")
		return
	}

	process, err := h.processService.GetProcess(c.Request.Context(), tenantID, processID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, process)
}

// List godoc
// @Summary      List manufacturing processes
// @Description  Retrieve a paginated list of processes with optional filtering
// @Tags         processes
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        search query string false "Search term (process number)"
// @Param        status query string false "Process status" Enums(DRAFT, IN_PROGRESS, COMPLETED, CANCELLED)
// @Param        product_id query string false "Product ID" format(uuid)
// @Param        formula_id query string false "Formula ID" format(uuid)
// @Param        date_from query string false "Process date from (ISO 8601)" format(date-time)
// @Param        date_to query string false "Process date to (ISO 8601)" format(date-time)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]mfgapp.ProcessResponse,meta=dto.Meta}
// @Router       /manufacturing/processes [get]
func (h *ProcessHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter mfgapp.ProcessListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.processService.ListProcesses(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Update godoc
// @Summary      Update a manufacturing process
// @Description  Update process fields and raw-material lines (only allowed in DRAFT status)
// @Tags         processes
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Process ID" format(uuid)
// @Param        request body mfgapp.UpdateProcessRequest true "Process update request"
// @Success      200 {object} dto.Response{data=mfgapp.ProcessResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/processes/{id} [put]
func (h *ProcessHandler) Update(c *gin.Context) {
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

	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid process ID format")
		return
	}

	var req mfgapp.UpdateProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	process, err := h.processService.UpdateProcess(c.Request.Context(), tenantID, userID, processID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, process)
}

// CheckAvailability godoc
// @Summary      Check raw-material availability
// @Description  Report per-line stock availability and shortages without changing state
// @Tags         processes
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Process ID" format(uuid)
// @Success      200 {object} dto.Response{data=mfgapp.AvailabilityResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/processes/{id}/availability [get]
func (h *ProcessHandler) CheckAvailability(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid process ID format")
		return
	}

	availability, err := h.processService.CheckAvailability(c.Request.Context(), tenantID, processID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, availability)
}

// Start godoc
// @Summary      Start a manufacturing process
// @Description  Transition a process from DRAFT to IN_PROGRESS, debiting raw-material stock
// @Tags         processes
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        Idempotency-Key header string false "Idempotency key"
// @Param        id path string true "Process ID" format(uuid)
// @Success      200 {object} dto.Response{data=mfgapp.ProcessResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/processes/{id}/start [post]
func (h *ProcessHandler) Start(c *gin.Context) {
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

	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid process ID format")
		return
	}

	process, err := h.processService.StartProcess(c.Request.Context(), tenantID, userID, processID)
	if err != nil {
		h.recordStartFailure(c, tenantID, err)
		h.HandleDomainError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordProcessTransition(c.Request.Context(), tenantID, telemetry.TransitionStarted)
	}

	h.Success(c, process)
}

// Complete godoc
// @Summary      Complete a manufacturing process
// @Description  Transition a process from IN_PROGRESS to COMPLETED, crediting finished goods
// @Tags         processes
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        Idempotency-Key header string false "Idempotency key"
// @Param        id path string true "Process ID" format(uuid)
// @Param        request body mfgapp.CompleteProcessRequest false "Completion request"
// @Success      200 {object} dto.Response{data=mfgapp.ProcessResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/processes/{id}/complete [post]
func (h *ProcessHandler) Complete(c *gin.Context) {
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

	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid process ID format")
		return
	}

	var req mfgapp.CompleteProcessRequest
	// Allow empty body
	_ = c.ShouldBindJSON(&req)

	process, err := h.processService.CompleteProcess(c.Request.Context(), tenantID, userID, processID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordProcessTransition(c.Request.Context(), tenantID, telemetry.TransitionCompleted)
	}

	h.Success(c, process)
}

// Cancel godoc
// @Summary      Cancel a manufacturing process
// @Description  Cancel a process from DRAFT or IN_PROGRESS, restoring debited stock
// @Tags         processes
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        Idempotency-Key header string false "Idempotency key"
// @Param        id path string true "Process ID" format(uuid)
// @Param        request body mfgapp.CancelProcessRequest true "Cancellation request"
// @Success      200 {object} dto.Response{data=mfgapp.ProcessResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/processes/{id}/cancel [post]
func (h *ProcessHandler) Cancel(c *gin.Context) {
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

	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid process ID format")
		return
	}

	var req mfgapp.CancelProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	process, err := h.processService.CancelProcess(c.Request.Context(), tenantID, userID, processID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordProcessTransition(c.Request.Context(), tenantID, telemetry.TransitionCancelled)
	}

	h.Success(c, process)
}

// Restart godoc
// @Summary      Restart a cancelled manufacturing process
// @Description  Transition a process from CANCELLED back to DRAFT
// @Tags         processes
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Process ID" format(uuid)
// @Success      200 {object} dto.Response{data=mfgapp.ProcessResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/processes/{id}/restart [post]
func (h *ProcessHandler) Restart(c *gin.Context) {
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

	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid process ID format")
		return
	}

	process, err := h.processService.RestartProcess(c.Request.Context(), tenantID, userID, processID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordProcessTransition(c.Request.Context(), tenantID, telemetry.TransitionRestarted)
	}

	h.Success(c, process)
}

// UpdateProgress godoc
// @Summary      Update process completion percentage
// @Description  Set an explicit completion percentage on an IN_PROGRESS process
// @Tags         processes
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Process ID" format(uuid)
// @Param        request body mfgapp.UpdateProgressRequest true "Progress update request"
// @Success      200 {object} dto.Response{data=mfgapp.ProcessResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/processes/{id}/progress [post]
func (h *ProcessHandler) UpdateProgress(c *gin.Context) {
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

	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid process ID format")
		return
	}

	var req mfgapp.UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	process, err := h.processService.UpdateProgress(c.Request.Context(), tenantID, userID, processID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, process)
}

// GetCosts godoc
// @Summary      Get process cost summary
// @Description  Retrieve the cost rollup of a process (raw material, labor, overhead, per unit)
// @Tags         processes
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Process ID" format(uuid)
// @Success      200 {object} dto.Response{data=mfgapp.CostSummaryResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/processes/{id}/costs [get]
func (h *ProcessHandler) GetCosts(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid process ID format")
		return
	}

	costs, err := h.processService.GetProcessCosts(c.Request.Context(), tenantID, processID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, costs)
}

// Delete godoc
// @Summary      Delete a manufacturing process
// @Description  Soft-delete a process (only allowed in DRAFT or CANCELLED status)
// @Tags         processes
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Process ID" format(uuid)
// @Success      204
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /manufacturing/processes/{id} [delete]
func (h *ProcessHandler) Delete(c *gin.Context) {
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

	processID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid process ID format")
		return
	}

	if err := h.processService.DeleteProcess(c.Request.Context(), tenantID, userID, processID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// recordStartFailure records a shortage-blocked start attempt
func (h *ProcessHandler) recordStartFailure(c *gin.Context, tenantID uuid.UUID, err error) {
	if h.metrics == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) && domainErr.Code == "INSUFFICIENT_CRITICAL_STOCK" {
		h.metrics.RecordShortageBlocked(c.Request.Context(), tenantID)
	}
}
