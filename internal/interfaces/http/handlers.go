package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/application/service"
	"github.com/oasuite/procureflow/internal/domain/document"
	"github.com/oasuite/procureflow/internal/domain/flow"
)

// actorHeader carries the authenticated user id. Authentication itself is
// terminated upstream; this service trusts the header.
const actorHeader = "X-User-ID"

// Handlers contains all HTTP request handlers
type Handlers struct {
	purchases      service.PurchaseService
	reimbursements service.ReimbursementService
	flows          service.FlowService
	notifications  port.NotificationRepository
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	purchases service.PurchaseService,
	reimbursements service.ReimbursementService,
	flows service.FlowService,
	notifications port.NotificationRepository,
	logger Logger,
) *Handlers {
	return &Handlers{
		purchases:      purchases,
		reimbursements: reimbursements,
		flows:          flows,
		notifications:  notifications,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ListRequest represents pagination query parameters
type ListRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

func (r *ListRequest) normalize() {
	if r.Limit <= 0 || r.Limit > 100 {
		r.Limit = 20
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
}

// InvoicesRequest carries replacement invoice evidence
type InvoicesRequest struct {
	Images []string `json:"images"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// actor extracts the authenticated user, failing the request when missing
func (h *Handlers) actor(c *gin.Context) (string, bool) {
	id := c.GetHeader(actorHeader)
	if id == "" {
		c.JSON(http.StatusUnauthorized, Response{
			Success: false,
			Error:   "missing " + actorHeader + " header",
		})
		return "", false
	}
	return id, true
}

// pathID parses the numeric id path parameter
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid id",
		})
		return 0, false
	}
	return id, true
}

// fail maps a service error onto an HTTP status and coded body
func (h *Handlers) fail(c *gin.Context, err error) {
	var docErr *document.Error
	if errors.As(err, &docErr) {
		status := http.StatusConflict
		switch docErr.Code {
		case "DOCUMENT_NOT_FOUND":
			status = http.StatusNotFound
		case "FORBIDDEN":
			status = http.StatusForbidden
		case "UNKNOWN_ACTION":
			status = http.StatusBadRequest
		}
		c.JSON(status, Response{Success: false, Error: docErr.Message, Code: docErr.Code})
		return
	}

	if errors.Is(err, flow.ErrNodeNotFound) {
		c.JSON(http.StatusConflict, Response{
			Success: false,
			Error:   err.Error(),
			Code:    flow.CodeNodeNotFound,
		})
		return
	}

	h.logger.Error("Request failed", "error", err)
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error:   "internal error",
	})
}

// CreatePurchase handles POST /api/v1/purchases
func (h *Handlers) CreatePurchase(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var po document.PurchaseOrder
	if err := c.ShouldBindJSON(&po); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.purchases.Create(c.Request.Context(), actorID, &po); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: po})
}

// ListPurchases handles GET /api/v1/purchases
func (h *Handlers) ListPurchases(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}
	req.normalize()

	orders, err := h.purchases.List(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: orders})
}

// GetPurchase handles GET /api/v1/purchases/:id
func (h *Handlers) GetPurchase(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	po, err := h.purchases.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: po})
}

// ApplyPurchaseAction handles POST /api/v1/purchases/:id/actions
func (h *Handlers) ApplyPurchaseAction(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req service.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	po, err := h.purchases.Apply(c.Request.Context(), actorID, id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: po})
}

// AttachPurchaseInvoices handles PUT /api/v1/purchases/:id/invoices
func (h *Handlers) AttachPurchaseInvoices(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req InvoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.purchases.AttachInvoices(c.Request.Context(), actorID, id, req.Images); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// PurchaseLogs handles GET /api/v1/purchases/:id/logs
func (h *Handlers) PurchaseLogs(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	logs, err := h.purchases.Logs(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: logs})
}

// PurchaseApprovalTrail handles GET /api/v1/purchases/:id/approvals
func (h *Handlers) PurchaseApprovalTrail(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	trail, err := h.purchases.ApprovalTrail(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: trail})
}

// CreateReimbursement handles POST /api/v1/reimbursements
func (h *Handlers) CreateReimbursement(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var claim document.Reimbursement
	if err := c.ShouldBindJSON(&claim); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.reimbursements.Create(c.Request.Context(), actorID, &claim); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: claim})
}

// ListReimbursements handles GET /api/v1/reimbursements
func (h *Handlers) ListReimbursements(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}
	req.normalize()

	claims, err := h.reimbursements.List(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: claims})
}

// GetReimbursement handles GET /api/v1/reimbursements/:id
func (h *Handlers) GetReimbursement(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	claim, err := h.reimbursements.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// ApplyReimbursementAction handles POST /api/v1/reimbursements/:id/actions
func (h *Handlers) ApplyReimbursementAction(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req service.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	claim, err := h.reimbursements.Apply(c.Request.Context(), actorID, id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// AttachReimbursementInvoices handles PUT /api/v1/reimbursements/:id/invoices
func (h *Handlers) AttachReimbursementInvoices(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req InvoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.reimbursements.AttachInvoices(c.Request.Context(), actorID, id, req.Images); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ReimbursementLogs handles GET /api/v1/reimbursements/:id/logs
func (h *Handlers) ReimbursementLogs(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	logs, err := h.reimbursements.Logs(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: logs})
}

// CreateFlow handles POST /api/v1/flows
func (h *Handlers) CreateFlow(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var wf flow.Workflow
	if err := c.ShouldBindJSON(&wf); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.flows.Create(c.Request.Context(), actorID, &wf); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: wf})
}

// ListFlows handles GET /api/v1/flows
func (h *Handlers) ListFlows(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}
	req.normalize()

	flows, err := h.flows.List(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: flows})
}

// GetFlow handles GET /api/v1/flows/:id
func (h *Handlers) GetFlow(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	wf, err := h.flows.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// UpdateFlow handles PUT /api/v1/flows/:id
func (h *Handlers) UpdateFlow(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var wf flow.Workflow
	if err := c.ShouldBindJSON(&wf); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	wf.ID = id

	if err := h.flows.Update(c.Request.Context(), actorID, &wf); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// PublishFlow handles POST /api/v1/flows/:id/publish
func (h *Handlers) PublishFlow(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	warnings, err := h.flows.Publish(c.Request.Context(), actorID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"warnings": warnings}})
}

// UnpublishFlow handles POST /api/v1/flows/:id/unpublish
func (h *Handlers) UnpublishFlow(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.flows.Unpublish(c.Request.Context(), actorID, id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ValidateFlow handles GET /api/v1/flows/:id/validate
func (h *Handlers) ValidateFlow(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	warnings, err := h.flows.Validate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"warnings": warnings}})
}

// ListNotifications handles GET /api/v1/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}

	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}
	req.normalize()

	notifications, err := h.notifications.ListByRecipient(c.Request.Context(), actorID, req.Limit, req.Offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: notifications})
}

// MarkNotificationRead handles POST /api/v1/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}
