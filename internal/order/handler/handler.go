package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/campops/procurement-service/internal/auth"
	"github.com/campops/procurement-service/internal/httperr"
	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/order"
	"github.com/campops/procurement-service/internal/order/dto"
	"github.com/campops/procurement-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	uc     order.UseCase
	logger logger.ZapLogger
}

func NewOrderHandler(uc order.UseCase, log logger.ZapLogger) *OrderHandler {
	return &OrderHandler{uc: uc, logger: log}
}

func (h *OrderHandler) Create(c *gin.Context) {
	var input dto.CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.uc.CreateOrder(c.Request.Context(), auth.ActorFromRequest(c), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *OrderHandler) AutoGenerate(c *gin.Context) {
	var input dto.AutoGenerateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.uc.AutoGenerateOrder(c.Request.Context(), auth.ActorFromRequest(c), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *OrderHandler) List(c *gin.Context) {
	filters := &dto.OrderFilters{
		PropertyID: c.Query("property_id"),
		CreatedBy:  c.Query("created_by"),
		Skip:       intQuery(c, "skip", 0),
		Limit:      intQuery(c, "limit", 50),
	}
	for _, s := range splitCSV(c.Query("status")) {
		filters.Statuses = append(filters.Statuses, model.OrderStatus(s))
	}

	list, err := h.uc.ListOrders(c.Request.Context(), auth.ActorFromRequest(c), filters)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) PendingReview(c *gin.Context) {
	list, err := h.uc.PendingReview(c.Request.Context(), auth.ActorFromRequest(c),
		intQuery(c, "skip", 0), intQuery(c, "limit", 50))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) ReadyToOrder(c *gin.Context) {
	list, err := h.uc.ReadyToOrder(c.Request.Context(), auth.ActorFromRequest(c),
		intQuery(c, "skip", 0), intQuery(c, "limit", 50))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) MyOrders(c *gin.Context) {
	actor := auth.ActorFromRequest(c)
	if actor.UserID == "" {
		httperr.JSON(c, model.ErrForbidden("caller identity missing"))
		return
	}
	list, err := h.uc.MyOrders(c.Request.Context(), actor,
		intQuery(c, "skip", 0), intQuery(c, "limit", 50))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) Get(c *gin.Context) {
	view, err := h.uc.GetOrder(c.Request.Context(), auth.ActorFromRequest(c), c.Param("id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) Update(c *gin.Context) {
	var input dto.UpdateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.ID = c.Param("id")

	view, err := h.uc.UpdateOrder(c.Request.Context(), auth.ActorFromRequest(c), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) Delete(c *gin.Context) {
	if err := h.uc.DeleteOrder(c.Request.Context(), auth.ActorFromRequest(c), c.Param("id")); err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *OrderHandler) AddItem(c *gin.Context) {
	var input dto.OrderItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.uc.AddOrderItem(c.Request.Context(), auth.ActorFromRequest(c), c.Param("id"), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) UpdateItem(c *gin.Context) {
	var input dto.UpdateOrderItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.OrderID = c.Param("id")
	input.ItemID = c.Param("itemId")

	view, err := h.uc.UpdateOrderItem(c.Request.Context(), auth.ActorFromRequest(c), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) RemoveItem(c *gin.Context) {
	view, err := h.uc.RemoveOrderItem(c.Request.Context(), auth.ActorFromRequest(c),
		c.Param("id"), c.Param("itemId"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) Submit(c *gin.Context) {
	view, err := h.uc.SubmitOrder(c.Request.Context(), auth.ActorFromRequest(c), c.Param("id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) Review(c *gin.Context) {
	var input dto.ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.uc.ReviewOrder(c.Request.Context(), auth.ActorFromRequest(c), c.Param("id"), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) Resubmit(c *gin.Context) {
	view, err := h.uc.ResubmitOrder(c.Request.Context(), auth.ActorFromRequest(c), c.Param("id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) MarkOrdered(c *gin.Context) {
	view, err := h.uc.MarkOrdered(c.Request.Context(), auth.ActorFromRequest(c), c.Param("id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) UnmarkOrdered(c *gin.Context) {
	view, err := h.uc.UnmarkOrdered(c.Request.Context(), auth.ActorFromRequest(c), c.Param("id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) Withdraw(c *gin.Context) {
	view, err := h.uc.WithdrawOrder(c.Request.Context(), auth.ActorFromRequest(c), c.Param("id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) Receive(c *gin.Context) {
	var input dto.ReceiveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.uc.ReceiveItems(c.Request.Context(), auth.ActorFromRequest(c), c.Param("id"), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *OrderHandler) Shortages(c *gin.Context) {
	list, err := h.uc.Shortages(c.Request.Context(), auth.ActorFromRequest(c), c.Query("property_id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) DismissShortages(c *gin.Context) {
	var input dto.DismissShortagesInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dismissed, err := h.uc.DismissShortages(c.Request.Context(), auth.ActorFromRequest(c), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dismissed_count": dismissed})
}

func (h *OrderHandler) FlaggedItems(c *gin.Context) {
	list, err := h.uc.FlaggedItems(c.Request.Context(), auth.ActorFromRequest(c), c.Query("property_id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) SupplierPurchaseList(c *gin.Context) {
	var weekOf *time.Time
	if raw := c.Query("week_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "week_of must be YYYY-MM-DD"})
			return
		}
		weekOf = &parsed
	}

	list, err := h.uc.SupplierPurchaseList(c.Request.Context(), auth.ActorFromRequest(c),
		splitCSV(c.Query("order_ids")), weekOf)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) SummaryByProperty(c *gin.Context) {
	rows, err := h.uc.SummaryByProperty(c.Request.Context(), auth.ActorFromRequest(c))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": rows})
}

func (h *OrderHandler) Seed(c *gin.Context) {
	var input dto.SeedOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.uc.SeedHistoricalOrder(c.Request.Context(), auth.ActorFromRequest(c), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
