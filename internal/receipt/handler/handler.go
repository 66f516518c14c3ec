package handler

import (
	"net/http"
	"strconv"

	"github.com/campops/procurement-service/internal/auth"
	"github.com/campops/procurement-service/internal/httperr"
	"github.com/campops/procurement-service/internal/receipt"
	"github.com/campops/procurement-service/internal/receipt/dto"
	"github.com/campops/procurement-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

type ReceiptHandler struct {
	uc     receipt.UseCase
	logger logger.ZapLogger
}

func NewReceiptHandler(uc receipt.UseCase, log logger.ZapLogger) *ReceiptHandler {
	return &ReceiptHandler{uc: uc, logger: log}
}

func (h *ReceiptHandler) Reconcile(c *gin.Context) {
	var input dto.ExtractionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.uc.Reconcile(c.Request.Context(), auth.ActorFromRequest(c), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *ReceiptHandler) Create(c *gin.Context) {
	var input dto.CreateReceiptInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.uc.Create(c.Request.Context(), auth.ActorFromRequest(c), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *ReceiptHandler) List(c *gin.Context) {
	filters := &dto.ReceiptFilters{
		PropertyID: c.Query("property_id"),
		OrderID:    c.Query("order_id"),
		SupplierID: c.Query("supplier_id"),
		Verified:   queryBool(c, "verified"),
		Skip:       queryInt(c, "skip", 0),
		Limit:      queryInt(c, "limit", 50),
	}

	list, err := h.uc.List(c.Request.Context(), auth.ActorFromRequest(c), filters)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ReceiptHandler) PendingVerification(c *gin.Context) {
	views, err := h.uc.PendingVerification(c.Request.Context(), auth.ActorFromRequest(c))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *ReceiptHandler) Dashboard(c *gin.Context) {
	dash, err := h.uc.Dashboard(c.Request.Context(), auth.ActorFromRequest(c), c.Query("property_id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (h *ReceiptHandler) Get(c *gin.Context) {
	view, err := h.uc.Get(c.Request.Context(), auth.ActorFromRequest(c), c.Param("id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ReceiptHandler) Update(c *gin.Context) {
	var input dto.UpdateReceiptInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.ID = c.Param("id")

	view, err := h.uc.Update(c.Request.Context(), auth.ActorFromRequest(c), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ReceiptHandler) Verify(c *gin.Context) {
	view, err := h.uc.Verify(c.Request.Context(), auth.ActorFromRequest(c), c.Param("id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ReceiptHandler) Delete(c *gin.Context) {
	if err := h.uc.Delete(c.Request.Context(), auth.ActorFromRequest(c), c.Param("id")); err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ReceiptHandler) MatchLine(c *gin.Context) {
	var input dto.MatchLineInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.ReceiptID = c.Param("id")
	input.LineID = c.Param("lineId")

	view, err := h.uc.MatchLine(c.Request.Context(), auth.ActorFromRequest(c), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ReceiptHandler) UpdateLine(c *gin.Context) {
	var input dto.UpdateLineInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.ReceiptID = c.Param("id")
	input.LineID = c.Param("lineId")

	view, err := h.uc.UpdateLine(c.Request.Context(), auth.ActorFromRequest(c), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ReceiptHandler) DeleteLine(c *gin.Context) {
	view, err := h.uc.DeleteLine(c.Request.Context(), auth.ActorFromRequest(c),
		c.Param("id"), c.Param("lineId"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ReceiptHandler) AddToInventory(c *gin.Context) {
	var input dto.AddToInventoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.uc.AddToInventory(c.Request.Context(), auth.ActorFromRequest(c), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *ReceiptHandler) ListAliases(c *gin.Context) {
	aliases, err := h.uc.ListAliases(c.Request.Context(), auth.ActorFromRequest(c), c.Param("propertyId"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, aliases)
}

func (h *ReceiptHandler) DeactivateAlias(c *gin.Context) {
	if err := h.uc.DeactivateAlias(c.Request.Context(), auth.ActorFromRequest(c), c.Param("aliasId")); err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func queryBool(c *gin.Context, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
