package handler

import (
	"net/http"
	"strconv"

	"github.com/campops/procurement-service/internal/auth"
	"github.com/campops/procurement-service/internal/httperr"
	"github.com/campops/procurement-service/internal/inventory"
	"github.com/campops/procurement-service/internal/inventory/dto"
	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{uc: uc, logger: log}
}

func (h *InventoryHandler) CreateItem(c *gin.Context) {
	var input dto.CreateItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := auth.ActorFromRequest(c)
	if !actor.CanAccessProperty(input.PropertyID) {
		httperr.JSON(c, model.ErrForbidden("no access to this property"))
		return
	}

	item, err := h.uc.CreateItem(c.Request.Context(), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *InventoryHandler) UpdateItem(c *gin.Context) {
	var input dto.UpdateItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.ID = c.Param("id")

	item, err := h.uc.UpdateItem(c.Request.Context(), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *InventoryHandler) GetItem(c *gin.Context) {
	item, err := h.uc.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}

	actor := auth.ActorFromRequest(c)
	if !actor.CanAccessProperty(item.PropertyID) {
		httperr.JSON(c, model.ErrForbidden("no access to this property"))
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *InventoryHandler) ListItems(c *gin.Context) {
	actor := auth.ActorFromRequest(c)
	propertyID, ok := h.resolveProperty(c, actor)
	if !ok {
		return
	}

	filters := &dto.ItemFilters{
		PropertyID:   propertyID,
		Category:     c.Query("category"),
		SupplierID:   c.Query("supplier_id"),
		LowStockOnly: c.Query("low_stock_only") == "true",
		Skip:         queryInt(c, "skip", 0),
		Limit:        queryInt(c, "limit", 1000),
	}

	items, count, err := h.uc.ListItems(c.Request.Context(), filters)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": count})
}

func (h *InventoryHandler) DeactivateItem(c *gin.Context) {
	itemID := c.Param("id")

	item, err := h.uc.GetItem(c.Request.Context(), itemID)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	actor := auth.ActorFromRequest(c)
	if !actor.CanAccessProperty(item.PropertyID) {
		httperr.JSON(c, model.ErrForbidden("no access to this property"))
		return
	}

	if err := h.uc.DeactivateItem(c.Request.Context(), itemID); err != nil {
		httperr.JSON(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *InventoryHandler) ListCategories(c *gin.Context) {
	actor := auth.ActorFromRequest(c)
	propertyID, ok := h.resolveProperty(c, actor)
	if !ok {
		return
	}

	categories, err := h.uc.ListCategories(c.Request.Context(), propertyID)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *InventoryHandler) MatchItem(c *gin.Context) {
	var input dto.MatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := auth.ActorFromRequest(c)
	if !actor.CanAccessProperty(input.PropertyID) {
		httperr.JSON(c, model.ErrForbidden("no access to this property"))
		return
	}

	result, err := h.uc.MatchItem(c.Request.Context(), &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *InventoryHandler) SearchItems(c *gin.Context) {
	actor := auth.ActorFromRequest(c)
	propertyID, ok := h.resolveProperty(c, actor)
	if !ok {
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	items, err := h.uc.SearchItems(c.Request.Context(), propertyID, query, queryInt(c, "limit", 20))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *InventoryHandler) CreateCount(c *gin.Context) {
	var input dto.CreateCountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := auth.ActorFromRequest(c)
	if !actor.CanAccessProperty(input.PropertyID) {
		httperr.JSON(c, model.ErrForbidden("no access to this property"))
		return
	}

	count, err := h.uc.CreateCount(c.Request.Context(), actor, &input)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusCreated, count)
}

func (h *InventoryHandler) FinalizeCount(c *gin.Context) {
	actor := auth.ActorFromRequest(c)
	count, err := h.uc.FinalizeCount(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, count)
}

func (h *InventoryHandler) GetCount(c *gin.Context) {
	count, err := h.uc.GetCount(c.Request.Context(), c.Param("id"))
	if err != nil {
		httperr.JSON(c, err)
		return
	}

	actor := auth.ActorFromRequest(c)
	if !actor.CanAccessProperty(count.PropertyID) {
		httperr.JSON(c, model.ErrForbidden("no access to this property"))
		return
	}
	c.JSON(http.StatusOK, count)
}

func (h *InventoryHandler) ListCounts(c *gin.Context) {
	actor := auth.ActorFromRequest(c)
	propertyID, ok := h.resolveProperty(c, actor)
	if !ok {
		return
	}

	counts, err := h.uc.ListCounts(c.Request.Context(), propertyID,
		queryInt(c, "skip", 0), queryInt(c, "limit", 50))
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *InventoryHandler) PrintableList(c *gin.Context) {
	propertyID := c.Param("propertyID")

	actor := auth.ActorFromRequest(c)
	if !actor.CanAccessProperty(propertyID) {
		httperr.JSON(c, model.ErrForbidden("no access to this property"))
		return
	}

	list, err := h.uc.PrintableList(c.Request.Context(), propertyID)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// resolveProperty picks the property scope for list endpoints: the query
// parameter when present, the actor's own property for camp workers, and
// unscoped for reviewers.
func (h *InventoryHandler) resolveProperty(c *gin.Context, actor model.Actor) (string, bool) {
	propertyID := c.Query("property_id")
	if propertyID != "" {
		if !actor.CanAccessProperty(propertyID) {
			httperr.JSON(c, model.ErrForbidden("no access to this property"))
			return "", false
		}
		return propertyID, true
	}
	if actor.Role == model.RoleCampWorker {
		if actor.PropertyID == nil || *actor.PropertyID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no property assigned"})
			return "", false
		}
		return *actor.PropertyID, true
	}
	return "", true
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
