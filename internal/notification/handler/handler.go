package handler

import (
	"net/http"
	"strconv"

	"github.com/campops/procurement-service/internal/auth"
	"github.com/campops/procurement-service/internal/httperr"
	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/notification"
	"github.com/campops/procurement-service/internal/notification/dto"
	"github.com/campops/procurement-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	uc     notification.UseCase
	logger logger.ZapLogger
}

func NewNotificationHandler(uc notification.UseCase, log logger.ZapLogger) *NotificationHandler {
	return &NotificationHandler{uc: uc, logger: log}
}

func (h *NotificationHandler) ListMine(c *gin.Context) {
	actor := auth.ActorFromRequest(c)
	if actor.UserID == "" {
		httperr.JSON(c, model.ErrForbidden("caller identity missing"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	unreadOnly := c.Query("unread_only") == "true"

	list, err := h.uc.ListMine(c.Request.Context(), actor.UserID, unreadOnly, limit)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	actor := auth.ActorFromRequest(c)
	if actor.UserID == "" {
		httperr.JSON(c, model.ErrForbidden("caller identity missing"))
		return
	}

	count, err := h.uc.UnreadCount(c.Request.Context(), actor.UserID)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var input dto.MarkReadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := auth.ActorFromRequest(c)
	marked, err := h.uc.MarkRead(c.Request.Context(), actor.UserID, input.NotificationIDs)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MarkResult{Success: true, MarkedCount: marked})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor := auth.ActorFromRequest(c)
	marked, err := h.uc.MarkAllRead(c.Request.Context(), actor.UserID)
	if err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MarkResult{Success: true, MarkedCount: marked})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	actor := auth.ActorFromRequest(c)
	if err := h.uc.Delete(c.Request.Context(), actor.UserID, c.Param("id")); err != nil {
		httperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
