package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shelfex/backend/internal/models"
	"github.com/shelfex/backend/internal/repositories"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notificationRepository: notifRepo}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/users/notifications", h.GetNotifications)
	g.GET("/users/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/users/notifications/read-all", h.MarkAllAsRead)
	g.PUT("/users/notifications/:id/read", h.MarkAsRead)
	g.DELETE("/users/notifications/:id", h.DeleteNotification)
}

// GetNotifications returns the caller's log, latest first.
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)

	notifications, err := h.notificationRepository.List(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return c.JSON(http.StatusOK, notifications)
}

// GetUnreadCount returns the unread badge count.
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)

	count, err := h.notificationRepository.UnreadCount(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"unreadCount": count})
}

// MarkAsRead flags one notification as read.
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)

	err := h.notificationRepository.MarkRead(c.Request().Context(), currentUserID, c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Notification marked as read"})
}

// MarkAllAsRead flags the whole log as read.
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)

	if err := h.notificationRepository.MarkAllRead(c.Request().Context(), currentUserID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "All notifications marked as read"})
}

// DeleteNotification removes one entry from the log (read-acknowledgment).
func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)

	err := h.notificationRepository.Remove(c.Request().Context(), currentUserID, c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Notification removed"})
}
