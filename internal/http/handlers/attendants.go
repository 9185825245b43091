package handlers

import (
	"errors"
	"net/http"

	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"github.com/geocoder89/attendhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type AttendantRequest struct {
	UserID string `json:"userId" form:"userId" binding:"required"`
}

// attendantIDs binds the body and validates both ids.
func attendantIDs(ctx *gin.Context) (eventID, userID string, ok bool) {
	eventID = ctx.Param("id")

	var req AttendantRequest
	if !Bind(ctx, &req) {
		return "", "", false
	}

	if !utils.AllUUIDs(eventID, req.UserID) {
		RespondBadRequest(ctx, "invalid event or user id")
		return "", "", false
	}

	return eventID, req.UserID, true
}

func (h *EventsHandler) AddAttendant(ctx *gin.Context) {
	eventID, userID, ok := attendantIDs(ctx)
	if !ok {
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	err := h.repo.AddAttendant(cctx, eventID, userID)
	switch {
	case err == nil:
	case errors.Is(err, event.ErrNotFound):
		RespondNotFound(ctx, "event not found")
		return
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "user not found")
		return
	case errors.Is(err, event.ErrAlreadyAttending):
		RespondBadRequest(ctx, "user is already an attendant")
		return
	default:
		logger(ctx).ErrorContext(ctx.Request.Context(), "add attendant failed", "event_id", eventID, "user_id", userID, "err", err)
		RespondInternal(ctx, "could not add attendant")
		return
	}

	h.invalidate(ctx)
	ctx.JSON(http.StatusOK, gin.H{"message": "attendant added"})
}

func (h *EventsHandler) RemoveAttendant(ctx *gin.Context) {
	eventID, userID, ok := attendantIDs(ctx)
	if !ok {
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	view, err := h.repo.RemoveAttendant(cctx, eventID, userID)
	switch {
	case err == nil:
	case errors.Is(err, event.ErrNotFound):
		RespondNotFound(ctx, "event not found")
		return
	case errors.Is(err, event.ErrNotAttending):
		RespondBadRequest(ctx, "user is not an attendant")
		return
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "user not found")
		return
	default:
		logger(ctx).ErrorContext(ctx.Request.Context(), "remove attendant failed", "event_id", eventID, "user_id", userID, "err", err)
		RespondInternal(ctx, "could not remove attendant")
		return
	}

	h.invalidate(ctx)
	ctx.JSON(http.StatusOK, gin.H{
		"message": "attendant removed",
		"event":   view,
	})
}

func (h *EventsHandler) ListAttendees(ctx *gin.Context) {
	eventID := ctx.Param("id")
	if !utils.IsUUID(eventID) {
		RespondBadRequest(ctx, "invalid event id")
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	attendees, err := h.repo.ListAttendees(cctx, eventID)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "event not found")
			return
		}
		logger(ctx).ErrorContext(ctx.Request.Context(), "list attendees failed", "event_id", eventID, "err", err)
		RespondInternal(ctx, "could not list attendees")
		return
	}

	ctx.JSON(http.StatusOK, attendees)
}
