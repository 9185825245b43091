package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/geocoder89/attendhub/internal/cache"
	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/http/middlewares"
	"github.com/geocoder89/attendhub/internal/media"
	"github.com/geocoder89/attendhub/internal/sanitize"
	"github.com/geocoder89/attendhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type EventsRepo interface {
	List(ctx context.Context) ([]event.View, error)
	GetByID(ctx context.Context, id string) (event.View, error)
	Create(ctx context.Context, in event.NewEvent) (event.Event, error)
	Update(ctx context.Context, id string, p event.Patch) (event.Event, error)
	Delete(ctx context.Context, id string) (event.Event, error)
	AddAttendant(ctx context.Context, eventID, userID string) error
	RemoveAttendant(ctx context.Context, eventID, userID string) (event.View, error)
	ListAttendees(ctx context.Context, eventID string) ([]event.UserRef, error)
}

type EventsHandler struct {
	repo    EventsRepo
	media   Uploader
	cleaner Remover
	cache   cache.Store
}

func NewEventsHandler(repo EventsRepo, uploader Uploader, cleaner Remover, c cache.Store) *EventsHandler {
	return &EventsHandler{repo: repo, media: uploader, cleaner: cleaner, cache: c}
}

func (h *EventsHandler) ListEvents(ctx *gin.Context) {
	rctx := ctx.Request.Context()

	// the key is pinned before loading so a write that lands mid-load bumps
	// readers past whatever this request stores
	var key string
	if h.cache != nil {
		if gen, ok := h.cache.Generation(rctx, utils.EventsListCacheKey); ok {
			key = cache.VersionedKey(utils.EventsListCacheKey, gen)
			if body, hit := h.cache.Get(rctx, key); hit {
				RespondEncodedWithETag(ctx, http.StatusOK, body)
				return
			}
		}
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	events, err := h.repo.List(cctx)
	if err != nil {
		logger(ctx).ErrorContext(rctx, "list events failed", "err", err)
		RespondBadRequest(ctx, "could not list events")
		return
	}

	body, err := json.Marshal(events)
	if err != nil {
		RespondBadRequest(ctx, "could not list events")
		return
	}

	if key != "" {
		h.cache.Set(rctx, key, body)
	}

	RespondEncodedWithETag(ctx, http.StatusOK, body)
}

func (h *EventsHandler) GetEventByID(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid event id")
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	e, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "event not found")
			return
		}
		logger(ctx).ErrorContext(ctx.Request.Context(), "get event failed", "event_id", id, "err", err)
		RespondBadRequest(ctx, "could not fetch event")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, e)
}

func (h *EventsHandler) CreateEvent(ctx *gin.Context) {
	var req event.CreateEventRequest
	if !Bind(ctx, &req) {
		return
	}

	date, err := event.ParseDate(req.Date)
	if err != nil {
		RespondBadRequest(ctx, "invalid request: date must be a date or datetime")
		return
	}

	in := event.NewEvent{
		Title:       sanitize.Text(req.Title),
		Description: sanitize.Text(req.Description),
		Date:        date,
		CreatedBy:   req.CreatedBy,
	}
	if in.Title == "" || in.Description == "" {
		RespondBadRequest(ctx, "invalid request: title and description are required")
		return
	}

	if uid, ok := middlewares.UserIDFromContext(ctx); ok && req.CreatedBy != nil && *req.CreatedBy != uid {
		logger(ctx).WarnContext(ctx.Request.Context(), "event createdBy differs from caller", "created_by", *req.CreatedBy, "user_id", uid)
	}

	imageURL, ok := uploadOptional(ctx, h.media, "imageUrl", media.FolderEvents, http.StatusBadRequest)
	if !ok {
		return
	}
	in.ImageURL = imageURL

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	created, err := h.repo.Create(cctx, in)
	if err != nil {
		logger(ctx).ErrorContext(ctx.Request.Context(), "create event failed", "err", err)
		if imageURL != nil {
			h.cleaner.Remove(ctx.Request.Context(), *imageURL, "event create failed")
		}
		RespondBadRequest(ctx, "could not create event")
		return
	}

	h.invalidate(ctx)
	ctx.JSON(http.StatusCreated, created)
}

func (h *EventsHandler) UpdateEvent(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid event id")
		return
	}

	var req event.UpdateEventRequest
	if !Bind(ctx, &req) {
		return
	}

	patch := event.Patch{
		Title:       sanitize.TextPtr(req.Title),
		Description: sanitize.TextPtr(req.Description),
	}
	if req.Date != nil {
		date, err := event.ParseDate(*req.Date)
		if err != nil {
			RespondBadRequest(ctx, "invalid request: date must be a date or datetime")
			return
		}
		patch.Date = &date
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	// fetched first so a missing event never costs an upload
	current, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "event not found")
			return
		}
		logger(ctx).ErrorContext(ctx.Request.Context(), "update event lookup failed", "event_id", id, "err", err)
		RespondBadRequest(ctx, "could not update event")
		return
	}

	imageURL, ok := uploadOptional(ctx, h.media, "imageUrl", media.FolderEvents, http.StatusBadRequest)
	if !ok {
		return
	}
	patch.ImageURL = imageURL

	updated, err := h.repo.Update(cctx, id, patch)
	if err != nil {
		if imageURL != nil {
			h.cleaner.Remove(ctx.Request.Context(), *imageURL, "event update failed")
		}
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "event not found")
			return
		}
		logger(ctx).ErrorContext(ctx.Request.Context(), "update event failed", "event_id", id, "err", err)
		RespondBadRequest(ctx, "could not update event")
		return
	}

	if imageURL != nil && current.ImageURL != nil && *current.ImageURL != *imageURL {
		h.cleaner.Remove(ctx.Request.Context(), *current.ImageURL, "event image replaced")
	}

	h.invalidate(ctx)
	ctx.JSON(http.StatusOK, updated)
}

func (h *EventsHandler) DeleteEvent(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid event id")
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	removed, err := h.repo.Delete(cctx, id)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "event not found")
			return
		}
		logger(ctx).ErrorContext(ctx.Request.Context(), "delete event failed", "event_id", id, "err", err)
		RespondBadRequest(ctx, "could not delete event")
		return
	}

	if removed.ImageURL != nil {
		h.cleaner.Remove(ctx.Request.Context(), *removed.ImageURL, "event deleted")
	}

	h.invalidate(ctx)
	ctx.JSON(http.StatusOK, gin.H{
		"message": "event deleted",
		"event":   removed,
	})
}

func (h *EventsHandler) invalidate(ctx *gin.Context) {
	invalidateEventsList(ctx, h.cache)
}

func invalidateEventsList(ctx *gin.Context, c cache.Store) {
	if c != nil {
		c.Bump(ctx.Request.Context(), utils.EventsListCacheKey)
	}
}
