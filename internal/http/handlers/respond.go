package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/attendhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

const storeTimeout = 5 * time.Second

func requestIDFrom(ctx *gin.Context) string {
	if s := ctx.GetString(middlewares.CtxRequestID); s != "" {
		return s
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func logger(ctx *gin.Context) *slog.Logger {
	return slog.Default().With("request_id", requestIDFrom(ctx))
}

// RespondError writes {"error": message}, tagged with the request id when known.
func RespondError(ctx *gin.Context, status int, message string) {
	body := gin.H{"error": message}
	if id := requestIDFrom(ctx); id != "" {
		body["requestId"] = id
	}
	ctx.JSON(status, body)
}

func RespondBadRequest(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusBadRequest, message)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, message)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, message)
}

func RespondUnauthorized(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnauthorized, message)
}

// storeCtx bounds a storage call by the request context.
func storeCtx(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), storeTimeout)
}

func RouteNotFound(ctx *gin.Context) {
	ctx.JSON(http.StatusNotFound, "route not found")
}
