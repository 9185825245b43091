package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Uploader is the part of the media store handlers write through.
type Uploader interface {
	Upload(ctx context.Context, file *multipart.FileHeader, folder string) (string, error)
}

// Remover deletes media best-effort; it never fails the request.
type Remover interface {
	Remove(ctx context.Context, url, reason string)
}

// optionalFile returns the multipart file under field, or nil when the
// request carries none.
func optionalFile(ctx *gin.Context, field string) (*multipart.FileHeader, error) {
	if !strings.HasPrefix(ctx.ContentType(), gin.MIMEMultipartPOSTForm) {
		return nil, nil
	}

	fh, err := ctx.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fh, nil
}

// uploadOptional uploads the file under field when present and returns its
// url. On failure it answers with failStatus and reports ok=false.
func uploadOptional(ctx *gin.Context, media Uploader, field, folder string, failStatus int) (url *string, ok bool) {
	fh, err := optionalFile(ctx, field)
	if err != nil {
		RespondBadRequest(ctx, "invalid "+field+" file")
		return nil, false
	}
	if fh == nil {
		return nil, true
	}

	u, err := media.Upload(ctx.Request.Context(), fh, folder)
	if err != nil {
		logger(ctx).ErrorContext(ctx.Request.Context(), "image upload failed", "field", field, "err", err)
		RespondError(ctx, failStatus, "could not upload image")
		return nil, false
	}

	return &u, true
}
