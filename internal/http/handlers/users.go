package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/attendhub/internal/cache"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"github.com/geocoder89/attendhub/internal/http/middlewares"
	"github.com/geocoder89/attendhub/internal/media"
	"github.com/geocoder89/attendhub/internal/security"
	"github.com/geocoder89/attendhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type UsersRepo interface {
	List(ctx context.Context) ([]user.Summary, error)
	GetDetail(ctx context.Context, id string) (user.Detail, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByUserName(ctx context.Context, userName string) (user.User, error)
	Create(ctx context.Context, in user.NewUser) (user.User, error)
	Update(ctx context.Context, id string, p user.Patch) (user.User, error)
	Delete(ctx context.Context, id string) (user.User, error)
}

type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

type UsersHandler struct {
	repo    UsersRepo
	tokens  TokenIssuer
	media   Uploader
	cleaner Remover
	cache   cache.Store
}

func NewUsersHandler(repo UsersRepo, tokens TokenIssuer, uploader Uploader, cleaner Remover, c cache.Store) *UsersHandler {
	return &UsersHandler{repo: repo, tokens: tokens, media: uploader, cleaner: cleaner, cache: c}
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	cctx, cancel := storeCtx(ctx)
	defer cancel()

	users, err := h.repo.List(cctx)
	if err != nil {
		logger(ctx).ErrorContext(ctx.Request.Context(), "list users failed", "err", err)
		RespondInternal(ctx, "could not list users")
		return
	}

	ctx.JSON(http.StatusOK, users)
}

func (h *UsersHandler) GetUserByID(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid user id")
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	u, err := h.repo.GetDetail(cctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "user not found")
			return
		}
		logger(ctx).ErrorContext(ctx.Request.Context(), "get user failed", "user_id", id, "err", err)
		RespondBadRequest(ctx, "could not fetch user")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest
	if !Bind(ctx, &req) {
		return
	}

	userName := strings.TrimSpace(req.UserName)
	if userName == "" {
		RespondBadRequest(ctx, "invalid request: userName is required")
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	_, err := h.repo.GetByUserName(cctx, userName)
	switch {
	case err == nil:
		RespondBadRequest(ctx, "username is already taken")
		return
	case !errors.Is(err, user.ErrNotFound):
		logger(ctx).ErrorContext(ctx.Request.Context(), "register lookup failed", "err", err)
		RespondInternal(ctx, "could not register user")
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrPasswordEmpty):
			RespondBadRequest(ctx, "invalid request: password is required")
		case errors.Is(err, security.ErrPasswordTooLong):
			RespondBadRequest(ctx, "invalid request: "+err.Error())
		default:
			logger(ctx).ErrorContext(ctx.Request.Context(), "password hash failed", "err", err)
			RespondInternal(ctx, "could not register user")
		}
		return
	}

	imageURL, ok := uploadOptional(ctx, h.media, "profileImageUrl", media.FolderUsers, http.StatusInternalServerError)
	if !ok {
		return
	}

	u, err := h.repo.Create(cctx, user.NewUser{
		UserName:        userName,
		Email:           strings.TrimSpace(req.Email),
		PasswordHash:    hash,
		Role:            user.RoleUser,
		ProfileImageURL: imageURL,
	})
	if err != nil {
		if imageURL != nil {
			h.cleaner.Remove(ctx.Request.Context(), *imageURL, "user register failed")
		}
		if errors.Is(err, user.ErrUserNameTaken) {
			RespondBadRequest(ctx, "username is already taken")
			return
		}
		logger(ctx).ErrorContext(ctx.Request.Context(), "register failed", "err", err)
		RespondInternal(ctx, "could not register user")
		return
	}

	token, err := h.tokens.GenerateToken(u.ID)
	if err != nil {
		logger(ctx).ErrorContext(ctx.Request.Context(), "token generation failed", "user_id", u.ID, "err", err)
		RespondInternal(ctx, "could not generate token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user":  u,
		"token": token,
	})
}

func (h *UsersHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest
	if !Bind(ctx, &req) {
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	u, err := h.repo.GetByUserName(cctx, strings.TrimSpace(req.UserName))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondBadRequest(ctx, "invalid username or password")
			return
		}
		logger(ctx).ErrorContext(ctx.Request.Context(), "login lookup failed", "err", err)
		RespondInternal(ctx, "could not log in")
		return
	}

	if err := security.CheckPassword(u.PasswordHash, req.Password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			RespondBadRequest(ctx, "invalid username or password")
			return
		}
		logger(ctx).ErrorContext(ctx.Request.Context(), "password check failed", "user_id", u.ID, "err", err)
		RespondInternal(ctx, "could not log in")
		return
	}

	token, err := h.tokens.GenerateToken(u.ID)
	if err != nil {
		logger(ctx).ErrorContext(ctx.Request.Context(), "token generation failed", "user_id", u.ID, "err", err)
		RespondInternal(ctx, "could not generate token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user":  u,
		"token": token,
	})
}

func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid user id")
		return
	}

	var req user.UpdateUserRequest
	if !Bind(ctx, &req) {
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	current, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "user not found")
			return
		}
		logger(ctx).ErrorContext(ctx.Request.Context(), "update user lookup failed", "user_id", id, "err", err)
		RespondInternal(ctx, "could not update user")
		return
	}

	patch := user.Patch{Email: req.Email}
	if req.UserName != nil {
		name := strings.TrimSpace(*req.UserName)
		if name == "" {
			RespondBadRequest(ctx, "invalid request: userName cannot be blank")
			return
		}
		patch.UserName = &name
	}
	if req.Role != nil && middlewares.IsAdmin(ctx) {
		patch.Role = req.Role
	}

	if req.CurrentPassword != nil && req.NewPassword != nil {
		hash, err := changedPasswordHash(current, *req.CurrentPassword, *req.NewPassword)
		if err != nil {
			switch {
			case errors.Is(err, user.ErrWrongPassword), errors.Is(err, user.ErrEmptyPassword):
				RespondBadRequest(ctx, err.Error())
			case errors.Is(err, security.ErrPasswordTooLong):
				RespondBadRequest(ctx, "invalid request: "+err.Error())
			default:
				logger(ctx).ErrorContext(ctx.Request.Context(), "password change failed", "user_id", id, "err", err)
				RespondInternal(ctx, "could not update user")
			}
			return
		}
		patch.PasswordHash = &hash
	}

	imageURL, ok := uploadOptional(ctx, h.media, "profileImageUrl", media.FolderUsers, http.StatusInternalServerError)
	if !ok {
		return
	}
	patch.ProfileImageURL = imageURL

	updated, err := h.repo.Update(cctx, id, patch)
	if err != nil {
		if imageURL != nil {
			h.cleaner.Remove(ctx.Request.Context(), *imageURL, "user update failed")
		}
		switch {
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "user not found")
		case errors.Is(err, user.ErrUserNameTaken):
			RespondBadRequest(ctx, "username is already taken")
		default:
			logger(ctx).ErrorContext(ctx.Request.Context(), "update user failed", "user_id", id, "err", err)
			RespondInternal(ctx, "could not update user")
		}
		return
	}

	if imageURL != nil && current.ProfileImageURL != nil && *current.ProfileImageURL != *imageURL {
		h.cleaner.Remove(ctx.Request.Context(), *current.ProfileImageURL, "profile image replaced")
	}

	// event views embed user names
	if patch.UserName != nil {
		h.invalidate(ctx)
	}

	ctx.JSON(http.StatusOK, updated)
}

func changedPasswordHash(u user.User, currentPassword, newPassword string) (string, error) {
	if err := security.CheckPassword(u.PasswordHash, currentPassword); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return "", user.ErrWrongPassword
		}
		return "", err
	}

	if strings.TrimSpace(newPassword) == "" {
		return "", user.ErrEmptyPassword
	}

	return security.HashPassword(newPassword)
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid user id")
		return
	}

	cctx, cancel := storeCtx(ctx)
	defer cancel()

	removed, err := h.repo.Delete(cctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "user not found")
			return
		}
		logger(ctx).ErrorContext(ctx.Request.Context(), "delete user failed", "user_id", id, "err", err)
		RespondInternal(ctx, "could not delete user")
		return
	}

	if removed.ProfileImageURL != nil {
		h.cleaner.Remove(ctx.Request.Context(), *removed.ProfileImageURL, "user deleted")
	}

	h.invalidate(ctx)
	ctx.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

func (h *UsersHandler) invalidate(ctx *gin.Context) {
	invalidateEventsList(ctx, h.cache)
}
