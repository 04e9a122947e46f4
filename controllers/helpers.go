package controllers

import (
	"net/http"
	"strconv"

	apperrors "hardline-backend/common/errors"
	"hardline-backend/middleware"
	"hardline-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// parsePaginationParams extracts and validates pagination parameters
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const MaxLimit = 100
	const DefaultPage = 1
	const DefaultLimit = 10

	page := ctx.DefaultQuery("page", "1")
	limit := ctx.DefaultQuery("limit", "10")

	pageInt := DefaultPage
	limitInt := DefaultLimit

	if p, err := strconv.Atoi(page); err == nil && p > 0 {
		pageInt = p
	}

	if l, err := strconv.Atoi(limit); err == nil && l > 0 {
		limitInt = l
		if limitInt > MaxLimit {
			limitInt = MaxLimit
		}
	}

	return pageInt, limitInt
}

// requireIdentity writes 401 and returns false when the auth middleware did
// not run.
func requireIdentity(ctx *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.GetIdentity(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return models.Identity{}, false
	}
	return identity, true
}

func parseIDParam(ctx *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + label + " ID format"})
		return uuid.Nil, false
	}
	return id, true
}

func respondError(ctx *gin.Context, err *apperrors.Error) {
	apperrors.Respond(ctx, err)
}
