package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/postboard/store"
	"github.com/cppla/postboard/utils"
)

// respondError maps store errors onto HTTP status and business code. Anything it does not
// recognize is logged and reported as internalCode without leaking details.
func respondError(ctx *gin.Context, err error, internalCode int, internalMsg string) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.Error(ctx, http.StatusBadRequest, 40001, verr.Error())
	case errors.Is(err, store.ErrDuplicateKey):
		utils.Error(ctx, http.StatusBadRequest, 40002, "username or email already exists")
	case errors.Is(err, store.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "resource not found")
	case errors.Is(err, store.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40310, "unauthorized")
	default:
		utils.Logger.Sugar().Errorw(internalMsg, "path", ctx.FullPath(), "err", err)
		utils.Error(ctx, http.StatusInternalServerError, internalCode, internalMsg)
	}
}

// paramID parses a numeric path parameter. Malformed ids answer 404 like unknown ones.
func paramID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusNotFound, 40401, "resource not found")
		return 0, false
	}
	return uint(id), true
}
