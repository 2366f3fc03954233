package handler

import (
	"errors"
	"net/http"
	"strconv"

	"parley/internal/transport/httpdto"
	parley_errors "parley/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(value)
}

func parseOptionalUUID(value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func parseInt64(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}

// respondError translates domain errors into HTTP responses. Unknown
// errors surface as 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, parley_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("not found", "NOT_FOUND"))
	case errors.Is(err, parley_errors.ErrNotParticipant):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("not a participant", "NOT_PARTICIPANT"))
	case errors.Is(err, parley_errors.ErrNotSender):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("only the sender may do this", "NOT_SENDER"))
	case errors.Is(err, parley_errors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
	case errors.Is(err, parley_errors.ErrBlocked):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("blocked", "BLOCKED"))
	case errors.Is(err, parley_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	case errors.Is(err, parley_errors.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("content is required", "EMPTY_CONTENT"))
	case errors.Is(err, parley_errors.ErrInvalidReplyTarget):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid reply target", "INVALID_REPLY_TARGET"))
	case errors.Is(err, parley_errors.ErrInvalidParticipantCount):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid participant count", "INVALID_PARTICIPANTS"))
	case errors.Is(err, parley_errors.ErrMessageDeleted):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("message is deleted", "MESSAGE_DELETED"))
	case errors.Is(err, parley_errors.ErrEditConflict):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("concurrent edit, retry", "EDIT_CONFLICT"))
	case errors.Is(err, parley_errors.ErrConflict), errors.Is(err, parley_errors.ErrAlreadyExists):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse("conflict", "CONFLICT"))
	case errors.Is(err, parley_errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
	case errors.Is(err, parley_errors.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("storage unavailable", "STORE_UNAVAILABLE"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
	}
}

func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(msg, "INVALID_REQUEST"))
}

func respondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
}
