package handler

import (
	"net/http"

	"parley/internal/services"
	"parley/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type BlockHandler struct {
	service *services.BlockService
}

func NewBlockHandler(service *services.BlockService) *BlockHandler {
	return &BlockHandler{service: service}
}

func (h *BlockHandler) Block(c *gin.Context) {
	var req httpdto.BlockUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}
	targetID, err := parseUUID(req.UserID)
	if err != nil {
		respondBadRequest(c, "invalid user_id")
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	if err := h.service.Block(c.Request.Context(), userID, targetID, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *BlockHandler) Unblock(c *gin.Context) {
	targetID, err := parseUUID(c.Param("userId"))
	if err != nil {
		respondBadRequest(c, "invalid user id")
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	if err := h.service.Unblock(c.Request.Context(), userID, targetID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *BlockHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	blocks, err := h.service.ListBlocked(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := httpdto.BlockListResponse{Blocks: make([]httpdto.BlockView, 0, len(blocks))}
	for _, b := range blocks {
		resp.Blocks = append(resp.Blocks, httpdto.BlockView{
			BlockedID: b.BlockedID,
			Reason:    b.Reason,
			CreatedAt: b.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}
