package handler

import (
	"net/http"

	"parley/internal/services"
	"parley/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	service *services.ConversationService
	ledger  *services.LedgerService
}

func NewConversationHandler(service *services.ConversationService, ledger *services.LedgerService) *ConversationHandler {
	return &ConversationHandler{service: service, ledger: ledger}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	participantIDs := make([]uuid.UUID, 0, len(req.ParticipantIDs))
	for _, raw := range req.ParticipantIDs {
		id, err := parseUUID(raw)
		if err != nil {
			respondBadRequest(c, "invalid participant id")
			return
		}
		participantIDs = append(participantIDs, id)
	}

	conv, err := h.service.Create(c.Request.Context(), services.CreateConversationInput{
		CreatorID:      userID,
		ParticipantIDs: participantIDs,
		Type:           req.Type,
		Title:          req.Title,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.ToConversationView(conv)))
}

func (h *ConversationHandler) Get(c *gin.Context) {
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid conversation id")
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	conv, err := h.service.Get(c.Request.Context(), userID, conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToConversationView(conv)))
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	page, err := parseInt(c.Query("page"))
	if err != nil {
		respondBadRequest(c, "invalid page")
		return
	}
	limit, err := parseInt(c.Query("limit"))
	if err != nil {
		respondBadRequest(c, "invalid limit")
		return
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	summaries, total, err := h.service.ListForUser(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := httpdto.ConversationListResponse{
		Conversations: make([]httpdto.ConversationSummaryView, 0, len(summaries)),
		Total:         total,
		Page:          page,
		Limit:         limit,
	}
	for _, s := range summaries {
		view := httpdto.ConversationSummaryView{
			ConversationView: httpdto.ToConversationView(s.Conversation),
			UnreadCount:      s.UnreadCount,
		}
		if s.LastMessage != nil {
			mv := httpdto.ToMessageView(*s.LastMessage)
			view.LastMessage = &mv
		}
		resp.Conversations = append(resp.Conversations, view)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}

func (h *ConversationHandler) AddParticipant(c *gin.Context) {
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid conversation id")
		return
	}

	var req httpdto.AddParticipantRequest
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

	if err := h.service.AddParticipant(c.Request.Context(), userID, conversationID, targetID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid conversation id")
		return
	}
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

	if err := h.service.RemoveParticipant(c.Request.Context(), userID, conversationID, targetID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// MarkRead receipts everything unread in the conversation, optionally
// bounded by up_to_seq.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid conversation id")
		return
	}

	var req httpdto.MarkConversationReadRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondBadRequest(c, "invalid request")
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	marked, err := h.ledger.MarkConversationRead(c.Request.Context(), userID, conversationID, req.UpToSeq)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"marked": marked}))
}

func (h *ConversationHandler) UnreadCount(c *gin.Context) {
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid conversation id")
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	count, err := h.ledger.UnreadCount(c.Request.Context(), userID, conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"unread_count": count}))
}
