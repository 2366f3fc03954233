package handler

import (
	"net/http"

	"parley/internal/services"
	"parley/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	service *services.MessageService
	ledger  *services.LedgerService
}

func NewMessageHandler(service *services.MessageService, ledger *services.LedgerService) *MessageHandler {
	return &MessageHandler{service: service, ledger: ledger}
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	conversationID, err := parseUUID(req.ConversationID)
	if err != nil {
		respondBadRequest(c, "invalid conversation_id")
		return
	}

	input := services.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       userID,
		Type:           req.Type,
		Content:        req.Content,
		AttachmentURL:  req.AttachmentURL,
		AttachmentName: req.AttachmentName,
		AttachmentSize: req.AttachmentSize,
	}
	if req.ReplyToID != nil {
		replyID, err := parseUUID(*req.ReplyToID)
		if err != nil {
			respondBadRequest(c, "invalid reply_to_id")
			return
		}
		input.ReplyToID = &replyID
	}

	msg, err := h.service.Send(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.ToMessageView(msg)))
}

func (h *MessageHandler) List(c *gin.Context) {
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid conversation id")
		return
	}
	beforeSeq, err := parseInt64(c.Query("before_seq"))
	if err != nil {
		respondBadRequest(c, "invalid before_seq")
		return
	}
	limit, err := parseInt(c.Query("limit"))
	if err != nil {
		respondBadRequest(c, "invalid limit")
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	msgs, err := h.service.List(c.Request.Context(), userID, conversationID, beforeSeq, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MessageListResponse{
		Messages: httpdto.ToMessageViews(msgs),
	}))
}

// CatchUp returns messages after a client's last seen sequence, for
// resynchronizing after a dropped connection.
func (h *MessageHandler) CatchUp(c *gin.Context) {
	conversationID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid conversation id")
		return
	}
	afterSeq, err := parseInt64(c.Query("after_seq"))
	if err != nil {
		respondBadRequest(c, "invalid after_seq")
		return
	}
	limit, err := parseInt(c.Query("limit"))
	if err != nil {
		respondBadRequest(c, "invalid limit")
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	msgs, err := h.service.CatchUp(c.Request.Context(), userID, conversationID, afterSeq, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MessageListResponse{
		Messages: httpdto.ToMessageViews(msgs),
	}))
}

func (h *MessageHandler) Get(c *gin.Context) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid message id")
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	msg, err := h.service.Get(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}

	view := httpdto.ToMessageView(msg)
	reactions, err := h.ledger.Reactions(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	view.Reactions = toReactionViews(reactions)
	receipts, err := h.ledger.Receipts(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	for _, r := range receipts {
		view.ReadReceipts = append(view.ReadReceipts, httpdto.ReceiptView{UserID: r.UserID, ReadAt: r.ReadAt})
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

func toReactionViews(summaries []services.ReactionSummary) []httpdto.ReactionView {
	views := make([]httpdto.ReactionView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, httpdto.ReactionView{
			Emoji:    s.Emoji,
			Count:    s.Count,
			UserIDs:  s.UserIDs,
			DidReact: s.DidReact,
		})
	}
	return views
}

func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid message id")
		return
	}

	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	msg, err := h.service.Edit(c.Request.Context(), services.EditMessageInput{
		MessageID: messageID,
		SenderID:  userID,
		Content:   req.Content,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToMessageView(msg)))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid message id")
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	if err := h.service.Delete(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *MessageHandler) Search(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	conversationID, err := parseOptionalUUID(c.Query("conversation_id"))
	if err != nil {
		respondBadRequest(c, "invalid conversation_id")
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

	msgs, total, err := h.service.Search(c.Request.Context(), userID, c.Query("q"), conversationID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.SearchResponse{
		Messages: httpdto.ToMessageViews(msgs),
		Total:    total,
		Page:     page,
		Limit:    limit,
	}))
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid message id")
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	if err := h.ledger.MarkRead(c.Request.Context(), userID, messageID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *MessageHandler) Receipts(c *gin.Context) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid message id")
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	receipts, err := h.ledger.Receipts(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]httpdto.ReceiptView, 0, len(receipts))
	for _, r := range receipts {
		views = append(views, httpdto.ReceiptView{UserID: r.UserID, ReadAt: r.ReadAt})
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"receipts": views}))
}

func (h *MessageHandler) AddReaction(c *gin.Context) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid message id")
		return
	}

	var req httpdto.AddReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request")
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	if err := h.ledger.AddReaction(c.Request.Context(), userID, messageID, req.Emoji); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid message id")
		return
	}
	emoji := c.Param("emoji")
	if emoji == "" {
		respondBadRequest(c, "invalid emoji")
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	if err := h.ledger.RemoveReaction(c.Request.Context(), userID, messageID, emoji); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *MessageHandler) Reactions(c *gin.Context) {
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid message id")
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondUnauthorized(c)
		return
	}

	reactions, err := h.ledger.Reactions(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"reactions": toReactionViews(reactions)}))
}
