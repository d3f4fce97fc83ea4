package handler

import (
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"polychat/internal/handler/sse"
	"polychat/internal/httputil"
	"polychat/internal/llm"
	"polychat/internal/relay"
	"polychat/internal/repository/postgres"
	"polychat/internal/service"
)

// ChatHandler exposes conversations and chat exchanges.
type ChatHandler struct {
	chats   *postgres.ConversationRepository
	service *service.ChatService
	logger  *slog.Logger
}

func NewChatHandler(chats *postgres.ConversationRepository, svc *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, service: svc, logger: logger}
}

type createChatRequest struct {
	Name string `json:"name"`
}

func (r createChatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

type sendMessageRequest struct {
	ChatID  string     `json:"chat_id"`
	ModelID string     `json:"model_id"`
	Message string     `json:"message"`
	Kwargs  llm.Kwargs `json:"kwargs"`
}

func (r sendMessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ModelID, validation.Required),
		validation.Field(&r.Message, validation.Required),
	)
}

// CreateChat handles POST /api/chats
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	chat, err := h.chats.CreateChat(r.Context(), httputil.GetUserID(r), req.Name)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, chat)
}

// GetHistory handles GET /api/chats/{chatID}/messages
func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	chatID, err := h.authorizeChat(r)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	messages, err := h.chats.GetHistory(r.Context(), chatID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// DeleteChat handles DELETE /api/chats/{chatID}
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	err := h.chats.DeleteChat(r.Context(), r.PathValue("chatID"), httputil.GetUserID(r))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage handles POST /api/chat: one full exchange, response
// returned as a single JSON body.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseSend(w, r)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	result, err := h.service.Send(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// StreamMessage handles POST /api/chat/stream: the same exchange
// delivered as server-sent events. Deltas arrive as "delta" events in
// provider order; the terminal event is either "done" with the billed
// usage or "error" with the partial text accumulated so far.
func (h *ChatHandler) StreamMessage(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseSend(w, r)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	stream, err := sse.NewStream(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	keepAlive := sse.NewKeepAlive(sse.DefaultKeepAliveInterval)
	keepAlive.Start(stream, h.logger)

	sink := relay.SinkFunc(func(delta string) error {
		return stream.SendEvent("delta", map[string]string{"content": delta})
	})

	result, err := h.service.Stream(r.Context(), req, sink)
	keepAlive.Stop()

	if err != nil {
		// Headers are already out; the only channel left is the stream.
		h.logger.Warn("stream ended with error", "error", err, "user_id", req.UserID)
		stream.SendEvent("error", map[string]string{"detail": streamErrorDetail(err)})
		return
	}

	stream.SendEvent("done", result)
}

func streamErrorDetail(err error) string {
	var provErr *llm.ProviderInvocationError
	if errors.As(err, &provErr) {
		return "upstream model provider failed"
	}
	return err.Error()
}

func (h *ChatHandler) parseSend(w http.ResponseWriter, r *http.Request) (service.SendRequest, error) {
	var req sendMessageRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		return service.SendRequest{}, err
	}
	if err := req.Validate(); err != nil {
		return service.SendRequest{}, err
	}

	if req.ChatID != "" {
		if _, err := h.chats.GetChat(r.Context(), req.ChatID, httputil.GetUserID(r)); err != nil {
			return service.SendRequest{}, err
		}
	}

	return service.SendRequest{
		UserID:  httputil.GetUserID(r),
		ChatID:  req.ChatID,
		ModelID: req.ModelID,
		Message: req.Message,
		Kwargs:  req.Kwargs,
	}, nil
}

func (h *ChatHandler) authorizeChat(r *http.Request) (string, error) {
	chatID := r.PathValue("chatID")
	if _, err := h.chats.GetChat(r.Context(), chatID, httputil.GetUserID(r)); err != nil {
		return "", err
	}
	return chatID, nil
}
