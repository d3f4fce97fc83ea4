package handler

import (
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"polychat/internal/handler/sse"
	"polychat/internal/httputil"
	"polychat/internal/llm"
	"polychat/internal/models"
	"polychat/internal/relay"
	"polychat/internal/repository/postgres"
	"polychat/internal/service"
)

// BotHandler exposes bot CRUD for authenticated owners plus the
// key-authenticated invoke endpoint used by the bots themselves.
type BotHandler struct {
	service *service.BotService
	logger  *slog.Logger
}

func NewBotHandler(svc *service.BotService, logger *slog.Logger) *BotHandler {
	return &BotHandler{service: svc, logger: logger}
}

type botRequest struct {
	Name          string     `json:"name"`
	SystemContext string     `json:"system_context"`
	ModelID       string     `json:"model_id"`
	Kwargs        llm.Kwargs `json:"kwargs"`
}

func (r botRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.SystemContext, validation.Required),
		validation.Field(&r.ModelID, validation.Required),
	)
}

// Create handles POST /api/bots. The response is the only place the
// minted API key appears in full.
func (h *BotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req botRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	bot, err := h.service.Create(r.Context(), service.CreateBotRequest{
		OwnerID:       httputil.GetUserID(r),
		Name:          req.Name,
		SystemContext: req.SystemContext,
		ModelID:       req.ModelID,
		Kwargs:        req.Kwargs,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, bot)
}

// Get handles GET /api/bots/{botID}. Only the owner may read a bot.
func (h *BotHandler) Get(w http.ResponseWriter, r *http.Request) {
	bot, err := h.service.Get(r.Context(), r.PathValue("botID"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if bot.OwnerID != httputil.GetUserID(r) {
		httputil.RespondError(w, http.StatusNotFound, "bot not found")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, bot)
}

// Update handles PUT /api/bots/{botID}.
func (h *BotHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req botRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	err := h.service.Update(r.Context(), models.Bot{
		ID:            r.PathValue("botID"),
		OwnerID:       httputil.GetUserID(r),
		Name:          req.Name,
		SystemContext: req.SystemContext,
		ModelID:       req.ModelID,
		Kwargs:        req.Kwargs,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/bots/{botID}.
func (h *BotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(r.Context(), r.PathValue("botID"), httputil.GetUserID(r))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type invokeBotRequest struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

func (r invokeBotRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.Required),
	)
}

// Invoke handles POST /api/bots/invoke, authenticated by the bot's own
// API key rather than a user token. Usage lands on the owner's quota.
func (h *BotHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get("X-Bot-Key")
	if apiKey == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "missing bot API key")
		return
	}

	bot, err := h.service.Authenticate(r.Context(), apiKey)
	if err != nil {
		if errors.Is(err, postgres.ErrBotNotFound) {
			httputil.RespondError(w, http.StatusUnauthorized, "invalid bot API key")
			return
		}
		respondServiceError(w, h.logger, err)
		return
	}

	var req invokeBotRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	result, err := h.service.Invoke(r.Context(), bot, req.ChatID, req.Message)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// InvokeStream handles POST /api/bots/invoke/stream, the SSE variant of
// Invoke. Event framing matches the user-facing chat stream.
func (h *BotHandler) InvokeStream(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get("X-Bot-Key")
	if apiKey == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "missing bot API key")
		return
	}

	bot, err := h.service.Authenticate(r.Context(), apiKey)
	if err != nil {
		if errors.Is(err, postgres.ErrBotNotFound) {
			httputil.RespondError(w, http.StatusUnauthorized, "invalid bot API key")
			return
		}
		respondServiceError(w, h.logger, err)
		return
	}

	var req invokeBotRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
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

	result, err := h.service.InvokeStream(r.Context(), bot, req.ChatID, req.Message, sink)
	keepAlive.Stop()

	if err != nil {
		h.logger.Warn("bot stream ended with error", "error", err, "bot_id", bot.ID)
		stream.SendEvent("error", map[string]string{"detail": streamErrorDetail(err)})
		return
	}

	stream.SendEvent("done", result)
}
