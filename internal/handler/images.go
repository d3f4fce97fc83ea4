package handler

import (
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"polychat/internal/httputil"
	"polychat/internal/service"
)

// ImageHandler exposes image generation and job polling.
type ImageHandler struct {
	service *service.ImageService
	logger  *slog.Logger
}

func NewImageHandler(svc *service.ImageService, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{service: svc, logger: logger}
}

type generateImageRequest struct {
	ChatID  string         `json:"chat_id"`
	ModelID string         `json:"model_id"`
	Prompt  string         `json:"prompt"`
	Options map[string]any `json:"options"`
}

func (r generateImageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ModelID, validation.Required),
		validation.Field(&r.Prompt, validation.Required, validation.Length(1, 4000)),
	)
}

// Generate handles POST /api/images. Async providers return 202 with a
// job ID to poll; the synchronous provider returns 200 with the final
// mirrored URL.
func (h *ImageHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateImageRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	result, err := h.service.Generate(r.Context(), service.GenerateRequest{
		UserID:  httputil.GetUserID(r),
		ChatID:  req.ChatID,
		ModelID: req.ModelID,
		Prompt:  req.Prompt,
		Options: req.Options,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if result.JobID != "" {
		status = http.StatusAccepted
	}
	httputil.RespondJSON(w, status, result)
}

// Poll handles GET /api/images/{jobID}. Repeated polls of a finished
// job always return the same answer.
func (h *ImageHandler) Poll(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Poll(r.Context(), r.PathValue("jobID"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, job)
}
