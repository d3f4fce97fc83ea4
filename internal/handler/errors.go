package handler

import (
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"polychat/internal/httputil"
	"polychat/internal/imagejob"
	"polychat/internal/llm"
	"polychat/internal/quota"
	"polychat/internal/repository/postgres"
	"polychat/internal/usage"
)

// respondServiceError maps service-layer errors onto HTTP statuses.
// Provider failures are summarized rather than relayed verbatim so
// upstream error bodies never leak to clients.
func respondServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var quotaErr *quota.QuotaExceededError
	if errors.As(err, &quotaErr) {
		httputil.RespondErrorWithExtras(w, http.StatusForbidden, "plan limit reached", map[string]interface{}{
			"reason": string(quotaErr.Reason),
			"tier":   string(quotaErr.Tier),
		})
		return
	}

	var modelErr *llm.UnsupportedModelError
	if errors.As(err, &modelErr) {
		httputil.RespondError(w, http.StatusBadRequest, modelErr.Error())
		return
	}

	var provErr *llm.ProviderInvocationError
	if errors.As(err, &provErr) {
		logger.Error("provider call failed",
			"provider", provErr.Provider,
			"status", provErr.Status,
			"message", provErr.Message,
		)
		httputil.RespondError(w, http.StatusBadGateway, "upstream model provider failed")
		return
	}

	var subErr *imagejob.SubmissionError
	if errors.As(err, &subErr) {
		logger.Error("image job submission failed", "detail", subErr.Detail)
		httputil.RespondError(w, http.StatusBadGateway, "image provider rejected the request")
		return
	}

	var vErrs validation.Errors
	if errors.As(err, &vErrs) {
		httputil.RespondError(w, http.StatusBadRequest, vErrs.Error())
		return
	}

	switch {
	case errors.Is(err, usage.ErrUserNotFound):
		httputil.RespondError(w, http.StatusNotFound, "user record not found")
	case errors.Is(err, postgres.ErrChatNotFound):
		httputil.RespondError(w, http.StatusNotFound, "chat not found")
	case errors.Is(err, postgres.ErrBotNotFound):
		httputil.RespondError(w, http.StatusNotFound, "bot not found")
	case errors.Is(err, llm.ErrNoValidMessages):
		httputil.RespondError(w, http.StatusBadRequest, "message must not be empty")
	case errors.Is(err, imagejob.ErrEmptyPrompt):
		httputil.RespondError(w, http.StatusBadRequest, "prompt must not be empty")
	case errors.Is(err, imagejob.ErrPollTimeout):
		httputil.RespondError(w, http.StatusGatewayTimeout, "image job still pending")
	default:
		logger.Error("request failed", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
