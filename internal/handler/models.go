package handler

import (
	"net/http"

	"polychat/internal/catalog"
	"polychat/internal/httputil"
)

// ModelsHandler serves the model catalog so clients can render pickers
// without hardcoding model IDs.
type ModelsHandler struct{}

func NewModelsHandler() *ModelsHandler {
	return &ModelsHandler{}
}

// List handles GET /api/models?type=chat|image (default chat).
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("type") {
	case "", "chat":
		httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"categories": catalog.ChatModels})
	case "image":
		httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"categories": catalog.ImageModels})
	default:
		httputil.RespondError(w, http.StatusBadRequest, "type must be chat or image")
	}
}
