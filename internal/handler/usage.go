package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/middleware"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/quota"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/logger"
)

// UsageHandler serves the caller's weekly quota position.
type UsageHandler struct {
	resolver TierResolver
	ledger   *quota.Ledger
	logger   *logger.Logger
}

// NewUsageHandler creates a usage handler.
func NewUsageHandler(resolver TierResolver, ledger *quota.Ledger, log *logger.Logger) *UsageHandler {
	return &UsageHandler{resolver: resolver, ledger: ledger, logger: log}
}

// Get handles GET /api/v1/usage. The reply has the same shape as a chat
// request with checkUsage set.
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller identity")
		return
	}

	tier := h.resolver.Resolve(ctx, userID)
	status, err := h.ledger.Status(ctx, userID, tier)
	if err != nil {
		h.logger.Error("failed to read usage", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not read usage")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
