package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/entitlement"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/llm"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/middleware"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/orchestrator"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/quota"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/throttle"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/tools"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/logger"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/metrics"
)

const maxBodyBytes = 4 << 20

// TierResolver maps a caller to an entitlement tier.
type TierResolver interface {
	Resolve(ctx context.Context, userID string) entitlement.Tier
}

// Completer runs one chat turn and returns the stream to relay.
type Completer interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// PromptBuilder assembles the system prompt.
type PromptBuilder interface {
	Build(ctx context.Context, userID, domain string) string
}

// UsagePublisher receives an event after minutes are debited.
type UsagePublisher interface {
	PublishUsage(ctx context.Context, event *model.UsageEvent) error
}

// ChatConfig holds model selection settings.
type ChatConfig struct {
	DefaultModel  string
	AllowedModels []string
}

// ChatHandler serves POST /api/v1/chat.
type ChatHandler struct {
	resolver     TierResolver
	throttle     *throttle.Limiter
	ledger       *quota.Ledger
	prompts      PromptBuilder
	completer    Completer
	publisher    UsagePublisher
	logger       *logger.Logger
	defaultModel string
	allowed      map[string]bool
}

// NewChatHandler creates a chat handler. publisher may be nil.
func NewChatHandler(
	resolver TierResolver,
	limiter *throttle.Limiter,
	ledger *quota.Ledger,
	prompts PromptBuilder,
	completer Completer,
	publisher UsagePublisher,
	log *logger.Logger,
	cfg ChatConfig,
) *ChatHandler {
	allowed := make(map[string]bool, len(cfg.AllowedModels)+1)
	for _, m := range cfg.AllowedModels {
		allowed[m] = true
	}
	allowed[cfg.DefaultModel] = true
	return &ChatHandler{
		resolver:     resolver,
		throttle:     limiter,
		ledger:       ledger,
		prompts:      prompts,
		completer:    completer,
		publisher:    publisher,
		logger:       log,
		defaultModel: cfg.DefaultModel,
		allowed:      allowed,
	}
}

// Chat handles POST /api/v1/chat. Rejections happen before any backend call:
// identity, throttle, body, then quota. Every authenticated request counts
// against the throttle, malformed ones included.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing caller identity")
		return
	}

	tier := h.resolver.Resolve(ctx, userID)
	log := h.logger.WithCaller(middleware.GetCorrelationID(ctx), userID, string(tier))

	if ok, retryAfter := h.throttle.Allow(userID); !ok {
		secs := retrySeconds(retryAfter)
		metrics.Rejections.WithLabelValues("throttle", string(tier)).Inc()
		log.Info("request throttled", zap.Int("retry_after", secs))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, &model.ErrorResponse{
			Error:      "rate_limited",
			Message:    "Too many requests. Please wait before sending another message.",
			RetryAfter: secs,
		})
		return
	}

	var req model.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	status, err := h.ledger.Check(ctx, userID, tier)
	if req.CheckUsage && (err == nil || errors.Is(err, quota.ErrQuotaExceeded)) {
		writeJSON(w, http.StatusOK, status)
		return
	}
	switch {
	case errors.Is(err, quota.ErrQuotaExceeded):
		metrics.Rejections.WithLabelValues("quota", string(tier)).Inc()
		log.Info("weekly quota exhausted", zap.Int("minutes_used", status.MinutesUsed))
		writeJSON(w, http.StatusPaymentRequired, &model.ErrorResponse{
			Error:   "quota_exceeded",
			Message: "You have used all of your assistant minutes for this week. Upgrade your plan for more.",
			Usage:   &status,
		})
		return
	case err != nil:
		log.Error("failed to read usage", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not read usage")
		return
	}

	if err := validateChat(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	modelName := h.selectModel(req.Model)
	domain := tools.NormalizeDomain(req.Domain)

	result, err := h.completer.Run(ctx, orchestrator.Request{
		Caller: tools.Caller{
			UserID: userID,
			Email:  middleware.GetEmail(ctx),
			Tier:   tier,
			Domain: domain,
		},
		Model:        modelName,
		SystemPrompt: h.prompts.Build(ctx, userID, domain),
		Messages:     req.Messages,
	})
	if err != nil {
		h.writeBackendError(w, log, err)
		return
	}
	defer result.Body.Close()

	status = h.debit(ctx, log, userID, tier, req.ConversationID, result, status)

	h.relay(w, r, log, result.Body, status)
}

// debit charges the turn and returns the status to report in headers.
// Failures are logged; the stream is already committed.
func (h *ChatHandler) debit(ctx context.Context, log *logger.Logger, userID string, tier entitlement.Tier, conversationID string, result *orchestrator.Result, status model.UsageStatus) model.UsageStatus {
	ctx = context.WithoutCancel(ctx)
	if err := h.ledger.Add(ctx, userID, result.Minutes); err != nil {
		log.Error("failed to debit usage", zap.Int("minutes", result.Minutes), zap.Error(err))
		return status
	}
	metrics.MinutesDebited.WithLabelValues(string(tier)).Add(float64(result.Minutes))
	status.MinutesUsed += result.Minutes

	if h.publisher != nil {
		event := &model.UsageEvent{
			ID:             uuid.New().String(),
			UserID:         userID,
			ConversationID: conversationID,
			Tier:           string(tier),
			Model:          result.Model,
			Minutes:        result.Minutes,
			UsedTools:      result.UsedTools,
			WeekStart:      h.ledger.CurrentWeek(),
			CreatedAt:      time.Now(),
		}
		// The broker ack must not delay the first streamed byte.
		go func() {
			if err := h.publisher.PublishUsage(ctx, event); err != nil {
				log.Warn("failed to publish usage event", zap.Error(err))
			}
		}()
	}
	return status
}

func (h *ChatHandler) relay(w http.ResponseWriter, r *http.Request, log *logger.Logger, body io.Reader, status model.UsageStatus) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	setUsageHeaders(w.Header(), status)
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	rc := http.NewResponseController(w)
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				log.Info("client went away during stream", zap.Error(werr))
				return
			}
			_ = rc.Flush()
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			if r.Context().Err() != nil {
				log.Info("client disconnected during stream")
			} else {
				log.Warn("stream interrupted", zap.Error(err))
			}
			return
		}
	}
}

func (h *ChatHandler) writeBackendError(w http.ResponseWriter, log *logger.Logger, err error) {
	if llm.IsBilling(err) {
		log.Error("completion backend billing exhausted", zap.Error(err))
		writeError(w, http.StatusPaymentRequired, "backend_billing",
			"The assistant is temporarily unavailable because of a billing issue with the AI provider.")
		return
	}
	log.Error("completion failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "backend_unavailable",
		"The assistant is temporarily unavailable. Please try again in a moment.")
}

func (h *ChatHandler) selectModel(requested string) string {
	if requested != "" && h.allowed[requested] {
		return requested
	}
	return h.defaultModel
}

func validateChat(req *model.ChatRequest) error {
	if err := middleware.ValidateMessages(req.Messages); err != nil {
		return err
	}
	if err := middleware.ValidateDomain(req.Domain); err != nil {
		return err
	}
	return middleware.ValidateModel(req.Model)
}

func setUsageHeaders(h http.Header, status model.UsageStatus) {
	h.Set("X-Usage-Minutes-Used", strconv.Itoa(status.MinutesUsed))
	if status.MinutesLimit != nil {
		h.Set("X-Usage-Minutes-Limit", strconv.Itoa(*status.MinutesLimit))
	} else {
		h.Set("X-Usage-Minutes-Limit", "unlimited")
	}
	h.Set("X-Usage-Tier", status.Tier)
}

// retrySeconds rounds up so clients never retry early.
func retrySeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
