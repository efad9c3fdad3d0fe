package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/family-scheduler/internal/application"
	"github.com/example/family-scheduler/internal/reminder"
)

type reminderRuleService interface {
	ListRules(ctx context.Context, familyID string) ([]application.ReminderRule, error)
	UpdateRules(ctx context.Context, params application.UpdateReminderRulesParams) ([]application.ReminderRule, error)
}

type reminderEngine interface {
	ProcessReminders(ctx context.Context) (reminder.Result, error)
	SendDailySummary(ctx context.Context) (reminder.SummaryResult, error)
}

// ReminderHandler exposes the per-family reminder rules and the trigger used
// by external schedulers to run a pass.
type ReminderHandler struct {
	rules     reminderRuleService
	engine    reminderEngine
	responder responder
	logger    *slog.Logger
}

func NewReminderHandler(rules reminderRuleService, engine reminderEngine, logger *slog.Logger) *ReminderHandler {
	logger = defaultLogger(logger)
	return &ReminderHandler{rules: rules, engine: engine, responder: newResponder(logger), logger: logger}
}

func (h *ReminderHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.rules == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rules, err := h.rules.ListRules(r.Context(), r.PathValue("familyID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRulesResponse(rules))
}

func (h *ReminderHandler) UpdateRules(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.rules == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req rulesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	params := application.UpdateReminderRulesParams{
		FamilyID: r.PathValue("familyID"),
		Rules:    make([]application.ReminderRuleInput, 0, len(req.Rules)),
	}
	for _, rule := range req.Rules {
		params.Rules = append(params.Rules, application.ReminderRuleInput{
			Category: rule.Category,
			Offsets:  rule.Offsets,
		})
	}

	rules, err := h.rules.UpdateRules(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRulesResponse(rules))
}

// Trigger runs one reminder pass (action=reminders, the default) or the daily
// summary (action=summary).
func (h *ReminderHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.engine == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	action := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("action")))
	if action == "" {
		action = "reminders"
	}
	logger := handlerLogger(ctx, h.logger, "ReminderHandler", "Trigger", "action", action)
	start := time.Now()

	switch action {
	case "reminders":
		result, err := h.engine.ProcessReminders(ctx)
		if err != nil {
			h.responder.writeError(ctx, w, http.StatusInternalServerError, err)
			return
		}
		logger.InfoContext(ctx, "reminder pass triggered", "sent", result.Sent, "errors", result.Errors, "duration", time.Since(start))
		h.responder.writeJSON(ctx, w, http.StatusOK, triggerResponse{
			Success: true,
			Sent:    &result.Sent,
			Errors:  &result.Errors,
		})
	case "summary":
		result, err := h.engine.SendDailySummary(ctx)
		if err != nil {
			h.responder.writeError(ctx, w, http.StatusInternalServerError, err)
			return
		}
		logger.InfoContext(ctx, "summary pass triggered", "sent", result.Sent, "errors", result.Errors, "duration", time.Since(start))
		h.responder.writeJSON(ctx, w, http.StatusOK, triggerResponse{Success: true, Action: action})
	default:
		h.responder.writeError(ctx, w, http.StatusBadRequest, errUnknownAction)
	}
}

type rulesRequest struct {
	Rules []ruleDTO `json:"rules"`
}

type ruleDTO struct {
	Category  string                  `json:"category"`
	Offsets   []reminder.OffsetRecord `json:"offsets"`
	UpdatedAt *time.Time              `json:"updated_at,omitempty"`
}

type rulesResponse struct {
	Rules []ruleDTO `json:"rules"`
}

func toRulesResponse(rules []application.ReminderRule) rulesResponse {
	resp := rulesResponse{Rules: make([]ruleDTO, 0, len(rules))}
	for _, rule := range rules {
		dto := ruleDTO{
			Category: rule.Category,
			Offsets:  make([]reminder.OffsetRecord, 0, len(rule.Offsets)),
		}
		for _, o := range rule.Offsets {
			dto.Offsets = append(dto.Offsets, reminder.ToRecord(o))
		}
		if !rule.UpdatedAt.IsZero() {
			updated := rule.UpdatedAt.UTC()
			dto.UpdatedAt = &updated
		}
		resp.Rules = append(resp.Rules, dto)
	}
	return resp
}

type triggerResponse struct {
	Success bool   `json:"success"`
	Action  string `json:"action,omitempty"`
	Sent    *int   `json:"sent,omitempty"`
	Errors  *int   `json:"errors,omitempty"`
}
