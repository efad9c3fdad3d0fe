package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/family-scheduler/internal/application"
)

type familyService interface {
	CreateFamily(ctx context.Context, params application.CreateFamilyParams) (application.Family, error)
	ListMembers(ctx context.Context, familyID string) ([]application.Member, error)
	AddMember(ctx context.Context, params application.AddMemberParams) (application.Member, error)
	RemoveMember(ctx context.Context, familyID, memberID string) error
	RegisterUser(ctx context.Context, params application.RegisterUserParams) (application.User, error)
	RegisterPushSubscription(ctx context.Context, params application.RegisterPushParams) (application.PushSubscription, error)
	LinkChat(ctx context.Context, params application.LinkChatParams) (application.ChatLink, error)
}

// FamilyHandler manages families, their rosters and the users that receive
// notifications.
type FamilyHandler struct {
	service   familyService
	responder responder
}

func NewFamilyHandler(service familyService, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{service: service, responder: newResponder(logger)}
}

func (h *FamilyHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req familyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	family, err := h.service.CreateFamily(r.Context(), application.CreateFamilyParams{
		Name:        req.Name,
		OwnerUserID: req.OwnerUserID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, familyDTO{
		ID:        family.ID,
		Name:      family.Name,
		CreatedAt: family.CreatedAt.UTC(),
	})
}

func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	members, err := h.service.ListMembers(r.Context(), r.PathValue("familyID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := listMembersResponse{Members: make([]memberDTO, 0, len(members))}
	for _, m := range members {
		resp.Members = append(resp.Members, toMemberDTO(m))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *FamilyHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	member, err := h.service.AddMember(r.Context(), application.AddMemberParams{
		FamilyID:    r.PathValue("familyID"),
		DisplayName: req.DisplayName,
		Role:        application.MemberRole(req.Role),
		UserID:      req.UserID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toMemberDTO(member))
}

func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.service.RemoveMember(r.Context(), r.PathValue("familyID"), r.PathValue("memberID")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FamilyHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	user, err := h.service.RegisterUser(r.Context(), application.RegisterUserParams{
		Email:    req.Email,
		Name:     req.Name,
		Timezone: req.Timezone,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userDTO{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		FamilyID:  user.FamilyID,
		Timezone:  user.Timezone,
		CreatedAt: user.CreatedAt.UTC(),
	})
}

func (h *FamilyHandler) RegisterPush(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req pushSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = r.UserAgent()
	}
	sub, err := h.service.RegisterPushSubscription(r.Context(), application.RegisterPushParams{
		UserID:    r.PathValue("userID"),
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		UserAgent: userAgent,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, pushSubscriptionDTO{
		ID:        sub.ID,
		UserID:    sub.UserID,
		Endpoint:  sub.Endpoint,
		CreatedAt: sub.CreatedAt.UTC(),
	})
}

func (h *FamilyHandler) LinkChat(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req chatLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	link, err := h.service.LinkChat(r.Context(), application.LinkChatParams{
		UserID:   r.PathValue("userID"),
		ChatID:   req.ChatID,
		Platform: req.Platform,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, chatLinkDTO{
		ChatID:    link.ChatID,
		Platform:  link.Platform,
		UserID:    link.UserID,
		CreatedAt: link.CreatedAt.UTC(),
	})
}

type familyRequest struct {
	Name        string `json:"name"`
	OwnerUserID string `json:"owner_user_id"`
}

type familyDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type memberRequest struct {
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	UserID      string `json:"user_id"`
}

type memberDTO struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"family_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	UserID      string    `json:"user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toMemberDTO(m application.Member) memberDTO {
	return memberDTO{
		ID:          m.ID,
		FamilyID:    m.FamilyID,
		DisplayName: m.DisplayName,
		Role:        string(m.Role),
		UserID:      m.UserID,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

type listMembersResponse struct {
	Members []memberDTO `json:"members"`
}

type userRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type userDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	FamilyID  string    `json:"family_id,omitempty"`
	Timezone  string    `json:"timezone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// pushSubscriptionRequest mirrors the browser's PushSubscription.toJSON().
type pushSubscriptionRequest struct {
	Endpoint       string  `json:"endpoint"`
	ExpirationTime *int64  `json:"expirationTime"`
	Keys           pushKey `json:"keys"`
	UserAgent      string  `json:"user_agent"`
}

type pushKey struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

type pushSubscriptionDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	CreatedAt time.Time `json:"created_at"`
}

type chatLinkRequest struct {
	ChatID   string `json:"chat_id"`
	Platform string `json:"platform"`
}

type chatLinkDTO struct {
	ChatID    string    `json:"chat_id"`
	Platform  string    `json:"platform"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
