package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/family-scheduler/internal/persistence"
)

// FamilyRepository captures the persistence operations for families, users and rosters.
type FamilyRepository interface {
	CreateFamily(ctx context.Context, family Family) (Family, error)
	GetFamily(ctx context.Context, id string) (Family, error)
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	SetUserFamily(ctx context.Context, userID, familyID string) error
	ListFamilyUsers(ctx context.Context, familyID string) ([]User, error)
	ListUsersWithFamily(ctx context.Context) ([]User, error)
	CreateMember(ctx context.Context, member Member) (Member, error)
	ListMembers(ctx context.Context, familyID string) ([]Member, error)
	DeleteMember(ctx context.Context, familyID, id string) error
}

// ChannelRepository captures the persistence operations for delivery channels.
type ChannelRepository interface {
	UpsertPushSubscription(ctx context.Context, sub PushSubscription) (PushSubscription, error)
	ListPushSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
	LinkChat(ctx context.Context, link ChatLink) (ChatLink, error)
	GetChatLinkByUser(ctx context.Context, userID string) (ChatLink, error)
	GetChatLink(ctx context.Context, chatID string) (ChatLink, error)
}

// FamilyService manages families, their users and roster members, and the
// channels users receive notifications on.
type FamilyService struct {
	families    FamilyRepository
	channels    ChannelRepository
	members     *memberCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewFamilyService constructs a family service with the provided dependencies.
func NewFamilyService(families FamilyRepository, channels ChannelRepository, idGenerator func() string, now func() time.Time) *FamilyService {
	return NewFamilyServiceWithLogger(families, channels, idGenerator, now, nil)
}

// NewFamilyServiceWithLogger constructs a family service with a specified logger.
func NewFamilyServiceWithLogger(families FamilyRepository, channels ChannelRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *FamilyService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &FamilyService{
		families:    families,
		channels:    channels,
		members:     newMemberCache(defaultMemberCacheTTL, defaultMemberCacheSize, now),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *FamilyService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "FamilyService", operation, attrs...)
}

// CreateFamily creates a family. When an owner is given, the user joins the
// family and is added to its roster as an adult.
func (s *FamilyService) CreateFamily(ctx context.Context, params CreateFamilyParams) (family Family, err error) {
	if s == nil || s.families == nil {
		err = ErrNotConfigured
		return
	}

	logger := s.loggerWith(ctx, "CreateFamily", "owner_user_id", params.OwnerUserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create family", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("family_id", family.ID).InfoContext(ctx, "family created")
	}()

	vErr := &ValidationError{}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		vErr.add("name", "name is required")
	}

	var owner User
	if ownerID := strings.TrimSpace(params.OwnerUserID); ownerID != "" {
		owner, err = s.families.GetUser(ctx, ownerID)
		if err != nil {
			if errors.Is(mapFamilyRepoError(err), ErrNotFound) {
				err = nil
				vErr.add("owner_user_id", "user does not exist")
			} else {
				err = mapFamilyRepoError(err)
				return
			}
		} else if owner.FamilyID != "" {
			vErr.add("owner_user_id", "user already belongs to a family")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	family, err = s.families.CreateFamily(ctx, Family{ID: s.idGenerator(), Name: name, CreatedAt: s.now()})
	if err != nil {
		err = mapFamilyRepoError(err)
		return
	}

	if owner.ID == "" {
		return
	}
	if err = s.families.SetUserFamily(ctx, owner.ID, family.ID); err != nil {
		err = mapFamilyRepoError(err)
		return
	}
	_, err = s.families.CreateMember(ctx, Member{
		ID:          s.idGenerator(),
		FamilyID:    family.ID,
		DisplayName: owner.Name,
		Role:        RoleAdult,
		UserID:      owner.ID,
		CreatedAt:   s.now(),
	})
	if err != nil {
		err = mapFamilyRepoError(err)
		return
	}
	return
}

// GetFamily returns a family by id.
func (s *FamilyService) GetFamily(ctx context.Context, familyID string) (Family, error) {
	if s == nil || s.families == nil {
		return Family{}, ErrNotConfigured
	}
	family, err := s.families.GetFamily(ctx, familyID)
	if err != nil {
		return Family{}, mapFamilyRepoError(err)
	}
	return family, nil
}

// RegisterUser validates and stores a new user account.
func (s *FamilyService) RegisterUser(ctx context.Context, params RegisterUserParams) (user User, err error) {
	if s == nil || s.families == nil {
		err = ErrNotConfigured
		return
	}

	logger := s.loggerWith(ctx, "RegisterUser")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	vErr := &ValidationError{}
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		vErr.add("email", "email is required")
	} else if addr, parseErr := mail.ParseAddress(email); parseErr != nil || addr.Address != email {
		vErr.add("email", "email is invalid")
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		vErr.add("name", "name is required")
	}
	timezone := strings.TrimSpace(params.Timezone)
	if timezone == "" {
		timezone = "UTC"
	} else if _, locErr := time.LoadLocation(timezone); locErr != nil {
		vErr.add("timezone", "timezone is unknown")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	created := s.now()
	user, err = s.families.CreateUser(ctx, User{
		ID:        s.idGenerator(),
		Email:     email,
		Name:      name,
		Timezone:  timezone,
		CreatedAt: created,
		UpdatedAt: created,
	})
	if err != nil {
		err = mapFamilyRepoError(err)
	}
	return
}

// ListFamilyUsers returns the users that belong to a family.
func (s *FamilyService) ListFamilyUsers(ctx context.Context, familyID string) ([]User, error) {
	if s == nil || s.families == nil {
		return nil, ErrNotConfigured
	}
	users, err := s.families.ListFamilyUsers(ctx, familyID)
	if err != nil {
		return nil, mapFamilyRepoError(err)
	}
	return users, nil
}

// ListMembers returns a family's roster. Results are cached briefly; roster
// writes made through the service invalidate the cache.
func (s *FamilyService) ListMembers(ctx context.Context, familyID string) ([]Member, error) {
	if s == nil || s.families == nil {
		return nil, ErrNotConfigured
	}
	if cached, ok := s.members.Get(familyID); ok {
		return cached, nil
	}
	if _, err := s.families.GetFamily(ctx, familyID); err != nil {
		return nil, mapFamilyRepoError(err)
	}
	members, err := s.families.ListMembers(ctx, familyID)
	if err != nil {
		return nil, mapFamilyRepoError(err)
	}
	s.members.Store(familyID, members)
	return members, nil
}

// AddMember adds a person to a family roster. A member tied to a user also
// moves that user into the family.
func (s *FamilyService) AddMember(ctx context.Context, params AddMemberParams) (member Member, err error) {
	if s == nil || s.families == nil {
		err = ErrNotConfigured
		return
	}

	logger := s.loggerWith(ctx, "AddMember", "family_id", params.FamilyID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to add member", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("member_id", member.ID).InfoContext(ctx, "member added")
	}()

	if _, err = s.families.GetFamily(ctx, params.FamilyID); err != nil {
		err = mapFamilyRepoError(err)
		return
	}

	vErr := &ValidationError{}
	name := strings.TrimSpace(params.DisplayName)
	if name == "" {
		vErr.add("display_name", "display name is required")
	}
	role := params.Role
	if role == "" {
		role = RoleKid
	}
	if role != RoleAdult && role != RoleKid {
		vErr.add("role", "role must be adult or kid")
	}
	userID := strings.TrimSpace(params.UserID)
	if userID != "" {
		user, getErr := s.families.GetUser(ctx, userID)
		switch {
		case errors.Is(mapFamilyRepoError(getErr), ErrNotFound):
			vErr.add("user_id", "user does not exist")
		case getErr != nil:
			err = mapFamilyRepoError(getErr)
			return
		case user.FamilyID != "" && user.FamilyID != params.FamilyID:
			vErr.add("user_id", "user belongs to another family")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if userID != "" {
		if err = s.families.SetUserFamily(ctx, userID, params.FamilyID); err != nil {
			err = mapFamilyRepoError(err)
			return
		}
	}

	member, err = s.families.CreateMember(ctx, Member{
		ID:          s.idGenerator(),
		FamilyID:    params.FamilyID,
		DisplayName: name,
		Role:        role,
		UserID:      userID,
		CreatedAt:   s.now(),
	})
	if err != nil {
		err = mapFamilyRepoError(err)
		return
	}
	s.members.Invalidate(params.FamilyID)
	return
}

// RemoveMember deletes a roster member. Events assigned to the member remain
// but lose their person.
func (s *FamilyService) RemoveMember(ctx context.Context, familyID, memberID string) error {
	if s == nil || s.families == nil {
		return ErrNotConfigured
	}

	logger := s.loggerWith(ctx, "RemoveMember", "family_id", familyID, "member_id", memberID)
	if err := s.families.DeleteMember(ctx, familyID, memberID); err != nil {
		err = mapFamilyRepoError(err)
		logger.ErrorContext(ctx, "failed to remove member", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	s.members.Invalidate(familyID)
	logger.InfoContext(ctx, "member removed")
	return nil
}

// RegisterPushSubscription stores a browser subscription for a user. The same
// endpoint registered again replaces the earlier keys.
func (s *FamilyService) RegisterPushSubscription(ctx context.Context, params RegisterPushParams) (sub PushSubscription, err error) {
	if s == nil || s.families == nil || s.channels == nil {
		err = ErrNotConfigured
		return
	}

	logger := s.loggerWith(ctx, "RegisterPushSubscription", "user_id", params.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register push subscription", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "push subscription registered")
	}()

	if _, err = s.families.GetUser(ctx, params.UserID); err != nil {
		err = mapFamilyRepoError(err)
		return
	}

	vErr := &ValidationError{}
	endpoint := strings.TrimSpace(params.Endpoint)
	if !strings.HasPrefix(endpoint, "https://") {
		vErr.add("endpoint", "endpoint must be an https URL")
	}
	if strings.TrimSpace(params.P256dh) == "" {
		vErr.add("keys.p256dh", "p256dh key is required")
	}
	if strings.TrimSpace(params.Auth) == "" {
		vErr.add("keys.auth", "auth secret is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	sub, err = s.channels.UpsertPushSubscription(ctx, PushSubscription{
		ID:        s.idGenerator(),
		UserID:    params.UserID,
		Endpoint:  endpoint,
		P256dh:    strings.TrimSpace(params.P256dh),
		Auth:      strings.TrimSpace(params.Auth),
		UserAgent: strings.TrimSpace(params.UserAgent),
		CreatedAt: s.now(),
	})
	if err != nil {
		err = mapFamilyRepoError(err)
	}
	return
}

// RemovePushSubscription forgets an endpoint, typically after the push
// service reported it gone.
func (s *FamilyService) RemovePushSubscription(ctx context.Context, endpoint string) error {
	if s == nil || s.channels == nil {
		return ErrNotConfigured
	}
	err := s.channels.DeletePushSubscription(ctx, endpoint)
	if err != nil && !errors.Is(mapFamilyRepoError(err), ErrNotFound) {
		return mapFamilyRepoError(err)
	}
	s.loggerWith(ctx, "RemovePushSubscription").InfoContext(ctx, "push subscription removed")
	return nil
}

// LinkChat ties a chat conversation to a user. Relinking a user moves the
// link to the new chat.
func (s *FamilyService) LinkChat(ctx context.Context, params LinkChatParams) (link ChatLink, err error) {
	if s == nil || s.families == nil || s.channels == nil {
		err = ErrNotConfigured
		return
	}

	logger := s.loggerWith(ctx, "LinkChat", "user_id", params.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to link chat", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("platform", link.Platform).InfoContext(ctx, "chat linked")
	}()

	if _, err = s.families.GetUser(ctx, params.UserID); err != nil {
		err = mapFamilyRepoError(err)
		return
	}
	chatID := strings.TrimSpace(params.ChatID)
	if chatID == "" {
		vErr := &ValidationError{}
		vErr.add("chat_id", "chat id is required")
		err = vErr
		return
	}
	platform := strings.ToLower(strings.TrimSpace(params.Platform))
	if platform == "" {
		platform = SourceTelegram
	}

	link, err = s.channels.LinkChat(ctx, ChatLink{ChatID: chatID, Platform: platform, UserID: params.UserID, CreatedAt: s.now()})
	if err != nil {
		err = mapFamilyRepoError(err)
	}
	return
}

// ResolveChat returns the user linked to a chat conversation.
func (s *FamilyService) ResolveChat(ctx context.Context, chatID string) (User, error) {
	if s == nil || s.families == nil || s.channels == nil {
		return User{}, ErrNotConfigured
	}
	link, err := s.channels.GetChatLink(ctx, chatID)
	if err != nil {
		return User{}, mapFamilyRepoError(err)
	}
	user, err := s.families.GetUser(ctx, link.UserID)
	if err != nil {
		return User{}, mapFamilyRepoError(err)
	}
	return user, nil
}

func mapFamilyRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		return &ValidationError{FieldErrors: map[string]string{"record": "record violates a storage constraint"}}
	}
	return fmt.Errorf("family store: %w", err)
}
