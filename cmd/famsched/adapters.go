package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/family-scheduler/internal/application"
	"github.com/example/family-scheduler/internal/persistence"
	"github.com/example/family-scheduler/internal/reminder"
)

// familyRepositoryAdapter maps the application's family model onto the
// SQLite repositories. Writes read the stored row back so callers see
// database defaults.
type familyRepositoryAdapter struct {
	repo persistence.FamilyRepository
}

var _ application.FamilyRepository = (*familyRepositoryAdapter)(nil)

func newFamilyRepositoryAdapter(repo persistence.FamilyRepository) *familyRepositoryAdapter {
	return &familyRepositoryAdapter{repo: repo}
}

func (a *familyRepositoryAdapter) CreateFamily(ctx context.Context, family application.Family) (application.Family, error) {
	if err := a.repo.CreateFamily(ctx, persistence.Family{ID: family.ID, Name: family.Name, CreatedAt: family.CreatedAt}); err != nil {
		return application.Family{}, err
	}
	return a.GetFamily(ctx, family.ID)
}

func (a *familyRepositoryAdapter) GetFamily(ctx context.Context, id string) (application.Family, error) {
	stored, err := a.repo.GetFamily(ctx, id)
	if err != nil {
		return application.Family{}, err
	}
	return application.Family{ID: stored.ID, Name: stored.Name, CreatedAt: stored.CreatedAt}, nil
}

func (a *familyRepositoryAdapter) CreateUser(ctx context.Context, user application.User) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *familyRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *familyRepositoryAdapter) SetUserFamily(ctx context.Context, userID, familyID string) error {
	return a.repo.SetUserFamily(ctx, userID, familyID)
}

func (a *familyRepositoryAdapter) ListFamilyUsers(ctx context.Context, familyID string) ([]application.User, error) {
	models, err := a.repo.ListFamilyUsers(ctx, familyID)
	if err != nil {
		return nil, err
	}
	return toApplicationUsers(models), nil
}

func (a *familyRepositoryAdapter) ListUsersWithFamily(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsersWithFamily(ctx)
	if err != nil {
		return nil, err
	}
	return toApplicationUsers(models), nil
}

func (a *familyRepositoryAdapter) CreateMember(ctx context.Context, member application.Member) (application.Member, error) {
	if err := a.repo.CreateMember(ctx, toPersistenceMember(member)); err != nil {
		return application.Member{}, err
	}
	members, err := a.repo.ListMembers(ctx, member.FamilyID)
	if err != nil {
		return application.Member{}, err
	}
	for _, m := range members {
		if m.ID == member.ID {
			return toApplicationMember(m), nil
		}
	}
	return application.Member{}, persistence.ErrNotFound
}

func (a *familyRepositoryAdapter) ListMembers(ctx context.Context, familyID string) ([]application.Member, error) {
	models, err := a.repo.ListMembers(ctx, familyID)
	if err != nil {
		return nil, err
	}
	members := make([]application.Member, 0, len(models))
	for _, m := range models {
		members = append(members, toApplicationMember(m))
	}
	return members, nil
}

func (a *familyRepositoryAdapter) DeleteMember(ctx context.Context, familyID, id string) error {
	return a.repo.DeleteMember(ctx, familyID, id)
}

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

var _ application.EventRepository = (*eventRepositoryAdapter)(nil)

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{repo: repo}
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.CreateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.FamilyID, event.ID)
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.FamilyID, event.ID)
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, familyID, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, familyID, id)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) DeleteEvent(ctx context.Context, familyID, id string) error {
	return a.repo.DeleteEvent(ctx, familyID, id)
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, filter application.EventRepositoryFilter) ([]application.Event, error) {
	models, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		FamilyID:    filter.FamilyID,
		PersonID:    optionalString(filter.PersonID),
		Category:    filter.Category,
		StartsAfter: cloneTime(filter.StartsAfter),
		EndsBefore:  cloneTime(filter.EndsBefore),
		StartFrom:   cloneTime(filter.StartFrom),
		StartTo:     cloneTime(filter.StartTo),
	})
	if err != nil {
		return nil, err
	}
	events := make([]application.Event, 0, len(models))
	for _, m := range models {
		events = append(events, toApplicationEvent(m))
	}
	return events, nil
}

func (a *eventRepositoryAdapter) SetConflictFlag(ctx context.Context, id string, flagged bool) error {
	return a.repo.SetConflictFlag(ctx, id, flagged)
}

func (a *eventRepositoryAdapter) FindBySourceMessage(ctx context.Context, familyID, createdFrom, sourceMessageID string) (application.Event, error) {
	stored, err := a.repo.FindBySourceMessage(ctx, familyID, createdFrom, sourceMessageID)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

// reminderRepositoryAdapter serves both the rule store and the notification
// log.
type reminderRepositoryAdapter struct {
	rules persistence.ReminderRuleRepository
	log   persistence.NotificationLogRepository
}

var (
	_ application.ReminderRuleRepository    = (*reminderRepositoryAdapter)(nil)
	_ application.NotificationLogRepository = (*reminderRepositoryAdapter)(nil)
)

func newReminderRepositoryAdapter(rules persistence.ReminderRuleRepository, log persistence.NotificationLogRepository) *reminderRepositoryAdapter {
	return &reminderRepositoryAdapter{rules: rules, log: log}
}

func (a *reminderRepositoryAdapter) UpsertRule(ctx context.Context, rule application.ReminderRule) (application.ReminderRule, error) {
	encoded, err := reminder.EncodeOffsets(rule.Offsets)
	if err != nil {
		return application.ReminderRule{}, err
	}
	if err := a.rules.UpsertRule(ctx, persistence.ReminderRule{
		FamilyID:  rule.FamilyID,
		Category:  rule.Category,
		Offsets:   string(encoded),
		UpdatedAt: rule.UpdatedAt,
	}); err != nil {
		return application.ReminderRule{}, err
	}
	return rule, nil
}

func (a *reminderRepositoryAdapter) ListRules(ctx context.Context, familyID string) ([]application.ReminderRule, error) {
	models, err := a.rules.ListRules(ctx, familyID)
	if err != nil {
		return nil, err
	}
	return toApplicationRules(models)
}

func (a *reminderRepositoryAdapter) ListAllRules(ctx context.Context) ([]application.ReminderRule, error) {
	models, err := a.rules.ListAllRules(ctx)
	if err != nil {
		return nil, err
	}
	return toApplicationRules(models)
}

func (a *reminderRepositoryAdapter) HasEntry(ctx context.Context, eventID, offsetKey, userID string) (bool, error) {
	return a.log.HasEntry(ctx, eventID, offsetKey, userID)
}

func (a *reminderRepositoryAdapter) RecordEntry(ctx context.Context, eventID, offsetKey, userID string, sentAt time.Time) error {
	return a.log.RecordEntry(ctx, persistence.NotificationLogEntry{
		EventID:   eventID,
		OffsetKey: offsetKey,
		UserID:    userID,
		SentAt:    sentAt,
	})
}

type channelRepositoryAdapter struct {
	repo persistence.ChannelRepository
}

var _ application.ChannelRepository = (*channelRepositoryAdapter)(nil)

func newChannelRepositoryAdapter(repo persistence.ChannelRepository) *channelRepositoryAdapter {
	return &channelRepositoryAdapter{repo: repo}
}

// UpsertPushSubscription returns the stored row, which keeps its original id
// when the endpoint was already registered.
func (a *channelRepositoryAdapter) UpsertPushSubscription(ctx context.Context, sub application.PushSubscription) (application.PushSubscription, error) {
	if err := a.repo.UpsertPushSubscription(ctx, persistence.PushSubscription{
		ID:        sub.ID,
		UserID:    sub.UserID,
		Endpoint:  sub.Endpoint,
		P256dh:    sub.P256dh,
		Auth:      sub.Auth,
		UserAgent: optionalString(sub.UserAgent),
		CreatedAt: sub.CreatedAt,
	}); err != nil {
		return application.PushSubscription{}, err
	}
	subs, err := a.ListPushSubscriptions(ctx, sub.UserID)
	if err != nil {
		return application.PushSubscription{}, err
	}
	for _, stored := range subs {
		if stored.Endpoint == sub.Endpoint {
			return stored, nil
		}
	}
	return application.PushSubscription{}, persistence.ErrNotFound
}

func (a *channelRepositoryAdapter) ListPushSubscriptions(ctx context.Context, userID string) ([]application.PushSubscription, error) {
	models, err := a.repo.ListPushSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	subs := make([]application.PushSubscription, 0, len(models))
	for _, m := range models {
		subs = append(subs, application.PushSubscription{
			ID:        m.ID,
			UserID:    m.UserID,
			Endpoint:  m.Endpoint,
			P256dh:    m.P256dh,
			Auth:      m.Auth,
			UserAgent: stringValue(m.UserAgent),
			CreatedAt: m.CreatedAt,
		})
	}
	return subs, nil
}

func (a *channelRepositoryAdapter) DeletePushSubscription(ctx context.Context, endpoint string) error {
	return a.repo.DeletePushSubscription(ctx, endpoint)
}

func (a *channelRepositoryAdapter) LinkChat(ctx context.Context, link application.ChatLink) (application.ChatLink, error) {
	if err := a.repo.LinkChat(ctx, persistence.ChatLink{
		ChatID:    link.ChatID,
		Platform:  link.Platform,
		UserID:    link.UserID,
		CreatedAt: link.CreatedAt,
	}); err != nil {
		return application.ChatLink{}, err
	}
	return a.GetChatLink(ctx, link.ChatID)
}

func (a *channelRepositoryAdapter) GetChatLinkByUser(ctx context.Context, userID string) (application.ChatLink, error) {
	stored, err := a.repo.GetChatLinkByUser(ctx, userID)
	if err != nil {
		return application.ChatLink{}, err
	}
	return toApplicationChatLink(stored), nil
}

func (a *channelRepositoryAdapter) GetChatLink(ctx context.Context, chatID string) (application.ChatLink, error) {
	stored, err := a.repo.GetChatLink(ctx, chatID)
	if err != nil {
		return application.ChatLink{}, err
	}
	return toApplicationChatLink(stored), nil
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:        model.ID,
		Email:     model.Email,
		Name:      model.Name,
		FamilyID:  stringValue(model.FamilyID),
		Timezone:  model.Timezone,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toApplicationUsers(models []persistence.User) []application.User {
	users := make([]application.User, 0, len(models))
	for _, m := range models {
		users = append(users, toApplicationUser(m))
	}
	return users
}

func toPersistenceUser(user application.User) persistence.User {
	return persistence.User{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		FamilyID:  optionalString(user.FamilyID),
		Timezone:  user.Timezone,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func toApplicationMember(model persistence.Member) application.Member {
	return application.Member{
		ID:          model.ID,
		FamilyID:    model.FamilyID,
		DisplayName: model.DisplayName,
		Role:        application.MemberRole(model.Role),
		UserID:      stringValue(model.UserID),
		CreatedAt:   model.CreatedAt,
	}
}

func toPersistenceMember(member application.Member) persistence.Member {
	return persistence.Member{
		ID:          member.ID,
		FamilyID:    member.FamilyID,
		DisplayName: member.DisplayName,
		Role:        persistence.MemberRole(member.Role),
		UserID:      optionalString(member.UserID),
		CreatedAt:   member.CreatedAt,
	}
}

func toApplicationEvent(model persistence.Event) application.Event {
	return application.Event{
		ID:              model.ID,
		FamilyID:        model.FamilyID,
		PersonID:        stringValue(model.PersonID),
		Title:           model.Title,
		Start:           model.Start,
		End:             model.End,
		AllDay:          model.AllDay,
		RRule:           stringValue(model.RRule),
		Category:        model.Category,
		Priority:        model.Priority,
		Notes:           stringValue(model.Notes),
		ConflictFlag:    model.ConflictFlag,
		CreatedFrom:     model.CreatedFrom,
		SourceMessageID: stringValue(model.SourceMessageID),
		CreatedBy:       stringValue(model.CreatedBy),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:              event.ID,
		FamilyID:        event.FamilyID,
		PersonID:        optionalString(event.PersonID),
		Title:           event.Title,
		Start:           event.Start,
		End:             event.End,
		AllDay:          event.AllDay,
		RRule:           optionalString(event.RRule),
		Category:        event.Category,
		Priority:        event.Priority,
		Notes:           optionalString(event.Notes),
		ConflictFlag:    event.ConflictFlag,
		CreatedFrom:     event.CreatedFrom,
		SourceMessageID: optionalString(event.SourceMessageID),
		CreatedBy:       optionalString(event.CreatedBy),
		CreatedAt:       event.CreatedAt,
		UpdatedAt:       event.UpdatedAt,
	}
}

func toApplicationRules(models []persistence.ReminderRule) ([]application.ReminderRule, error) {
	rules := make([]application.ReminderRule, 0, len(models))
	for _, m := range models {
		offsets, err := reminder.DecodeOffsets([]byte(m.Offsets))
		if err != nil {
			return nil, fmt.Errorf("reminder rule %s/%s: %w", m.FamilyID, m.Category, err)
		}
		rules = append(rules, application.ReminderRule{
			FamilyID:  m.FamilyID,
			Category:  m.Category,
			Offsets:   offsets,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return rules, nil
}

func toApplicationChatLink(model persistence.ChatLink) application.ChatLink {
	return application.ChatLink{
		ChatID:    model.ChatID,
		Platform:  model.Platform,
		UserID:    model.UserID,
		CreatedAt: model.CreatedAt,
	}
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

// isNotFound reports whether err is a missing-record error from any layer.
func isNotFound(err error) bool {
	return errors.Is(err, persistence.ErrNotFound) || errors.Is(err, application.ErrNotFound)
}
