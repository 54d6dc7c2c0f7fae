package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/common/metrics"
	"teamhub-notifications/internal/models"

	"github.com/google/uuid"
)

// Channel is an out-of-band delivery channel for advanced notifications.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

const (
	RecipientsEveryone = "everyone"
	RecipientsTeams    = "teams"
)

// NewNotification is a single announcement. An empty TeamID publishes it to
// every team.
type NewNotification struct {
	Title            string                 `json:"title"`
	Content          string                 `json:"content"`
	TeamID           string                 `json:"teamId,omitempty"`
	CreatedBy        string                 `json:"createdBy"`
	Priority         string                 `json:"priority,omitempty"`
	NotificationType string                 `json:"notificationType,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	ExpiryDate       *time.Time             `json:"expiryDate,omitempty"`
}

// AdvancedNotification targets everyone or a list of teams and may also be
// sent by email and SMS.
type AdvancedNotification struct {
	Title            string                 `json:"title"`
	Content          string                 `json:"content"`
	CreatedBy        string                 `json:"createdBy"`
	Recipients       string                 `json:"recipients"`
	TeamIDs          []string               `json:"teamIds,omitempty"`
	Priority         string                 `json:"priority,omitempty"`
	NotificationType string                 `json:"notificationType,omitempty"`
	Channels         []Channel              `json:"channels,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	ExpiryDate       *time.Time             `json:"expiryDate,omitempty"`
}

// DeliveryRequest asks the delivery layer to reach the members of TeamIDs.
type DeliveryRequest struct {
	CorrelationID string
	TeamIDs       []string
	Channels      []Channel
	Title         string
	Message       string
	Priority      Priority
}

type ChannelReport struct {
	Attempted int    `json:"attempted"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Skipped   string `json:"skipped,omitempty"`
}

type DeliveryReport struct {
	Email *ChannelReport `json:"email,omitempty"`
	SMS   *ChannelReport `json:"sms,omitempty"`
}

// CreateResult reports the written rows and the best-effort side effects.
type CreateResult struct {
	IDs       []string        `json:"ids"`
	Delivery  *DeliveryReport `json:"delivery,omitempty"`
	Indexed   bool            `json:"indexed"`
	Published bool            `json:"published"`
	Warnings  []string        `json:"warnings,omitempty"`
}

type Deliverer interface {
	Deliver(ctx context.Context, req DeliveryRequest) (*DeliveryReport, error)
}

type Indexer interface {
	Index(ctx context.Context, items []Notification) error
	Remove(ctx context.Context, id string) error
}

type EventPublisher interface {
	PublishCreated(ctx context.Context, items []Notification) error
	PublishDeleted(ctx context.Context, id string) error
}

// FeedRecorder receives one observation per feed request.
type FeedRecorder interface {
	RecordFeed(ctx context.Context, role string, cached bool, total int)
}

type Config struct {
	DefaultLimit     int
	MaxLimit         int
	MessageMaxLength int
	LeaveUrgencyDays int
	SourceTimeout    time.Duration
	AnnouncementTTL  time.Duration
}

// Dependencies are the collaborators of a Service. Only Store is required.
type Dependencies struct {
	Store     Store
	Cache     *FeedCache
	Deliverer Deliverer
	Indexer   Indexer
	Publisher EventPublisher
	Recorder  FeedRecorder
	Logger    logger.Logger
	Now       func() time.Time
	NewID     func() string
}

// Service is the notification center. Construct one per process and share it.
type Service struct {
	config  Config
	deps    Dependencies
	fetcher *Fetcher
	logger  logger.Logger
}

func NewService(config Config, deps Dependencies) *Service {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 20
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = 100
	}
	if config.AnnouncementTTL <= 0 {
		config.AnnouncementTTL = 30 * 24 * time.Hour
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.NewString() }
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}

	return &Service{
		config: config,
		deps:   deps,
		fetcher: NewFetcher(deps.Store, FetcherConfig{
			MessageMaxLength: config.MessageMaxLength,
			LeaveUrgencyDays: config.LeaveUrgencyDays,
		}, deps.Now),
		logger: deps.Logger.WithFields(map[string]interface{}{"component": "notification-service"}),
	}
}

// GetNotifications builds the user's feed. Source failures only shrink the
// feed; the error return is limited to invalid queries.
func (s *Service) GetNotifications(ctx context.Context, q Query) (*Page, error) {
	if strings.TrimSpace(q.UserID) == "" {
		return nil, invalidInput("userId is required")
	}
	q = q.Normalize(s.config.DefaultLimit, s.config.MaxLimit)

	merged, gen, cached := s.cachedFeed(ctx, q)
	if !cached {
		merged = Merge(s.fetchAll(ctx, q), s.logger)
		if s.deps.Cache != nil {
			s.deps.Cache.Set(ctx, gen, q, merged)
		}
	}

	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordFeed(ctx, strings.ToLower(q.Role), cached, len(merged))
	}
	return Paginate(merged, q), nil
}

func (s *Service) cachedFeed(ctx context.Context, q Query) ([]Notification, string, bool) {
	if s.deps.Cache == nil {
		return nil, "", false
	}
	return s.deps.Cache.Get(ctx, q)
}

// fetchAll queries every source the role may see in parallel. Results keep
// the fixed source order regardless of completion order.
func (s *Service) fetchAll(ctx context.Context, q Query) []FetchResult {
	window := q.Window()

	type job struct {
		source Source
		fetch  func(ctx context.Context) FetchResult
	}
	jobs := []job{
		{SourceAnnouncement, func(ctx context.Context) FetchResult {
			return s.fetcher.FetchAnnouncements(ctx, q.UserID, q.TeamID, window)
		}},
	}
	if reviewsRequests(q.Role, q.TeamID) {
		jobs = append(jobs,
			job{SourceLeave, func(ctx context.Context) FetchResult {
				return s.fetcher.FetchLeaveRequests(ctx, q.TeamID, window)
			}},
			job{SourceTimesheet, func(ctx context.Context) FetchResult {
				return s.fetcher.FetchTimesheets(ctx, q.TeamID, window)
			}},
		)
	}
	jobs = append(jobs, job{SourceTask, func(ctx context.Context) FetchResult {
		return s.fetcher.FetchTaskNotifications(ctx, q.UserID, q.Role, q.TeamID, window)
	}})

	results := make([]FetchResult, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()

			fctx, cancel := ctx, context.CancelFunc(func() {})
			if s.config.SourceTimeout > 0 {
				fctx, cancel = context.WithTimeout(ctx, s.config.SourceTimeout)
			}
			defer cancel()

			start := time.Now()
			results[i] = j.fetch(fctx)
			results[i].Source = j.source
			metrics.SourceFetchDuration.WithLabelValues(string(j.source)).Observe(time.Since(start).Seconds())
		}(i, j)
	}
	wg.Wait()
	return results
}

// MarkAsRead marks a notification read for userID. Announcement, leave and
// timesheet items have no read state; they report success without touching
// the database.
func (s *Service) MarkAsRead(ctx context.Context, notificationID, userID string) (bool, error) {
	source, rowID, ok := SourceOf(notificationID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrInvalidNotificationID, notificationID)
	}
	if source.Synthesized() {
		return true, nil
	}
	if userID == "" {
		return false, invalidInput("userId is required")
	}

	if err := s.deps.Store.MarkTaskNotificationRead(ctx, rowID, userID); err != nil {
		return false, err
	}
	s.invalidate(ctx)
	return true, nil
}

// CreateNotification writes a single announcement row.
func (s *Service) CreateNotification(ctx context.Context, in NewNotification) (*CreateResult, error) {
	if err := validateCommon(in.Title, in.CreatedBy); err != nil {
		return nil, err
	}

	row := s.newAnnouncement(in.Title, in.Content, in.CreatedBy, in.Priority, in.NotificationType, in.Metadata, in.ExpiryDate)
	if in.TeamID != "" {
		team := in.TeamID
		row.TeamID = &team
	}

	return s.write(ctx, []models.Announcement{row}, nil)
}

// CreateAdvancedNotification writes one row per target team, or one per
// existing team when recipients is everyone, then runs delivery, indexing and
// event publication. Only the write can fail the call.
func (s *Service) CreateAdvancedNotification(ctx context.Context, in AdvancedNotification) (*CreateResult, error) {
	if err := validateCommon(in.Title, in.CreatedBy); err != nil {
		return nil, err
	}

	var teamIDs []string
	switch in.Recipients {
	case RecipientsEveryone, "":
		ids, err := s.deps.Store.ListTeamIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list teams: %v", ErrCreateFailed, err)
		}
		teamIDs = ids
	case RecipientsTeams:
		teamIDs = dedupe(in.TeamIDs)
		if len(teamIDs) == 0 {
			return nil, invalidInput("teamIds is required when recipients is %q", RecipientsTeams)
		}
	default:
		return nil, invalidInput("unknown recipients %q", in.Recipients)
	}

	var rows []models.Announcement
	if len(teamIDs) == 0 {
		// no teams yet: a single global row still reaches everyone
		rows = append(rows, s.newAnnouncement(in.Title, in.Content, in.CreatedBy, in.Priority, in.NotificationType, in.Metadata, in.ExpiryDate))
	}
	for _, teamID := range teamIDs {
		row := s.newAnnouncement(in.Title, in.Content, in.CreatedBy, in.Priority, in.NotificationType, in.Metadata, in.ExpiryDate)
		team := teamID
		row.TeamID = &team
		rows = append(rows, row)
	}

	var delivery *DeliveryRequest
	if wantsOutOfBand(in.Channels) {
		delivery = &DeliveryRequest{
			TeamIDs:  teamIDs,
			Channels: in.Channels,
			Title:    in.Title,
			Message:  in.Content,
			Priority: ParsePriority(in.Priority),
		}
	}
	return s.write(ctx, rows, delivery)
}

func (s *Service) write(ctx context.Context, rows []models.Announcement, delivery *DeliveryRequest) (*CreateResult, error) {
	if err := s.deps.Store.InsertAnnouncements(ctx, rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	s.invalidate(ctx)

	items := make([]Notification, len(rows))
	result := &CreateResult{IDs: make([]string, len(rows))}
	for i, row := range rows {
		items[i] = s.fetcher.FromAnnouncement(row)
		result.IDs[i] = items[i].ID
	}

	if delivery != nil && s.deps.Deliverer != nil {
		delivery.CorrelationID = rows[0].ID
		report, err := s.deps.Deliverer.Deliver(ctx, *delivery)
		if err != nil {
			s.warn(result, "delivery", err)
		}
		result.Delivery = report
	}

	if s.deps.Indexer != nil {
		if err := s.deps.Indexer.Index(ctx, items); err != nil {
			s.warn(result, "search index", err)
		} else {
			result.Indexed = true
		}
	}

	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishCreated(ctx, items); err != nil {
			s.warn(result, "event publish", err)
		} else {
			result.Published = true
		}
	}

	s.logger.Info("notifications created", map[string]interface{}{
		"count":     len(rows),
		"indexed":   result.Indexed,
		"published": result.Published,
	})
	return result, nil
}

// ArchiveNotification removes the announcement. Archived announcements are
// not kept.
func (s *Service) ArchiveNotification(ctx context.Context, id string) error {
	return s.removeAnnouncement(ctx, id, "archive")
}

func (s *Service) DeleteNotification(ctx context.Context, id string) error {
	return s.removeAnnouncement(ctx, id, "delete")
}

func (s *Service) removeAnnouncement(ctx context.Context, id, reason string) error {
	rowID, err := announcementRowID(id)
	if err != nil {
		return err
	}

	if err := s.deps.Store.DeleteAnnouncement(ctx, rowID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	s.invalidate(ctx)

	notificationID := SourceAnnouncement.ID(rowID)
	if s.deps.Indexer != nil {
		if err := s.deps.Indexer.Remove(ctx, notificationID); err != nil {
			s.logger.Warn("search index removal failed", map[string]interface{}{"id": notificationID, "error": err})
		}
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishDeleted(ctx, notificationID); err != nil {
			s.logger.Warn("event publish failed", map[string]interface{}{"id": notificationID, "error": err})
		}
	}

	s.logger.Info("announcement removed", map[string]interface{}{"id": notificationID, "reason": reason})
	return nil
}

// Invalidate drops every cached feed. It is wired to realtime change events.
func (s *Service) Invalidate(ctx context.Context) {
	s.invalidate(ctx)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.Invalidate(ctx); err != nil {
		s.logger.Warn("feed cache invalidation failed", map[string]interface{}{"error": err})
	}
}

func (s *Service) warn(result *CreateResult, what string, err error) {
	result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", what, err))
	s.logger.Warn(what+" failed", map[string]interface{}{"error": err})
}

func (s *Service) newAnnouncement(title, content, createdBy, priority, nType string, metadata map[string]interface{}, expiry *time.Time) models.Announcement {
	now := s.deps.Now().UTC()
	exp := now.Add(s.config.AnnouncementTTL)
	if expiry != nil && !expiry.IsZero() {
		exp = expiry.UTC()
	}
	if nType != "" && !IsKnownType(nType) {
		nType = ""
	}
	return models.Announcement{
		ID:               s.deps.NewID(),
		Title:            strings.TrimSpace(title),
		Content:          content,
		CreatedBy:        createdBy,
		Priority:         string(ParsePriority(priority)),
		NotificationType: nType,
		Metadata:         metadata,
		CreatedAt:        now,
		ExpiryDate:       exp,
	}
}

// announcementRowID accepts a raw announcement id or an announcement- prefixed
// id. Ids of other sources are rejected.
func announcementRowID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrInvalidNotificationID)
	}
	source, rowID, ok := SourceOf(id)
	if !ok {
		return id, nil
	}
	if source != SourceAnnouncement {
		return "", fmt.Errorf("%w: %s is not an announcement", ErrInvalidNotificationID, id)
	}
	return rowID, nil
}

func validateCommon(title, createdBy string) error {
	if strings.TrimSpace(title) == "" {
		return invalidInput("title is required")
	}
	if strings.TrimSpace(createdBy) == "" {
		return invalidInput("createdBy is required")
	}
	return nil
}

func wantsOutOfBand(channels []Channel) bool {
	for _, c := range channels {
		if c == ChannelEmail || c == ChannelSMS {
			return true
		}
	}
	return false
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
