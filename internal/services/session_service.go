package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/IqDevHose/grandm-qrcode/internal/gateway"
	"github.com/IqDevHose/grandm-qrcode/internal/i18n"
	"github.com/IqDevHose/grandm-qrcode/internal/menu"
	"github.com/IqDevHose/grandm-qrcode/internal/platform/events"
)

const (
	defaultSessionIdleTTL = 30 * time.Minute
	defaultSweepInterval  = time.Minute
	defaultMaxSessions    = 10000
	defaultSubjectPrefix  = "menu.sessions"

	subjectSnapshot = "snapshot"
	subjectClosed   = "closed"
)

var (
	// ErrSessionInvalidInput indicates the caller supplied an invalid command or event.
	ErrSessionInvalidInput = errors.New("session: invalid input")
	// ErrSessionNotFound indicates the session does not exist or has expired.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionLimit indicates the service is hosting its maximum number of sessions.
	ErrSessionLimit = errors.New("session: limit reached")
	// ErrSessionServiceClosed indicates the service has been shut down.
	ErrSessionServiceClosed = errors.New("session: service closed")
)

// SessionServiceDeps bundles collaborators required to construct a session service.
type SessionServiceDeps struct {
	Gateway gateway.Gateway
	Bundle  *i18n.Bundle
	// Publisher receives a JSON snapshot event after every change. Defaults to events.NopPublisher.
	Publisher     events.Publisher
	SubjectPrefix string

	DefaultRestaurantID string
	FirstCursor         string
	NearEndThreshold    float64
	MatchMode           menu.MatchMode

	IdleTTL       time.Duration
	SweepInterval time.Duration
	MaxSessions   int

	Clock       func() time.Time
	IDGenerator func() string
	Logger      *zap.Logger
}

type sessionService struct {
	gateway   gateway.Gateway
	bundle    *i18n.Bundle
	publisher events.Publisher
	prefix    string

	defaultRestaurant string
	firstCursor       string
	threshold         float64
	mode              menu.MatchMode

	idleTTL       time.Duration
	sweepInterval time.Duration
	maxSessions   int

	clock  func() time.Time
	newID  func() string
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	closed   bool
	wg       sync.WaitGroup
}

type sessionEntry struct {
	id           string
	restaurantID string
	createdAt    time.Time
	browser      *menu.Browser

	// guarded by sessionService.mu
	lastSeen time.Time
	streams  int
}

// NewSessionService wires dependencies into a SessionService implementation.
func NewSessionService(deps SessionServiceDeps) (SessionService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("session service: gateway is required")
	}
	if deps.Bundle == nil {
		return nil, errors.New("session service: locale bundle is required")
	}

	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	prefix := strings.TrimSpace(deps.SubjectPrefix)
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	idleTTL := deps.IdleTTL
	if idleTTL <= 0 {
		idleTTL = defaultSessionIdleTTL
	}
	sweepInterval := deps.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	maxSessions := deps.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &sessionService{
		gateway:           deps.Gateway,
		bundle:            deps.Bundle,
		publisher:         publisher,
		prefix:            prefix,
		defaultRestaurant: strings.TrimSpace(deps.DefaultRestaurantID),
		firstCursor:       deps.FirstCursor,
		threshold:         deps.NearEndThreshold,
		mode:              deps.MatchMode,
		idleTTL:           idleTTL,
		sweepInterval:     sweepInterval,
		maxSessions:       maxSessions,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		logger:   logger.Named("sessions"),
		sessions: make(map[string]*sessionEntry),
	}, nil
}

func (s *sessionService) Create(ctx context.Context, cmd CreateSessionCommand) (Session, error) {
	restaurantID := strings.TrimSpace(cmd.RestaurantID)
	if restaurantID == "" {
		restaurantID = s.defaultRestaurant
	}
	if restaurantID == "" {
		return Session{}, fmt.Errorf("%w: restaurant id is required", ErrSessionInvalidInput)
	}
	locale := cmd.Locale
	if locale == "" {
		locale = s.bundle.Fallback()
	} else if !s.bundle.IsSupported(locale) {
		return Session{}, fmt.Errorf("%w: unsupported locale %q", ErrSessionInvalidInput, locale)
	}

	id := strings.TrimSpace(s.newID())
	if id == "" {
		return Session{}, errors.New("session: id generator returned empty id")
	}
	logger := s.logger.With(zap.String("session_id", id))

	browser, err := menu.NewBrowser(menu.BrowserDeps{
		Gateway:          s.gateway,
		RestaurantID:     restaurantID,
		Locale:           locale,
		FirstCursor:      s.firstCursor,
		NearEndThreshold: s.threshold,
		MatchMode:        s.mode,
		Logger:           logger,
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrSessionInvalidInput, err)
	}

	now := s.clock()
	entry := &sessionEntry{
		id:           id,
		restaurantID: restaurantID,
		createdAt:    now,
		browser:      browser,
		lastSeen:     now,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Session{}, ErrSessionServiceClosed
	}
	if len(s.sessions) >= s.maxSessions {
		s.mu.Unlock()
		return Session{}, ErrSessionLimit
	}
	if _, exists := s.sessions[id]; exists {
		s.mu.Unlock()
		return Session{}, fmt.Errorf("session: duplicate id %s", id)
	}
	s.sessions[id] = entry
	s.mu.Unlock()

	s.startPublishing(entry)

	if err := browser.Start(ctx); err != nil {
		logger.Warn("first category page failed", zap.Error(err))
	}
	logger.Info("session created",
		zap.String("restaurant_id", restaurantID),
		zap.String("locale", string(locale)),
	)
	return s.describe(entry), nil
}

func (s *sessionService) Get(_ context.Context, sessionID string) (Session, error) {
	entry, err := s.touch(sessionID)
	if err != nil {
		return Session{}, err
	}
	return s.describe(entry), nil
}

func (s *sessionService) Close(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.closeEntry(ctx, entry, "closed")
	return nil
}

func (s *sessionService) Dispatch(ctx context.Context, sessionID string, event SessionEvent) (menu.Snapshot, error) {
	entry, err := s.touch(sessionID)
	if err != nil {
		return menu.Snapshot{}, err
	}
	b := entry.browser

	switch event.Type {
	case EventSelectCategory:
		if err := b.SelectCategory(event.CategoryID, event.Geometry); err != nil {
			return menu.Snapshot{}, fmt.Errorf("%w: %w", ErrSessionInvalidInput, err)
		}
	case EventOpenItem:
		if err := b.OpenItem(event.ItemID); err != nil {
			return menu.Snapshot{}, fmt.Errorf("%w: %w", ErrSessionInvalidInput, err)
		}
	case EventCloseItem:
		b.CloseItem()
	case EventSetSearchTerm:
		b.SetSearchTerm(event.SearchTerm)
	case EventSetLocale:
		locale, ok := s.bundle.Parse(event.Locale)
		if !ok {
			return menu.Snapshot{}, fmt.Errorf("%w: unsupported locale %q", ErrSessionInvalidInput, event.Locale)
		}
		b.SetLocale(locale)
	case EventToggleLocale:
		b.SetLocale(s.bundle.Toggle(b.Locale()))
	case EventScroll:
		if event.Scroll == nil {
			return menu.Snapshot{}, fmt.Errorf("%w: scroll signal is required", ErrSessionInvalidInput)
		}
		b.OnScroll(*event.Scroll)
	case EventResize:
		if event.Resize == nil {
			return menu.Snapshot{}, fmt.Errorf("%w: resize signal is required", ErrSessionInvalidInput)
		}
		b.OnResize(*event.Resize)
	case EventReload:
		// A failed reload is surfaced through Snapshot.Error.
		if err := b.Reload(ctx); err != nil {
			s.logger.Warn("reload failed", zap.String("session_id", entry.id), zap.Error(err))
		}
	default:
		return menu.Snapshot{}, fmt.Errorf("%w: unknown event type %q", ErrSessionInvalidInput, event.Type)
	}
	return b.Snapshot(), nil
}

// Subscribe streams snapshots of a session. The session is not swept while a subscription is open.
func (s *sessionService) Subscribe(_ context.Context, sessionID string) (<-chan menu.Snapshot, func(), error) {
	entry, err := s.touch(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, unsubscribe := entry.browser.Subscribe()

	s.mu.Lock()
	entry.streams++
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			unsubscribe()
			s.mu.Lock()
			entry.streams--
			entry.lastSeen = s.clock()
			s.mu.Unlock()
		})
	}, nil
}

func (s *sessionService) AllItems(_ context.Context, sessionID string) ([]menu.CategoryGroup, error) {
	entry, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}
	return entry.browser.AllItems(), nil
}

// Sweep closes sessions idle for longer than the idle TTL and reports how many were closed.
func (s *sessionService) Sweep(now time.Time) int {
	cutoff := now.UTC().Add(-s.idleTTL)
	var expired []*sessionEntry
	s.mu.Lock()
	for id, entry := range s.sessions {
		if entry.streams > 0 || entry.lastSeen.After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		expired = append(expired, entry)
	}
	s.mu.Unlock()

	for _, entry := range expired {
		s.closeEntry(context.Background(), entry, "expired")
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is cancelled.
func (s *sessionService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.clock()); n > 0 {
				s.logger.Info("idle sessions swept", zap.Int("count", n))
			}
		}
	}
}

// Shutdown closes every session and waits for pending snapshot publications.
func (s *sessionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for id, entry := range s.sessions {
		delete(s.sessions, id)
		entries = append(entries, entry)
	}
	s.mu.Unlock()

	for _, entry := range entries {
		s.closeEntry(ctx, entry, "shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *sessionService) touch(sessionID string) (*sessionEntry, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	entry.lastSeen = s.clock()
	return entry, nil
}

func (s *sessionService) describe(entry *sessionEntry) Session {
	s.mu.Lock()
	lastSeen := entry.lastSeen
	s.mu.Unlock()
	return Session{
		ID:           entry.id,
		RestaurantID: entry.restaurantID,
		CreatedAt:    entry.createdAt,
		LastSeenAt:   lastSeen,
		Snapshot:     entry.browser.Snapshot(),
	}
}

func (s *sessionService) closeEntry(ctx context.Context, entry *sessionEntry, reason string) {
	entry.browser.Close()
	payload, err := json.Marshal(sessionClosedEvent{SessionID: entry.id, Reason: reason, ClosedAt: s.clock()})
	if err == nil {
		if err := s.publisher.Publish(ctx, events.Subject(s.prefix, entry.id, subjectClosed), payload); err != nil {
			s.logger.Warn("publish session closed failed", zap.String("session_id", entry.id), zap.Error(err))
		}
	}
	s.logger.Info("session closed", zap.String("session_id", entry.id), zap.String("reason", reason))
}

// startPublishing forwards every snapshot of the session to the publisher until the browser closes.
func (s *sessionService) startPublishing(entry *sessionEntry) {
	// The channel closes when the browser closes.
	ch, _ := entry.browser.Subscribe()
	subject := events.Subject(s.prefix, entry.id, subjectSnapshot)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for snap := range ch {
			payload, err := json.Marshal(newSnapshotEvent(entry.id, snap, s.clock()))
			if err != nil {
				s.logger.Error("encode snapshot event failed", zap.String("session_id", entry.id), zap.Error(err))
				continue
			}
			if err := s.publisher.Publish(context.Background(), subject, payload); err != nil {
				s.logger.Warn("publish snapshot failed", zap.String("session_id", entry.id), zap.Error(err))
			}
		}
	}()
}

// snapshotEvent is the compact change notification published for each snapshot.
type snapshotEvent struct {
	SessionID          string    `json:"sessionId"`
	Version            uint64    `json:"version"`
	RestaurantID       string    `json:"restaurantId"`
	Locale             string    `json:"locale"`
	SelectedCategoryID string    `json:"selectedCategoryId,omitempty"`
	CategoryCount      int       `json:"categoryCount"`
	PagesLoaded        int       `json:"pagesLoaded"`
	HasNext            bool      `json:"hasNext"`
	InFlight           bool      `json:"inFlight"`
	LoadingItems       bool      `json:"loadingItems"`
	SearchTerm         string    `json:"searchTerm,omitempty"`
	VisibleItemIDs     []string  `json:"visibleItemIds"`
	SelectedItemID     string    `json:"selectedItemId,omitempty"`
	NoResults          bool      `json:"noResults"`
	Error              string    `json:"error,omitempty"`
	EmittedAt          time.Time `json:"emittedAt"`
}

type sessionClosedEvent struct {
	SessionID string    `json:"sessionId"`
	Reason    string    `json:"reason"`
	ClosedAt  time.Time `json:"closedAt"`
}

func newSnapshotEvent(sessionID string, snap menu.Snapshot, now time.Time) snapshotEvent {
	ids := make([]string, 0, len(snap.FilteredItems))
	for _, item := range snap.FilteredItems {
		ids = append(ids, item.ID)
	}
	evt := snapshotEvent{
		SessionID:          sessionID,
		Version:            snap.Version,
		RestaurantID:       snap.RestaurantID,
		Locale:             string(snap.Locale),
		SelectedCategoryID: snap.SelectedCategoryID,
		CategoryCount:      len(snap.Categories),
		PagesLoaded:        snap.PagesLoaded,
		HasNext:            snap.Pagination.HasNext,
		InFlight:           snap.Pagination.InFlight,
		LoadingItems:       snap.IsLoadingItems,
		SearchTerm:         snap.SearchTerm,
		VisibleItemIDs:     ids,
		NoResults:          snap.NoResults,
		Error:              snap.Error,
		EmittedAt:          now,
	}
	if snap.SelectedItem != nil {
		evt.SelectedItemID = snap.SelectedItem.ID
	}
	return evt
}
