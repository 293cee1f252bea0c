package services

import (
	"context"
	"time"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
	"github.com/IqDevHose/grandm-qrcode/internal/menu"
)

// SessionService hosts one menu browser per client session.
type SessionService interface {
	Create(ctx context.Context, cmd CreateSessionCommand) (Session, error)
	Get(ctx context.Context, sessionID string) (Session, error)
	Close(ctx context.Context, sessionID string) error
	Dispatch(ctx context.Context, sessionID string, event SessionEvent) (menu.Snapshot, error)
	Subscribe(ctx context.Context, sessionID string) (<-chan menu.Snapshot, func(), error)
	AllItems(ctx context.Context, sessionID string) ([]menu.CategoryGroup, error)
	Sweep(now time.Time) int
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// CreateSessionCommand starts a browsing session. An empty RestaurantID uses the configured default.
type CreateSessionCommand struct {
	RestaurantID string
	Locale       domain.Locale
}

// Session describes a live browsing session.
type Session struct {
	ID           string
	RestaurantID string
	CreatedAt    time.Time
	LastSeenAt   time.Time
	Snapshot     menu.Snapshot
}

// SessionEventType names a presentation event.
type SessionEventType string

const (
	EventSelectCategory SessionEventType = "selectCategory"
	EventOpenItem       SessionEventType = "openItem"
	EventCloseItem      SessionEventType = "closeItem"
	EventSetSearchTerm  SessionEventType = "setSearchTerm"
	EventSetLocale      SessionEventType = "setLocale"
	EventToggleLocale   SessionEventType = "toggleLocale"
	EventScroll         SessionEventType = "scroll"
	EventResize         SessionEventType = "resize"
	EventReload         SessionEventType = "reload"
)

// SessionEvent is a single presentation event. Only the fields relevant to Type are read.
type SessionEvent struct {
	Type       SessionEventType
	CategoryID string
	ItemID     string
	SearchTerm string
	Locale     string
	Geometry   *menu.StripGeometry
	Scroll     *menu.ScrollSignal
	Resize     *menu.ResizeSignal
}
