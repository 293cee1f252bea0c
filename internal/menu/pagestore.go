package menu

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
	"github.com/IqDevHose/grandm-qrcode/internal/gateway"
)

// DefaultFirstCursor is the cursor of the first category page.
const DefaultFirstCursor = "1"

// ErrPageDiscarded is returned by PageStore.Fetch when a reload superseded the fetch while it was
// outstanding.
var ErrPageDiscarded = errors.New("menu: category page superseded by reload")

// CategoryPager is the subset of gateway.Gateway used by PageStore.
type CategoryPager interface {
	CategoryPage(ctx context.Context, restaurantID string, cursor string) (domain.CategoryPage, error)
}

// LoadOutcome describes what a page load request did.
type LoadOutcome int

const (
	// OutcomeLoaded means a page was fetched and appended.
	OutcomeLoaded LoadOutcome = iota
	// OutcomeStarted means the in-flight slot was reserved and the caller must call Fetch.
	OutcomeStarted
	// OutcomeNoMoreData means the backend returned a null cursor earlier; no request was made.
	OutcomeNoMoreData
	// OutcomeAlreadyInFlight means another fetch is outstanding; no request was made.
	OutcomeAlreadyInFlight
	// OutcomeFailed means the fetch failed and state was left unchanged.
	OutcomeFailed
)

func (o LoadOutcome) String() string {
	switch o {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeStarted:
		return "started"
	case OutcomeNoMoreData:
		return "no_more_data"
	case OutcomeAlreadyInFlight:
		return "already_in_flight"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PaginationStatus is the part of the pagination state the scroll loader needs.
type PaginationStatus struct {
	HasNext  bool
	InFlight bool
}

// PaginationState is a copy of the store's pagination bookkeeping.
type PaginationState struct {
	Pages      []domain.CategoryPage
	NextCursor *string
	InFlight   bool
}

// Status reduces the state to what ShouldLoadMore consumes.
func (s PaginationState) Status() PaginationStatus {
	return PaginationStatus{HasNext: s.NextCursor != nil, InFlight: s.InFlight}
}

// PageTicket is a reservation of the single in-flight slot.
type PageTicket struct {
	cursor     string
	generation uint64
	replace    bool
}

// Cursor returns the cursor the reserved fetch will request.
func (t PageTicket) Cursor() string {
	return t.cursor
}

// PageStore accumulates category pages for one restaurant. At most one fetch is in flight at a time,
// and once the backend returns a null cursor no further request is ever made.
type PageStore struct {
	restaurantID string
	pager        CategoryPager
	firstCursor  string

	mu         sync.Mutex
	pages      []domain.CategoryPage
	next       *string
	inFlight   bool
	generation uint64
}

// NewPageStore constructs a PageStore positioned before the first page.
func NewPageStore(restaurantID string, pager CategoryPager, firstCursor string) *PageStore {
	firstCursor = strings.TrimSpace(firstCursor)
	if firstCursor == "" {
		firstCursor = DefaultFirstCursor
	}
	return &PageStore{
		restaurantID: strings.TrimSpace(restaurantID),
		pager:        pager,
		firstCursor:  firstCursor,
		next:         domain.Cursor(firstCursor),
	}
}

// LoadNextPage fetches and appends the next page. A call made while another fetch is outstanding
// returns OutcomeAlreadyInFlight without issuing a request.
func (s *PageStore) LoadNextPage(ctx context.Context) (domain.CategoryPage, LoadOutcome, error) {
	ticket, outcome := s.Reserve()
	if outcome != OutcomeStarted {
		return domain.CategoryPage{}, outcome, nil
	}
	page, err := s.Fetch(ctx, ticket)
	if err != nil {
		return domain.CategoryPage{}, OutcomeFailed, err
	}
	return page, OutcomeLoaded, nil
}

// Reserve claims the in-flight slot. It returns OutcomeStarted when the caller now owns the slot and
// must complete it with Fetch.
func (s *PageStore) Reserve() (PageTicket, LoadOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return PageTicket{}, OutcomeAlreadyInFlight
	}
	if s.next == nil {
		return PageTicket{}, OutcomeNoMoreData
	}
	s.inFlight = true
	return PageTicket{cursor: *s.next, generation: s.generation}, OutcomeStarted
}

// Fetch performs the reserved request and applies the result. Failures leave pages and cursor
// untouched, release the slot and return an error matching gateway.ErrFetchFailed. A reload ticket
// replaces every loaded page on success.
func (s *PageStore) Fetch(ctx context.Context, ticket PageTicket) (domain.CategoryPage, error) {
	page, err := s.pager.CategoryPage(ctx, s.restaurantID, ticket.cursor)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.generation != s.generation {
		return domain.CategoryPage{}, ErrPageDiscarded
	}
	s.inFlight = false
	if err != nil {
		return domain.CategoryPage{}, transient("category_page", err)
	}
	page.Items = slices.Clone(page.Items)
	if ticket.replace {
		s.pages = nil
	}
	s.pages = append(s.pages, page)
	s.next = page.NextCursor
	return page, nil
}

// ReserveReload claims the in-flight slot for the first page, superseding any outstanding fetch.
// Loaded pages stay in place until Fetch succeeds with the returned ticket; a failed reload leaves
// pages and cursor as they were.
func (s *PageStore) ReserveReload() PageTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.inFlight = true
	return PageTicket{cursor: s.firstCursor, generation: s.generation, replace: true}
}

// State returns a copy of the pagination state.
func (s *PageStore) State() PaginationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := PaginationState{
		Pages:    slices.Clone(s.pages),
		InFlight: s.inFlight,
	}
	if s.next != nil {
		state.NextCursor = domain.Cursor(*s.next)
	}
	return state
}

// Status returns the loader-facing view of the pagination state.
func (s *PageStore) Status() PaginationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PaginationStatus{HasNext: s.next != nil, InFlight: s.inFlight}
}

// Categories flattens every loaded page in arrival order.
func (s *PageStore) Categories() []domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Category
	for _, p := range s.pages {
		out = append(out, p.Items...)
	}
	return out
}

func transient(op string, err error) error {
	if errors.Is(err, gateway.ErrFetchFailed) {
		return err
	}
	return &gateway.FetchError{Op: op, Err: err}
}
