package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
)

// Gateway fetches menu data from the restaurant backend. Implementations must be safe for concurrent use.
type Gateway interface {
	CategoryPage(ctx context.Context, restaurantID string, cursor string) (domain.CategoryPage, error)
	CategoryItems(ctx context.Context, categoryID string) ([]domain.Item, error)
	Restaurant(ctx context.Context, restaurantID string) (domain.Restaurant, error)
}

var (
	// ErrFetchFailed matches every transient fetch failure returned by a Gateway.
	ErrFetchFailed = errors.New("gateway: fetch failed")
	// ErrBaseURLRequired indicates the HTTP gateway was constructed without a backend address.
	ErrBaseURLRequired = errors.New("gateway: base URL is required")
)

// FetchError describes a failed backend call. It always matches ErrFetchFailed and is safe to retry.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return ErrFetchFailed.Error()
	}
	switch {
	case e.Status > 0 && e.Err != nil:
		return fmt.Sprintf("gateway: %s failed (%d): %v", e.Op, e.Status, e.Err)
	case e.Status > 0:
		return fmt.Sprintf("gateway: %s failed (%d): %s", e.Op, e.Status, http.StatusText(e.Status))
	case e.Err != nil:
		return fmt.Sprintf("gateway: %s failed: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("gateway: %s failed", e.Op)
	}
}

func (e *FetchError) Unwrap() []error {
	if e == nil || e.Err == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Err}
}

func fetchError(op string, status int, err error) error {
	return &FetchError{Op: op, Status: status, Err: err}
}
