package menu

import "math"

// DefaultNearEndThreshold is the distance from the trailing edge of the category strip below which the
// next page is requested.
const DefaultNearEndThreshold = 20.0

// Signal is a layout observation of the category strip: a ScrollSignal or a ResizeSignal.
type Signal interface {
	layout() (contentSize, viewportSize float64)
}

// ScrollSignal is emitted when the category strip scrolls. ScrollOffset is measured from the visual
// leading edge. Right-to-left strips report it as a negative number in some engines, so for RTL only
// its magnitude is used; a negative left-to-right offset is overscroll and counts as zero.
type ScrollSignal struct {
	ScrollOffset float64
	ViewportSize float64
	ContentSize  float64
	RTL          bool
}

func (s ScrollSignal) layout() (float64, float64) {
	return s.ContentSize, s.ViewportSize
}

// remaining is the distance between the viewport's trailing edge and the end of the content.
func (s ScrollSignal) remaining() float64 {
	offset := math.Max(s.ScrollOffset, 0)
	if s.RTL {
		offset = math.Abs(s.ScrollOffset)
	}
	return s.ContentSize - (offset + s.ViewportSize)
}

// ResizeSignal is emitted when the category strip or its content changes size.
type ResizeSignal struct {
	ViewportSize float64
	ContentSize  float64
}

func (s ResizeSignal) layout() (float64, float64) {
	return s.ContentSize, s.ViewportSize
}

// ShouldLoadMore decides whether a layout signal warrants requesting the next category page.
// A scroll close to the trailing edge qualifies, as does content that does not overflow the
// viewport at all. Nothing qualifies while a fetch is in flight or when no further page exists.
// A non-positive threshold selects DefaultNearEndThreshold.
func ShouldLoadMore(signal Signal, status PaginationStatus, threshold float64) bool {
	if signal == nil || status.InFlight || !status.HasNext {
		return false
	}
	if threshold <= 0 {
		threshold = DefaultNearEndThreshold
	}

	content, viewport := signal.layout()
	if content <= viewport {
		return true
	}
	if scroll, ok := signal.(ScrollSignal); ok {
		return scroll.remaining() < threshold
	}
	return false
}
