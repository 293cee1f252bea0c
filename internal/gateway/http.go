package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/IqDevHose/grandm-qrcode/internal/domain"
)

const instrumentationName = "github.com/IqDevHose/grandm-qrcode/internal/gateway"

const (
	opCategoryPage  = "category_page"
	opCategoryItems = "category_items"
	opRestaurant    = "restaurant"
)

// HTTPClient matches the subset of http.Client used by HTTPGateway.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPGateway implements Gateway against the JSON restaurant backend.
type HTTPGateway struct {
	base   *url.URL
	client HTTPClient
	logger *zap.Logger
	text   *bluemonday.Policy
	tracer trace.Tracer

	latency        metric.Float64Histogram
	latencyEnabled bool
	failures       metric.Int64Counter
	failureEnabled bool
}

type httpConfig struct {
	client HTTPClient
	logger *zap.Logger
	meter  metric.Meter
}

// Option customises HTTPGateway construction.
type Option func(*httpConfig)

// WithHTTPClient overrides the client used for backend calls.
func WithHTTPClient(client HTTPClient) Option {
	return func(cfg *httpConfig) {
		cfg.client = client
	}
}

// WithTimeout uses a dedicated http.Client with the given timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *httpConfig) {
		if timeout > 0 {
			cfg.client = &http.Client{Timeout: timeout}
		}
	}
}

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *httpConfig) {
		cfg.logger = logger
	}
}

// WithMeter injects a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(cfg *httpConfig) {
		cfg.meter = m
	}
}

// NewHTTPGateway constructs a Gateway that talks to the backend rooted at baseURL.
func NewHTTPGateway(baseURL string, opts ...Option) (*HTTPGateway, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrBaseURLRequired
	}
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base URL: %w", err)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	cfg := httpConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.client == nil {
		cfg.client = http.DefaultClient
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	meter := cfg.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}

	latency, latencyErr := meter.Float64Histogram(
		"menu.gateway.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for backend fetches"),
	)
	if latencyErr != nil {
		cfg.logger.Warn("gateway: unable to register latency metric", zap.Error(latencyErr))
	}
	failures, failureErr := meter.Int64Counter(
		"menu.gateway.failures",
		metric.WithDescription("Count of failed backend fetches"),
	)
	if failureErr != nil {
		cfg.logger.Warn("gateway: unable to register failure metric", zap.Error(failureErr))
	}

	return &HTTPGateway{
		base:           parsed,
		client:         cfg.client,
		logger:         cfg.logger,
		text:           bluemonday.StrictPolicy(),
		tracer:         otel.Tracer(instrumentationName),
		latency:        latency,
		latencyEnabled: latencyErr == nil,
		failures:       failures,
		failureEnabled: failureErr == nil,
	}, nil
}

type categoryPayload struct {
	ID   flexString `json:"id"`
	Name string     `json:"name"`
}

type categoryPagePayload struct {
	Items    []categoryPayload `json:"items"`
	NextPage json.RawMessage   `json:"nextPage"`
}

type itemPayload struct {
	ID          flexString `json:"id"`
	Name        string     `json:"name"`
	NameAr      string     `json:"nameAr"`
	Image       string     `json:"image"`
	Price       float64    `json:"price"`
	Description *string    `json:"description"`
	Category    flexString `json:"category"`
}

type itemsPayload struct {
	Items []itemPayload `json:"items"`
}

type restaurantPayload struct {
	ID    flexString `json:"id"`
	Name  string     `json:"name"`
	Image string     `json:"image"`
	Theme struct {
		Primary string `json:"primary"`
	} `json:"theme"`
}

// CategoryPage fetches one page of categories for the restaurant.
func (g *HTTPGateway) CategoryPage(ctx context.Context, restaurantID, cursor string) (domain.CategoryPage, error) {
	query := url.Values{}
	query.Set("page", cursor)
	query.Set("restaurantId", strings.TrimSpace(restaurantID))

	var payload categoryPagePayload
	if err := g.getJSON(ctx, opCategoryPage, "category", query, &payload); err != nil {
		return domain.CategoryPage{}, err
	}

	next, err := decodeCursor(payload.NextPage)
	if err != nil {
		return domain.CategoryPage{}, fetchError(opCategoryPage, 0, err)
	}
	page := domain.CategoryPage{
		Items:      make([]domain.Category, 0, len(payload.Items)),
		NextCursor: next,
	}
	for _, c := range payload.Items {
		id := strings.TrimSpace(string(c.ID))
		if id == "" {
			continue
		}
		page.Items = append(page.Items, domain.Category{ID: id, Name: g.plain(c.Name)})
	}
	return page, nil
}

// CategoryItems fetches every item of a category.
func (g *HTTPGateway) CategoryItems(ctx context.Context, categoryID string) ([]domain.Item, error) {
	categoryID = strings.TrimSpace(categoryID)
	endpoint := path.Join("category", url.PathEscape(categoryID))

	var payload itemsPayload
	if err := g.getJSON(ctx, opCategoryItems, endpoint, nil, &payload); err != nil {
		return nil, err
	}

	items := make([]domain.Item, 0, len(payload.Items))
	for _, p := range payload.Items {
		id := strings.TrimSpace(string(p.ID))
		if id == "" {
			continue
		}
		item := domain.Item{
			ID:         id,
			Name:       g.plain(p.Name),
			NameAr:     g.plain(p.NameAr),
			Image:      strings.TrimSpace(p.Image),
			Price:      normalizePrice(p.Price),
			CategoryID: strings.TrimSpace(string(p.Category)),
		}
		if p.Description != nil {
			item.Description = strings.TrimSpace(*p.Description)
		}
		if item.CategoryID == "" {
			item.CategoryID = categoryID
		}
		items = append(items, item)
	}
	return items, nil
}

// Restaurant fetches the restaurant header and theme.
func (g *HTTPGateway) Restaurant(ctx context.Context, restaurantID string) (domain.Restaurant, error) {
	restaurantID = strings.TrimSpace(restaurantID)
	endpoint := path.Join("restaurant", url.PathEscape(restaurantID))

	var payload restaurantPayload
	if err := g.getJSON(ctx, opRestaurant, endpoint, nil, &payload); err != nil {
		return domain.Restaurant{}, err
	}
	id := strings.TrimSpace(string(payload.ID))
	if id == "" {
		id = restaurantID
	}
	return domain.Restaurant{
		ID:    id,
		Name:  g.plain(payload.Name),
		Image: strings.TrimSpace(payload.Image),
		Theme: domain.Theme{Primary: strings.TrimSpace(payload.Theme.Primary)},
	}, nil
}

func (g *HTTPGateway) getJSON(ctx context.Context, op, endpoint string, query url.Values, dest any) (err error) {
	ctx, span := g.tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient))
	start := time.Now()
	defer func() {
		attrs := metric.WithAttributes(attribute.String("op", op), attribute.Bool("error", err != nil))
		if g.latencyEnabled {
			g.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
		}
		if err != nil {
			if g.failureEnabled {
				g.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			g.logger.Warn("gateway fetch failed", zap.String("op", op), zap.Error(err))
		}
		span.End()
	}()

	target := g.resolve(endpoint, query)
	span.SetAttributes(attribute.String("http.url", target))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fetchError(op, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fetchError(op, 0, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return g.errorFromResponse(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fetchError(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (g *HTTPGateway) resolve(endpoint string, query url.Values) string {
	ref := &url.URL{Path: strings.TrimPrefix(endpoint, "/")}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	return g.base.ResolveReference(ref).String()
}

func (g *HTTPGateway) errorFromResponse(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	type errorPayload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	var payload errorPayload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
			return fetchError(op, resp.StatusCode, errors.New(strings.TrimSpace(payload.Message)))
		}
		return fetchError(op, resp.StatusCode, errors.New(strings.TrimSpace(string(body))))
	}
	return fetchError(op, resp.StatusCode, nil)
}

// plain strips markup from backend text while keeping literal characters such as "&".
func (g *HTTPGateway) plain(value string) string {
	return strings.TrimSpace(html.UnescapeString(g.text.Sanitize(value)))
}

// normalizePrice rounds to whole units and clamps into [0, MaxInt64].
func normalizePrice(price float64) int64 {
	switch {
	case math.IsNaN(price) || price <= 0:
		return 0
	case price >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(math.Round(price))
}

// decodeCursor accepts numeric or string cursors. null, false or an absent field end pagination.
func decodeCursor(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var token string
		if err := json.Unmarshal(raw, &token); err != nil {
			return nil, fmt.Errorf("decode cursor: %w", err)
		}
		if strings.TrimSpace(token) == "" {
			return nil, nil
		}
		return domain.Cursor(token), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	return domain.Cursor(n.String()), nil
}

// flexString decodes identifiers the backend may send either as strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
