package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

const (
	// DefaultBaseURL — публичный каталог DummyJSON.
	DefaultBaseURL = "https://dummyjson.com"
	// DefaultLimit и DefaultSkip применяются, когда параметры страницы не заданы.
	DefaultLimit = 30
	DefaultSkip  = 0

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Результаты запросов для метрик.
const (
	ResultOK          = "ok"
	ResultStatus      = "status"
	ResultTimeout     = "timeout"
	ResultUnavailable = "unavailable"
	ResultCanceled    = "canceled"
)

// StatusError — каталог ответил не-2xx. Текст ошибки — тело ответа,
// а при пустом теле "request failed (<code>)".
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return fmt.Sprintf("request failed (%d)", e.Code)
}

func (e *StatusError) Unwrap() error {
	return domain.ErrCatalogStatus
}

// Recorder принимает длительность запросов; реализуется *metrics.CartMetrics.
type Recorder interface {
	RecordCatalogRequest(op, result string, duration time.Duration)
}

// Config задаёт параметры клиента.
type Config struct {
	BaseURL string
	// Timeout ограничивает один HTTP-запрос.
	Timeout time.Duration
	// RPS ограничивает исходящие запросы; 0 — без ограничения.
	RPS   float64
	Burst int
}

// DefaultConfig возвращает конфигурацию для публичного DummyJSON.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: defaultTimeout,
		RPS:     5,
		Burst:   5,
	}
}

// ClientOptions задаёт необязательные зависимости клиента.
type ClientOptions struct {
	Logger     *log.Entry
	Recorder   Recorder
	HTTPClient *http.Client
}

// Option настраивает Client.
type Option func(*ClientOptions)

func WithLogger(logger *log.Entry) Option {
	return func(opts *ClientOptions) { opts.Logger = logger }
}

func WithRecorder(recorder Recorder) Option {
	return func(opts *ClientOptions) { opts.Recorder = recorder }
}

// WithHTTPClient подменяет HTTP-клиент (тесты).
func WithHTTPClient(client *http.Client) Option {
	return func(opts *ClientOptions) { opts.HTTPClient = client }
}

// Client — read-only доступ к каталогу товаров по HTTP.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	products   singleflight.Group
	logger     *log.Entry
	recorder   Recorder
}

// NewClient создаёт клиент каталога.
func NewClient(cfg Config, options ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid catalog base url %q", cfg.BaseURL)
	}

	var opts ClientOptions
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "catalog-client")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
		if burst <= 0 {
			burst = 1
		}
	}

	c := &Client{
		baseURL:    strings.TrimRight(base.String(), "/"),
		timeout:    timeout,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
		recorder:   opts.Recorder,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 4xx — ответ каталога, а не его недоступность; отмена исходит от вызывающего.
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.Code < http.StatusInternalServerError
			}
			if errors.Is(err, context.Canceled) {
				return true
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("catalog circuit breaker state changed")
		},
	})
	return c, nil
}

// ListProducts возвращает страницу каталога. limit<=0 заменяется на 30, skip<0 на 0.
func (c *Client) ListProducts(ctx context.Context, limit, skip int) (domain.ProductsPage, error) {
	var page domain.ProductsPage
	err := c.getJSON(ctx, "list", "/products", pageQuery(limit, skip), &page)
	return page, err
}

// SearchProducts ищет товары по строке query.
func (c *Client) SearchProducts(ctx context.Context, query string, limit, skip int) (domain.ProductsPage, error) {
	values := pageQuery(limit, skip)
	values.Set("q", query)

	var page domain.ProductsPage
	err := c.getJSON(ctx, "search", "/products/search", values, &page)
	return page, err
}

// GetProduct возвращает карточку товара. Одновременные запросы одного id объединяются.
// Общий запрос не зависит от отмены ctx первого вызывающего и ограничен таймаутом клиента;
// отменённый вызывающий просто перестаёт ждать.
func (c *Client) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	if id <= 0 {
		return domain.Product{}, domain.ErrProductIDInvalid
	}

	key := strconv.FormatInt(id, 10)
	shared := context.WithoutCancel(ctx)
	results := c.products.DoChan(key, func() (any, error) {
		var product domain.Product
		if err := c.getJSON(shared, "get", "/products/"+key, nil, &product); err != nil {
			return domain.Product{}, err
		}
		return product, nil
	})

	select {
	case <-ctx.Done():
		return domain.Product{}, classify(ctx, ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return domain.Product{}, res.Err
		}
		return res.Val.(domain.Product), nil
	}
}

func pageQuery(limit, skip int) url.Values {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if skip < 0 {
		skip = DefaultSkip
	}
	values := url.Values{}
	values.Set("limit", strconv.Itoa(limit))
	values.Set("skip", strconv.Itoa(skip))
	return values
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, dst any) error {
	start := time.Now()
	body, err := c.fetch(ctx, path, query)
	if err == nil {
		if decodeErr := json.Unmarshal(body, dst); decodeErr != nil {
			err = fmt.Errorf("%w: decode response: %v", domain.ErrCatalogUnavailable, decodeErr)
		}
	}

	result := resultOf(err)
	if c.recorder != nil {
		c.recorder.RecordCatalogRequest(op, result, time.Since(start))
	}
	if err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"op":     op,
			"path":   path,
			"result": result,
		}).Debug("catalog request failed")
	}
	return err
}

func (c *Client) fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classify(ctx, err)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, &StatusError{Code: resp.StatusCode, Body: string(text)}
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, classify(ctx, err)
	}
	return body, nil
}

// classify приводит ошибку транспорта к одному из видов ошибок каталога.
func classify(ctx context.Context, err error) error {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return statusErr
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded), isNetTimeout(err):
		return fmt.Errorf("%w: %v", domain.ErrCatalogTimeout, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, domain.ErrCatalogStatus):
		return ResultStatus
	case errors.Is(err, domain.ErrCatalogTimeout):
		return ResultTimeout
	case errors.Is(err, context.Canceled):
		return ResultCanceled
	default:
		return ResultUnavailable
	}
}

var _ domain.Catalog = (*Client)(nil)
