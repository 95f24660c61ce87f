package router

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Suhaibinator/SResolve/pkg/middleware"
	"github.com/Suhaibinator/SResolve/pkg/resolver"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router serves composed resolvers over HTTP. It implements http.Handler.
type Router struct {
	config     RouterConfig
	router     *httprouter.Router
	logger     *zap.Logger
	ipConfig   *IPConfig
	metrics    *middleware.ResolverMetrics
	wg         sync.WaitGroup
	shutdown   bool
	shutdownMu sync.RWMutex
}

// contextKey is a type for resolver context keys set by the router.
type contextKey string

const (
	// ParamsKey is the key used to store httprouter.Params in the resolver context.
	ParamsKey contextKey = "params"

	// RequestKey is the key used to store the *http.Request in the resolver context.
	RequestKey contextKey = "request"
)

// NewRouter creates a new Router with the given configuration.
// It returns an error only if the metrics collectors cannot be registered.
func NewRouter(config RouterConfig) (*Router, error) {
	// Set up the logger
	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			// Fallback to a no-op logger if we can't create a production logger
			logger = zap.NewNop()
		}
	}

	ipConfig := config.IPConfig
	if ipConfig == nil {
		ipConfig = DefaultIPConfig()
	}

	r := &Router{
		config:   config,
		router:   httprouter.New(),
		logger:   logger,
		ipConfig: ipConfig,
	}

	if config.MetricsRegistry != nil {
		m, err := middleware.NewResolverMetrics(config.MetricsRegistry, config.MetricsNamespace, config.MetricsSubsystem)
		if err != nil {
			return nil, err
		}
		r.metrics = m

		if config.MetricsPath != "" {
			r.router.Handler(http.MethodGet, config.MetricsPath, promhttp.HandlerFor(config.MetricsRegistry, promhttp.HandlerOpts{}))
		}
	}

	return r, nil
}

// RegisterResolver registers a resolver route with the router.
// This is a standalone function rather than a method because Go methods cannot have type parameters.
//
// Each request runs the route's resolver behind the router's own middlewares
// (metrics, panic recovery, and the effective timeout) with the decoded body as parent.
func RegisterResolver[T any, U any](r *Router, route ResolverRoute[T, U]) {
	timeout := r.getEffectiveTimeout(route.Timeout)
	maxBodySize := r.getEffectiveMaxBodySize(route.MaxBodySize)
	name := route.Name
	if name == "" {
		name = route.Path
	}

	chain := resolver.NewChain[U, T]()
	if r.metrics != nil {
		chain = chain.Append(middleware.Metrics[U, T](r.metrics, name))
	}
	chain = chain.Append(middleware.Recovery[U, T](r.logger))
	if timeout > 0 {
		chain = chain.Append(middleware.Timeout[U, T](timeout))
	}
	resolve := chain.Then(route.Resolver)

	handle := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		if r.config.EnableTraceID {
			req = req.WithContext(context.WithValue(req.Context(), middleware.TraceIDKey, uuid.New().String()))
		}

		// Apply body size limit
		if maxBodySize > 0 {
			req.Body = http.MaxBytesReader(w, req.Body, maxBodySize)
		}

		data, err := route.Codec.Decode(req)
		if err != nil {
			status := http.StatusBadRequest
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				status = http.StatusRequestEntityTooLarge
			}
			r.handleError(w, req, err, status, "Failed to decode request")
			return
		}

		rctx := resolverContext[U](req, ps, extractClientIP(req, r.ipConfig), route.Values)
		resp, err := resolve(data, rctx)
		if err != nil {
			r.handleError(w, req, err, statusFor(err), "Resolution failed")
			return
		}

		if err := route.Codec.Encode(w, resp); err != nil {
			r.handleError(w, req, err, http.StatusInternalServerError, "Failed to encode response")
			return
		}
	}

	for _, method := range route.Methods {
		r.router.Handle(method, route.Path, r.track(handle))
	}
}

// resolverContext builds the fields every resolution starts with.
func resolverContext[U any](req *http.Request, ps httprouter.Params, clientIP string, values map[any]any) resolver.Context[U] {
	rctx := resolver.NewContext[U](req.Context())
	for k, v := range values {
		rctx = rctx.With(k, v)
	}

	rctx = rctx.
		With(ParamsKey, ps).
		With(RequestKey, req).
		With(middleware.ClientIPKey, clientIP)

	if traceID := middleware.TraceIDFromContext(req.Context()); traceID != "" {
		rctx = rctx.With(middleware.TraceIDKey, traceID)
	}
	if token := bearerToken(req); token != "" {
		rctx = rctx.With(middleware.TokenKey, token)
	}
	return rctx
}

// bearerToken returns the token from an "Authorization: Bearer" header, if any.
func bearerToken(req *http.Request) string {
	token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// track wraps a handle so that Shutdown can wait for it and reject new requests.
func (r *Router) track(handle httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		// First add to the wait group before checking shutdown status
		r.wg.Add(1)

		r.shutdownMu.RLock()
		isShutdown := r.shutdown
		r.shutdownMu.RUnlock()

		if isShutdown {
			r.wg.Done()
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		defer r.wg.Done()

		handle(w, req, ps)
	}
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Shutdown gracefully shuts down the router.
// It stops accepting new requests and waits for existing requests to complete.
// If the context is canceled before all requests complete, it returns the context's error.
func (r *Router) Shutdown(ctx context.Context) error {
	// Mark the router as shutting down
	r.shutdownMu.Lock()
	r.shutdown = true
	r.shutdownMu.Unlock()

	// Create a channel to signal when all requests are done
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	// Wait for all requests to finish or for the context to be canceled
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Params retrieves the httprouter.Params from the resolver context.
func Params(v resolver.Valuer) httprouter.Params {
	params, _ := v.Value(ParamsKey).(httprouter.Params)
	return params
}

// Param retrieves a specific route parameter from the resolver context.
func Param(v resolver.Valuer, name string) string {
	return Params(v).ByName(name)
}

// Request retrieves the *http.Request being served from the resolver context.
func Request(v resolver.Valuer) *http.Request {
	req, _ := v.Value(RequestKey).(*http.Request)
	return req
}

// getEffectiveTimeout returns the route timeout if set, otherwise the global timeout.
func (r *Router) getEffectiveTimeout(routeTimeout time.Duration) time.Duration {
	if routeTimeout > 0 {
		return routeTimeout
	}
	return r.config.GlobalTimeout
}

// getEffectiveMaxBodySize returns the route max body size if set, otherwise the global one.
func (r *Router) getEffectiveMaxBodySize(routeMaxBodySize int64) int64 {
	if routeMaxBodySize > 0 {
		return routeMaxBodySize
	}
	return r.config.GlobalMaxBodySize
}

// statusFor maps a resolution error to an HTTP status code.
func statusFor(err error) int {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.StatusCode
	case errors.Is(err, middleware.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, middleware.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, middleware.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleError handles an error by logging it and returning an appropriate HTTP response.
// Client errors are logged at Warn level and server errors at Error level.
func (r *Router) handleError(w http.ResponseWriter, req *http.Request, err error, statusCode int, message string) {
	if errors.Is(err, resolver.ErrNextCalledMultipleTimes) {
		message = "Middleware called next more than once"
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", statusCode),
	}

	// Add trace ID if enabled and present
	if traceID := middleware.TraceIDFromContext(req.Context()); r.config.EnableTraceID && traceID != "" {
		fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
	}

	if statusCode >= http.StatusInternalServerError {
		r.logger.Error(message, fields...)
	} else {
		r.logger.Warn(message, fields...)
	}

	body := http.StatusText(statusCode)
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		body = httpErr.Message
	}

	http.Error(w, body, statusCode)
}

// HTTPError represents an HTTP error with a status code and message.
// A resolver can return it to control the exact error response sent to clients.
type HTTPError struct {
	StatusCode int    // HTTP status code (e.g., 400, 404, 500)
	Message    string // Error message to be sent in the response body
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTPError with the specified status code and message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}
