// Package router serves composed resolvers over HTTP.
package router

import (
	"net/http"
	"time"

	"github.com/Suhaibinator/SResolve/pkg/resolver"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// RouterConfig defines the global configuration for the router.
// It includes settings for logging, timeouts, body limits, and metrics.
type RouterConfig struct {
	Logger            *zap.Logger          // Logger for all router operations
	GlobalTimeout     time.Duration        // Default resolution timeout for all routes
	GlobalMaxBodySize int64                // Default maximum request body size in bytes
	IPConfig          *IPConfig            // Configuration for client IP extraction
	EnableTraceID     bool                 // Assign a trace ID to every request and log it
	MetricsRegistry   *prometheus.Registry // Registry for resolver metrics; nil disables metrics
	MetricsNamespace  string               // Namespace for metrics
	MetricsSubsystem  string               // Subsystem for metrics
	MetricsPath       string               // Path serving the registry, e.g. "/metrics"; empty disables it
}

// ResolverRoute binds a resolver to a path. The decoded request body is the parent
// value of the resolution and the resolved value is encoded as the response.
type ResolverRoute[T any, U any] struct {
	Path        string                  // Route path in httprouter syntax, e.g. "/pages/:slug"
	Methods     []string                // HTTP methods this route handles
	Name        string                  // Resolver name used in logs and metrics; defaults to Path
	Codec       Codec[T, U]             // Codec for the request body and the response
	Resolver    resolver.Resolver[U, T] // Resolver producing the response from the request
	Timeout     time.Duration           // Override timeout for this specific route
	MaxBodySize int64                   // Override max body size for this specific route
	Values      map[any]any             // Static fields added to every resolution's context
}

// Codec defines an interface for marshaling and unmarshaling request and response data.
type Codec[T any, U any] interface {
	// Decode extracts and deserializes data from an HTTP request into a value of type T.
	Decode(r *http.Request) (T, error)

	// Encode serializes a value of type U and writes it to the HTTP response,
	// setting the Content-Type header.
	Encode(w http.ResponseWriter, resp U) error
}
