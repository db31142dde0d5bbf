package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	TokensUsed          metric.Int64Counter
	IngestDuration      metric.Float64Histogram
	SearchDuration      metric.Float64Histogram
	SearchOutcomes      metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
	DatabaseOperations  metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("rag-docqa-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"llm.tokens.used",
		metric.WithDescription("Total generative model tokens used"),
	)
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram(
		"ingest.duration",
		metric.WithDescription("Session ingestion (extract, chunk, index) duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"search.duration",
		metric.WithDescription("Hybrid search duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	searchOutcomes, err := meter.Int64Counter(
		"search.outcomes.total",
		metric.WithDescription("Searches by outcome"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	databaseOperations, err := meter.Int64Counter(
		"database.operations.total",
		metric.WithDescription("Total database operations"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		TokensUsed:          tokensUsed,
		IngestDuration:      ingestDuration,
		SearchDuration:      searchDuration,
		SearchOutcomes:      searchOutcomes,
		CircuitBreakerState: circuitBreakerState,
		DatabaseOperations:  databaseOperations,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records generative model token usage
func (m *Metrics) RecordTokensUsed(tokens int64, provider, model string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordIngest records one session rebuild.
func (m *Metrics) RecordIngest(duration float64, documents, chunks int, status string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ingest.status", status),
		attribute.Int("ingest.documents", documents),
		attribute.Int("ingest.chunks", chunks),
	}

	m.IngestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordSearch records one hybrid search and its outcome.
func (m *Metrics) RecordSearch(duration float64, outcome string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("search.outcome", outcome),
	}

	m.SearchDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
	m.SearchOutcomes.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordDatabaseOperation records database operation metrics
func (m *Metrics) RecordDatabaseOperation(operation, collection string, success bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
		attribute.String("db.collection", collection),
		attribute.Bool("db.success", success),
	}

	m.DatabaseOperations.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
