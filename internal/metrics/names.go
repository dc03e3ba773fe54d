package metrics

// Metric names follow Prometheus conventions: persist_{component}_{metric}_{unit}.
const (
	MetricCacheOperationsTotal   = "persist_cache_operations_total"
	MetricCacheOperationDuration = "persist_cache_operation_duration_seconds"
	MetricReaperRunsTotal        = "persist_reaper_runs_total"
	MetricReaperRemovedTotal     = "persist_reaper_removed_records_total"
	MetricHTTPRequestsTotal      = "persist_http_requests_total"
)

// Label names.
const (
	LabelOperation = "operation"
	LabelOutcome   = "outcome"
	LabelMethod    = "method"
	LabelStatus    = "status"
)

// Operation outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)
