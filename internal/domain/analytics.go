package domain

import "context"

// AnalyticsSink captures product analytics events. Delivery is best-effort
// and non-blocking for the caller; failures must never affect the operation
// that produced the event.
type AnalyticsSink interface {
	Capture(ctx context.Context, distinctID, event string, properties map[string]any)
}
