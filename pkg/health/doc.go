// Package health runs named readiness checks and serves liveness and
// readiness probes.
//
// Checks are plain func(context.Context) error values. Run executes them in
// parallel under a shared timeout and aggregates the result:
//
//	resp := health.Run(ctx, health.Checks{
//	    "db":    pingDB,
//	    "queue": pingQueue,
//	}, health.WithTimeout(2*time.Second))
//
// LivenessHandler and ReadinessHandler wrap the same logic as plain
// http.HandlerFuncs. They answer "OK" / "Service Unavailable" as text, or the
// Response as JSON when the client sends Accept: application/json or
// ?format=json.
package health
