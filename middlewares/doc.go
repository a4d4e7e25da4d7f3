// Package middlewares provides HTTP middleware for Keel applications.
//
// Application middleware wraps every request, including unmatched ones that
// end in 404 or 405. Errors returned by middleware go through the same
// exception handlers as handler errors.
//
// # Request ID
//
// RequestID assigns a unique ID to each request for tracing and debugging.
// It checks incoming headers for existing IDs or generates a UUIDv7.
// The ID is echoed in the X-Request-ID response header and in rendered
// error documents.
//
// Use RequestIDExtractor() with WithLogger for automatic request_id in all logs:
//
//	app := keel.New(
//	    keel.WithLogger("api", middlewares.RequestIDExtractor()),
//	    keel.WithMiddleware(
//	        middlewares.RequestID(),
//	    ),
//	)
//
// # Recover
//
// Recover catches panics raised by the middleware it wraps and converts them
// to a PanicError, handled by exception handlers registered for keel.KindPanic:
//
//	app := keel.New(
//	    keel.WithMiddleware(middlewares.Recover()),
//	    keel.WithExceptionHandler(keel.KindPanic, func(c keel.Context, err error) error {
//	        return c.JSON(500, map[string]string{"message": "something broke"})
//	    }),
//	)
//
// # Timeout
//
// Timeout puts a deadline on the request context and returns a TimeoutError
// (503, keel.KindTimeout) when it passes.
// The handler is never abandoned: it runs to completion, so watch ctx.Done()
// to return early once the deadline passes.
//
// # CORS
//
// CORS handles Cross-Origin Resource Sharing headers and answers preflight
// requests:
//
//	app := keel.New(
//	    keel.WithMiddleware(
//	        middlewares.CORS(
//	            middlewares.WithAllowOrigins("https://app.example.com", "https://*.example.com"),
//	            middlewares.WithAllowCredentials(),
//	        ),
//	    ),
//	)
//
// # Access Log
//
// AccessLog writes one structured entry per request through the request
// logger, so extractors such as RequestIDExtractor apply.
//
// # Recommended Middleware Order
//
//	keel.WithMiddleware(
//	    middlewares.CORS(),                 // handle preflight before other processing
//	    middlewares.RequestID(),            // assign ID for all subsequent logging
//	    middlewares.AccessLog(),            // log with the final status
//	    middlewares.Recover(),              // catch panics from inner middleware
//	    middlewares.Timeout(5*time.Second), // enforce timeout
//	)
package middlewares
