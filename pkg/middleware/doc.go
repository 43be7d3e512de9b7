// Package middleware authenticates API callers and rate limits them.
//
// AuthMiddleware turns a bearer session token into an *authz.Actor:
//
//	authn := middleware.NewAuthMiddleware(sessionStore, actorProvider, log)
//	v1.Use(authn.Handler)
//
// Rejected, expired and revoked sessions get a 401. Users deactivated after
// their session was issued are rejected the same way.
//
// RateLimitMiddleware keys authenticated callers by actor id and anonymous
// callers by client IP. Two Limiter implementations exist: RateLimiter keeps a
// token bucket per key in process memory, DistributedRateLimiter keeps a
// fixed window counter in Redis so every replica shares one budget.
//
//	limits := middleware.NewRateLimitMiddleware(
//		middleware.NewDistributedRateLimiter(rdb, middleware.PerActorRateLimitConfig(), "fieldops:ratelimit:actor"),
//		middleware.NewDistributedRateLimiter(rdb, middleware.DefaultRateLimitConfig(), "fieldops:ratelimit:anon"),
//		true, log)
//
// Defaults: anonymous 100 req/min with 10 burst, actors 1000 req/min with 50
// burst.
package middleware
