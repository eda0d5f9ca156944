// Package handlers contains reusable HTTP building blocks for the dashboard API:
// health checks and middleware.
//
// # Health Checks
//
// The HealthChecker interface runs named checks in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("postgres", handlers.NewPingCheck(conn))
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//
//	status := checker.Check(ctx)
//
// # Admin Authentication
//
// Write endpoints are guarded by APIKeyAuth, which compares the X-API-Key
// header (or a Bearer token) against configured bcrypt hashes:
//
//	hash, _ := handlers.HashKey("s3cret")
//	auth := handlers.NewAPIKeyAuth("X-API-Key", hash)
//	mux.Handle("POST /api/v1/ninjas", auth.Middleware(create))
package handlers
