// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access to a running crawl. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for a snapshot of the crawl loop.
//   - GET /v1/domains for per-domain queue depth and learned score state.
package api
