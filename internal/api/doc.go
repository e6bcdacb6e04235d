// Package api hosts the HTTP server, middleware, and REST handlers for
// collaborators and operators. Notable routes:
//   - GET /healthz and /readyz for probes, GET /metrics for Prometheus.
//   - /v1/vacancies for lookups and interactive single-ID processing.
//   - /v1/scans and /v1/runs for scan control and run history.
//   - POST /v1/companies/enrich for the contact backfill batch.
package api
