// Package main hosts the vacancy crawler service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, vacancy and company lookups, scan control, and run
//     history. Scan requests are handed to the controller and answered with 202 plus a run ID; everything under /v1
//     can be gated behind a shared API key.
//   - Scan pipeline: internal/scan.Controller serializes background scans so at most one runs at a time. The scanner
//     walks vacancy IDs forward strictly one at a time, pausing a fixed per-process delay between IDs; the processor
//     drives each ID through fetch, parse, company resolution, and persistence with a shared retry budget, since the
//     dominant failure mode is a posting that is not published yet.
//   - Company resolution & enrichment: internal/resolve maps scraped employer names onto company rows, searching the
//     source site once per unknown name before creating a row. The optional enricher revisits company detail pages
//     with headless Chrome to backfill phones, e-mail, website, and address, which only render from script.
//   - Persistence & fanout: vacancies, companies, and scan runs live in Postgres via pgx (in-memory stores stand in
//     when no DSN is configured). Raw HTML snapshots go to the configured archive backend (memory/local/GCS), a
//     compact Pub/Sub announcement is published per stored vacancy when a topic is configured, and progress events
//     are batched through the hub into the run store, Prometheus, and optionally the log.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via middleware and the /metrics handler; the cron scheduler can kick off an unbounded
//     scan at a fixed interval.
//
// Operational notes:
//   - Concurrency model: exactly one in-flight fetch per scan; the source's rate-limiting tolerance is the shared
//     bottleneck, so there is no worker pool to widen. Headless fetches have their own semaphore inside the Chromedp
//     fetcher. Shutdown is coordinated via context cancellation from main through the controller to the active run.
//   - Pacing: the delay between IDs is drawn once per process as a whole number of seconds within the configured
//     bounds; retry backoff scales the same delay linearly per attempt.
//   - Observability: zap logs carry run IDs and vacancy IDs at key transitions; Prometheus counters/histograms track
//     fetch outcomes, retries, resolutions, enrichment, and HTTP traffic; the progress hub batches run lifecycle
//     events for downstream sinks.
//   - Deployment: the HTTP server listens on the configured port, health endpoints (/healthz, /readyz) remain
//     lightweight, and the process reacts to SIGTERM by stopping the scheduler, canceling the active scan, and
//     flushing the progress hub before the stores close.
//
// Quick checklist:
//   - Configure env vars: CRAWLER_SERVER_PORT, CRAWLER_SOURCE_BASE_URL, CRAWLER_DATABASE_DSN for persistence,
//     CRAWLER_SCAN_* for pacing and retries, CRAWLER_ARCHIVE_* for snapshots, CRAWLER_PUBLISHER_* for announcements,
//     CRAWLER_ENRICH_ENABLED and CRAWLER_SCHEDULE_ENABLED for the background jobs.
//   - Run locally: go run ./cmd/vacancycrawler -config config.yaml (or rely solely on env overrides).
//   - A scan can be started by hand with POST /v1/scans, watched with GET /v1/scans/current, and stopped with
//     DELETE /v1/scans/current; GET /v1/runs lists finished runs.
package main
