// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/ingest for crawler batches.
//   - /v1/projects/{project_id}/jobs and /v1/jobs/{job_id}/... for crawl jobs
//     and their scores, issues, quick wins, and platform readiness.
//   - /v1/projects/{project_id}/competitors and
//     /v1/competitors/{competitor_id}/events for competitor monitoring.
package api
