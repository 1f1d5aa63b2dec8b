// Package api exposes the reconciler over HTTP: node agents push load
// reports, operators read the status summary and request manual scaling,
// and Prometheus scrapes /metrics.
//
// Routes:
//
//	POST /v1/report     load report from a node agent (202)
//	POST /v1/scale      manual scale request (200, 400 for invalid requests)
//	GET  /v1/status     reconciler summary
//	POST /v1/reconcile  run one tick now and return its decision
//	GET  /metrics       Prometheus metrics
//	GET  /healthz       liveness
//
// Client is the matching client used by the CLI.
package api
