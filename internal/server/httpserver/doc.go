// Package httpserver serves the kvmesh admin HTTP endpoint.
//
// Routes:
//
//   - GET /health: liveness, always 200 while the process runs
//   - GET /ready: 200 once the RESP listener accepts connections, 503 otherwise
//   - GET /status: keyspace and connection summary
//   - GET /metrics: Prometheus exposition
//
// Every route runs behind RequestID, Recover and, when enabled, AccessLog
// and a per-IP RateLimit.
package httpserver
