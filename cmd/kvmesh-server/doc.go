// Command kvmesh-server runs the kvmesh key-value server.
//
// It serves a RESP2 (Redis protocol) listener over an in-memory sharded
// keyspace with per-key expiry, and an optional admin HTTP endpoint for
// health checks and Prometheus metrics.
//
// Usage:
//
//	kvmesh-server [--config kvmesh.yaml] [--addr 127.0.0.1:6378] [--log-level debug]
//	kvmesh-server check-config --config kvmesh.yaml
//	kvmesh-server version
//
// Configuration is layered: defaults, the YAML file, .env, KVMESH_*
// environment variables, then flags. Changes to log.level in the config
// file apply without a restart.
package main
