// Package config provides the kvmesh-server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation (addresses, limits, level names)
//   - sanitize.go: normalization before use and logging
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// KVMESH_* environment variables and command-line flags.
package config
