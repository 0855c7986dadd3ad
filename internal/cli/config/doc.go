// Package config holds kvmesh-cli defaults persisted in ~/.kvmesh/cli.yaml.
//
// Values in the file act as defaults for the matching command-line flags.
// Explicit flags and KVMESH_* environment variables always win.
package config
