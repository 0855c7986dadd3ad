// Package command provides CLI command definitions for kvmesh-cli.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: root command, global flags, one-shot and REPL modes
//   - session.go: the RESP connection behind both modes
//   - admin.go: status and ready against the admin HTTP listener
//   - config.go: show and init of ~/.kvmesh/cli.yaml
//
// Arguments after the global flags form a single server command. With no
// arguments the interactive prompt starts.
package command
