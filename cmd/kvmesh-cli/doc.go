// Command kvmesh-cli is the command-line client for kvmesh-server.
//
// Arguments form one server command whose reply is printed redis-cli style.
// With no arguments an interactive prompt starts.
//
// Usage:
//
//	kvmesh-cli SET greeting "hello world"
//	kvmesh-cli -o json GET greeting
//	kvmesh-cli --addr 10.0.0.5:6378
//	kvmesh-cli status
//	kvmesh-cli config init
package main
