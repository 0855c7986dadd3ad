// Package connection holds the kvmesh-cli clients: Client speaks RESP to the
// key-value listener, AdminClient reads the admin HTTP endpoint.
package connection
