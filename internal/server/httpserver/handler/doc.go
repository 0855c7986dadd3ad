// Package handler implements the admin HTTP endpoints. JSON responses use
// the Response envelope.
package handler
