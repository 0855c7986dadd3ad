// Package output renders kvmesh-cli results.
//
// Replies print redis-cli style in text mode ("(integer) 1", "(nil)",
// numbered array elements), unquoted in raw mode, or as JSON/YAML documents.
// Structs and maps print as FIELD/VALUE tables in text mode.
package output
