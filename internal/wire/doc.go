// Package wire defines the line protocol spoken with tool provider
// processes: JSON-RPC 2.0 objects, one per newline-terminated line.
//
// Inbound lines are decoded once into a tagged Message so downstream code
// switches on Message.Kind instead of probing fields at every use site.
package wire
