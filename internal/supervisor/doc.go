// Package supervisor owns one tool server's full lifecycle and is the unit
// of failure isolation: one server's spawn, handshake, or runtime failure
// never touches a sibling's state.
package supervisor
