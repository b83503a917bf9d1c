// Package subprocess spawns and owns one tool provider process.
//
// Process exposes the child's stdout as a raw stream and its stdin as a
// line-oriented writer; message framing and correlation live in the conn
// package. Stderr is captured (capped) so abnormal exits carry the
// provider's own diagnostics.
package subprocess
