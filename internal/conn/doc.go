// Package conn implements the single point of interaction with one tool
// provider's stdio: it frames the output stream, allocates request ids,
// correlates responses to pending requests, and routes notifications.
package conn
