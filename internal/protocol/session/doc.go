// Package session establishes framed links between two ranks over TCP.
//
// A link starts with one JSON line each way: the dialer sends a hello with its
// rank, frame version, and datatype table; the listener answers with an ack.
// Only after an accepted ack does the connection carry frames.
package session
