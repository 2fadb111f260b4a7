// Package protocol groups the wire contract used by the point-to-point
// transfer layer.
//
// Ownership boundary:
// - frame: fixed header + payload framing
// - tlv: payload field primitives
// - schema: required-field validation of data envelopes
// - session: TCP link establishment and the hello handshake
package protocol
