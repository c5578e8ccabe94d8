// Package protocol implements the fixed-width control frames exchanged between
// kubeport clients and a running daemon.
//
// Every frame is exactly four bytes: a record separator, a channel tag, a
// kind code, and a closing record separator. Requests and responses share tag
// value 1 on the wire, so the decoders are direction specific: a request
// decoder never accepts a response code and vice versa. Frames that do not
// match a registered kind are reported as UnknownFrameError and are never
// coerced into a known kind.
package protocol
