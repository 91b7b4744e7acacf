// Package errors implements the three-class error classification used across the bridge:
// Transient (retry may help), Invalid (bad input or registration, do not retry) and Fatal
// (stop processing).
//
// # Error Wrapping Pattern
//
// Wrapping follows the format
//
//	"component.method: action failed: %w"
//
// and the classified wrappers keep the original chain intact, so both
//
//	errors.Is(err, errors.ErrConnection)
//	errors.IsTransient(err)
//
// work on the same value.
//
// # Bridge Taxonomy
//
//   - ErrConfiguration: a registrant lacks a capability or registers too late. Returned by the
//     Register* calls, classified Invalid.
//   - ErrConnection: the socket could not be opened or the handshake could not be sent. Returned
//     by Connect, classified Transient so callers can feed it to a retry policy.
//   - ErrProtocolDecode: a received frame was malformed or carried an unsupported op. Logged on
//     the receive loop and dropped, never returned to a caller.
//   - ErrTeardownSend: an unsubscribe or unadvertise frame could not be sent during Disconnect.
//     Logged, teardown continues.
package errors
