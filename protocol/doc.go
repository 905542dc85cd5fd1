// Package protocol defines the wire format spoken between the library and the
// daemon over the single appliance channel.
//
// # Framing
//
// Every message is a 4-byte big-endian length word followed by that many bytes
// of XDR encoded payload. A few length values are reserved as out-of-band
// flags and never denote a real length:
//
//   - LaunchFlag: sent once by the daemon when userspace is up, no body
//   - CancelFlag: either side aborts the current file transfer, no body
//   - ProgressFlag: followed by a fixed ProgressLen byte Progress body
//
// # Calls
//
// A call is a Header followed by the procedure arguments. A reply is a Header
// echoing the procedure and serial followed by either the return value
// (StatusOK) or an ErrorReply (StatusError).
//
// # Files
//
// FileIn / FileOut parameters are streamed after the call (FileIn) or after
// the reply (FileOut) as a sequence of Chunk frames. An empty chunk ends the
// stream, a chunk with Cancel set aborts it.
package protocol
