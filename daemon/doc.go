// Package daemon implements the call loop of the guest daemon.
//
// Serve reads one call at a time from the channel, validates its header,
// routes it to a registered Procedure and writes back exactly one reply or
// error reply. Out of band frames share the channel:
//
//	CancelFlag    either side aborts a file transfer
//	ProgressFlag  progress notification during a call
//	LaunchFlag    sent once by the daemon when it is ready
//
// File transfer
//
// A FileIn procedure consumes a chunk stream following its arguments with
// ReceiveFile. When the local sink fails, a cancel flag is sent and the rest
// of the stream is drained so both ends stay in step. A FileOut procedure
// replies first, then streams chunks with FileWriter. Before each chunk the
// channel is polled without blocking for a cancel flag from the library.
//
// Progress
//
// NotifyProgress is rate limited per call: nothing is sent before an initial
// delay after the call started and then at most once per period, except
// that position == total always goes out once anything was sent. Pulse
// sends a precomputed position 0 of 1 frame periodically while the call is
// blocked in a subprocess.
package daemon
