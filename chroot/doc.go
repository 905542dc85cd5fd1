// Package chroot runs registered closures in a child process that changed
// its root to the guest filesystem.
//
// The daemon never changes its own root. Instead Run re-executes the daemon
// binary with an init argument and a SOCK_SEQPACKET socket on fd 3. The
// child is intercepted by Init before the daemon starts, receives the
// request, changes into the root, optionally installs a seccomp filter that
// denies leaving it again, runs the closure and sends back an envelope.
//
// Protocol
//
// Both messages are CBOR encoded, one datagram each.
//
//	parent -> child: request{Name, Root, Seccomp, Arg}
//	child -> parent: envelope{OK, Value | Err{Errno, Message}} + fds
//
// The child exits 0 once the envelope was sent and 1 if it could not be
// sent. Any other exit, or termination by a signal, is reported as a
// SandboxFailure, distinct from a RemoteError returned inside a successful
// envelope.
//
// Usage
//
// Closures are registered by name from package init functions. The main
// function, or an init function of the main package, must call Init first:
//
//	func init() {
//		chroot.Init()
//	}
package chroot
