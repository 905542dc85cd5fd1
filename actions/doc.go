// Package actions implements the procedures served by the daemon on top of
// the call, sandbox and chroot primitives. Every procedure decodes its XDR
// arguments, validates them against the guest root state and replies once.
package actions
