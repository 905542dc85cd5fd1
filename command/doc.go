// Package command runs external tools for the daemon.
//
// Exec
//
// Exec starts a command with stdin from /dev/null (or a given file) and
// captures stdout and stderr separately into bounded buffers. Trailing
// newlines are stripped from stderr so it can be used as an error message.
// When Cmd.Root is set the child chroots into it before exec, and the
// program is looked up in PATH relative to that root.
//
// Sandbox
//
// Sandbox runs a command chrooted into the mounted guest root. It bind
// mounts /dev, /dev/pts, /proc and /sys under the root first, tolerating
// individual failures, and unmounts exactly the ones that succeeded in
// reverse order once the command finished, whatever its outcome.
package command
