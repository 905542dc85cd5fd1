package seccomp

import (
	seccompbpf "github.com/elastic/go-seccomp-bpf"
)

// Action is seccomp trap action
type Action uint32

// Action defines seccomp action to the syscall
// default value 0 is invalid
const (
	ActionAllow Action = iota + 1
	ActionErrno
	ActionKill
)

// WithReturnCode set the return code when action is errno
func (a Action) WithReturnCode(code int16) Action {
	return a.Action() | Action(code)<<16
}

// ReturnCode get the return code
func (a Action) ReturnCode() int16 {
	return int16(a >> 16)
}

// Action get the basic action
func (a Action) Action() Action {
	return Action(a & 0xffff)
}

// toBPFAction convert action to go-seccomp-bpf compatible action
func toBPFAction(a Action) seccompbpf.Action {
	var action seccompbpf.Action
	switch a.Action() {
	case ActionAllow:
		action = seccompbpf.ActionAllow
	case ActionErrno:
		action = seccompbpf.ActionErrno
	default:
		action = seccompbpf.ActionKillProcess
	}
	// the least 16 bit of ret value is SECCOMP_RET_DATA
	return action | seccompbpf.Action(uint16(a.ReturnCode()))
}
