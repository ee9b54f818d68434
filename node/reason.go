package node

import "fmt"

// Reason encodes why an actor or proxy terminated. It travels in the
// operation data field of kill-proxy frames.
type Reason uint64

const (
	// ReasonNotExited is the sentinel for "still alive".
	ReasonNotExited Reason = iota
	ReasonNormal
	ReasonKill
	// ReasonRemoteLinkUnreachable is used when the connection to the
	// proxy's home node is lost.
	ReasonRemoteLinkUnreachable
	// ReasonDisconnect resolves handshakes that were pending when the
	// connection closed.
	ReasonDisconnect
)

func (r Reason) String() string {
	switch r {
	case ReasonNotExited:
		return "not_exited"
	case ReasonNormal:
		return "normal"
	case ReasonKill:
		return "kill"
	case ReasonRemoteLinkUnreachable:
		return "remote_link_unreachable"
	case ReasonDisconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("reason(%d)", uint64(r))
	}
}
