package node

import "fmt"

// MessageID carries request/response correlation across the wire.
//
// The zero value means "no correlation" and is distinct from a request
// with correlation id 0: requests and responses carry a flag bit in
// addition to the 62-bit id.
type MessageID uint64

const (
	midRequestFlag  MessageID = 1 << 63
	midResponseFlag MessageID = 1 << 62
	midIDMask       MessageID = midResponseFlag - 1
)

const NoMessageID MessageID = 0

func MakeRequest(id uint64) MessageID {
	return midRequestFlag | (MessageID(id) & midIDMask)
}

func (m MessageID) IsRequest() bool  { return m&midRequestFlag != 0 }
func (m MessageID) IsResponse() bool { return m&midResponseFlag != 0 }

func (m MessageID) ID() uint64 { return uint64(m & midIDMask) }

// ResponseTo derives the response id matching a request id.
func (m MessageID) ResponseTo() MessageID {
	return midResponseFlag | (m & midIDMask)
}

func (m MessageID) String() string {
	switch {
	case m == NoMessageID:
		return "mid(none)"
	case m.IsRequest():
		return fmt.Sprintf("mid(req %d)", m.ID())
	case m.IsResponse():
		return fmt.Sprintf("mid(resp %d)", m.ID())
	default:
		return fmt.Sprintf("mid(%d)", m.ID())
	}
}
