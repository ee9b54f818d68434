// Package node defines the identifier types shared by all layers of the
// actornet transport: node ids, actor ids, addresses, message correlation
// ids and exit reasons.
package node

import (
	"fmt"

	"github.com/google/uuid"
)

// ID identifies a participating runtime process. It is immutable once
// assigned and compared by value. The zero value is invalid.
type ID [16]byte

var InvalidID = ID{}

// NewID generates a fresh globally unique node id.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses the canonical UUID string representation.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return InvalidID, err
	}
	return ID(u), nil
}

func (id ID) IsValid() bool { return id != InvalidID }

func (id ID) String() string {
	if !id.IsValid() {
		return "invalid-node"
	}
	return uuid.UUID(id).String()
}

// ActorID is unique within its owning node. 0 marks "no actor".
type ActorID uint64

const InvalidActorID ActorID = 0

func (a ActorID) IsValid() bool { return a != InvalidActorID }

// Address is a logical actor reference: the owning node plus the actor's
// id on that node. An Address whose Node equals the local node never
// resolves to a proxy, it resolves through the local actor directory.
type Address struct {
	Node  ID
	Actor ActorID
}

var InvalidAddress = Address{}

func (a Address) IsValid() bool {
	return a.Node.IsValid() && a.Actor.IsValid()
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%d", a.Node, uint64(a.Actor))
}

// Recipient is anything that can accept a message envelope: a local actor
// handle resolved through the directory, or a proxy standing in for a
// remote actor.
type Recipient interface {
	Addr() Address
	Enqueue(src Address, mid MessageID, payload []byte)
}
