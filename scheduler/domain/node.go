package domain

import (
	"fmt"
)

type NodeState int

const (
	NodeDown NodeState = iota
	NodeUp
)

func (s NodeState) String() string {
	if s == NodeUp {
		return "UP"
	}
	return "DOWN"
}

// Node is a schedulable host. Slots are its processing elements.
type Node struct {
	Name      string
	State     NodeState
	Slots     int
	UsedSlots int
	Exclusive bool // held by a single session that asked for exclusivity
	Resources map[ResourceType]string
	Sessions  map[SessionID]int // slots held, by session
}

func NewNode(name string, slots int, resources map[ResourceType]string) *Node {
	if slots < 1 {
		slots = 1
	}
	if resources == nil {
		resources = map[ResourceType]string{}
	}
	return &Node{
		Name:      name,
		State:     NodeUp,
		Slots:     slots,
		Resources: resources,
		Sessions:  map[SessionID]int{},
	}
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s, %d/%d slots, exclusive:%t)", n.Name, n.State, n.UsedSlots, n.Slots, n.Exclusive)
}

func (n *Node) Idle() bool {
	return len(n.Sessions) == 0
}

func (n *Node) FreeSlots() int {
	if n.Exclusive {
		return 0
	}
	return n.Slots - n.UsedSlots
}

// Usable reports whether a session wanting exclusive (or shared) access could get
// at least one slot here.
func (n *Node) Usable(exclusive bool) bool {
	if n.State != NodeUp || n.Exclusive {
		return false
	}
	if exclusive {
		return n.Idle()
	}
	return n.FreeSlots() > 0
}

// Hold reserves slots for a session. Exclusive holds take every slot.
func (n *Node) Hold(id SessionID, slots int, exclusive bool) {
	if exclusive {
		slots = n.Slots - n.UsedSlots
		n.Exclusive = true
	}
	n.Sessions[id] += slots
	n.UsedSlots += slots
}

// ReleaseSession frees whatever the session holds. Releasing a session that holds
// nothing is a no-op.
func (n *Node) ReleaseSession(id SessionID) {
	slots, ok := n.Sessions[id]
	if !ok {
		return
	}
	delete(n.Sessions, id)
	n.UsedSlots -= slots
	if n.UsedSlots < 0 {
		n.UsedSlots = 0
	}
	n.Exclusive = false
}
