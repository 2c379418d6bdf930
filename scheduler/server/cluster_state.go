package server

import (
	"fmt"
	"sort"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/scd/common/stats"
	"github.com/twitter/scd/scheduler/alg"
	"github.com/twitter/scd/scheduler/control"
	"github.com/twitter/scd/scheduler/domain"
)

// NodeConfiguration describes nodes known at startup. Names are taken as given;
// Count more nodes are generated as Prefix1..PrefixN.
type NodeConfiguration struct {
	Prefix    string
	Count     int
	Names     []string
	Slots     int
	Resources map[string]string
}

func (nc NodeConfiguration) names() []string {
	names := append([]string(nil), nc.Names...)
	for i := 1; i <= nc.Count; i++ {
		names = append(names, fmt.Sprintf("%s%d", nc.Prefix, i))
	}
	return names
}

// clusterState tracks every known node, up or down, and what each session holds.
// It implements alg.NodePool and belongs to the scheduling loop.
type clusterState struct {
	nodes map[string]*domain.Node
	names []string // sorted
	stats stats.StatsReceiver
}

var _ alg.NodePool = (*clusterState)(nil)

func newClusterState(configs []NodeConfiguration, stat stats.StatsReceiver) (*clusterState, error) {
	c := &clusterState{nodes: map[string]*domain.Node{}, stats: stat}
	for _, nc := range configs {
		resources := map[domain.ResourceType]string{}
		for k, v := range nc.Resources {
			rt := domain.ResourceType(k)
			if !rt.Valid() {
				return nil, domain.BadParameterf("node resource %q", k)
			}
			resources[rt] = v
		}
		for _, name := range nc.names() {
			if _, ok := c.nodes[name]; ok {
				return nil, domain.BadParameterf("node %s configured twice", name)
			}
			c.add(domain.NewNode(name, nc.Slots, copyResources(resources)))
		}
	}
	return c, nil
}

func copyResources(r map[domain.ResourceType]string) map[domain.ResourceType]string {
	out := make(map[domain.ResourceType]string, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (c *clusterState) add(n *domain.Node) {
	c.nodes[n.Name] = n
	c.names = append(c.names, n.Name)
	sort.Strings(c.names)
}

func (c *clusterState) Candidates(req *domain.AllocationRequest) []*domain.Node {
	var out []*domain.Node
	for _, name := range c.names {
		n := c.nodes[name]
		if n.State == domain.NodeUp && req.MatchesNode(n) {
			out = append(out, n)
		}
	}
	return out
}

func (c *clusterState) TotalNodes() int {
	return len(c.nodes)
}

func (c *clusterState) node(name string) *domain.Node {
	return c.nodes[name]
}

// update applies a node report. It returns whether capacity grew, and the sessions
// holding the node when it went down.
func (c *clusterState) update(u control.NodeUpdate) (grew bool, lost []domain.SessionID) {
	state := domain.NodeDown
	if u.Up {
		state = domain.NodeUp
	}
	n, ok := c.nodes[u.Name]
	if !ok {
		n = domain.NewNode(u.Name, u.Slots, copyResources(u.Resources))
		n.State = state
		c.add(n)
		log.WithFields(
			log.Fields{
				"node":  n.Name,
				"state": n.State,
				"slots": n.Slots,
			}).Info("Node added")
		return u.Up, nil
	}

	if u.Slots > 0 && u.Slots != n.Slots {
		grew = u.Slots > n.Slots
		n.Slots = u.Slots
	}
	if u.Resources != nil {
		n.Resources = copyResources(u.Resources)
	}
	if n.State != state {
		log.WithFields(
			log.Fields{
				"node": n.Name,
				"from": n.State,
				"to":   state,
			}).Info("Node state changed")
		if state == domain.NodeUp {
			grew = true
		} else {
			for id := range n.Sessions {
				lost = append(lost, id)
			}
			sort.Slice(lost, func(i, j int) bool { return lost[i] < lost[j] })
		}
		n.State = state
	}
	log.Debugf("Node after update: %s", spew.Sdump(n))
	return grew, lost
}

// available counts up nodes that could still take a shared session.
func (c *clusterState) available() int64 {
	var n int64
	for _, node := range c.nodes {
		if node.Usable(false) {
			n++
		}
	}
	return n
}

func (c *clusterState) reserve(id domain.SessionID, a *alg.Allocation, exclusive bool) {
	for _, name := range a.Nodes {
		if n, ok := c.nodes[name]; ok {
			n.Hold(id, a.Slots[name], exclusive)
		}
	}
}

func (c *clusterState) release(id domain.SessionID, names []string) {
	for _, name := range names {
		if n, ok := c.nodes[name]; ok {
			n.ReleaseSession(id)
		}
	}
}

// counts returns the number of up nodes and of up nodes nobody holds.
func (c *clusterState) counts() (up, idle int) {
	for _, n := range c.nodes {
		if n.State != domain.NodeUp {
			continue
		}
		up++
		if n.Idle() {
			idle++
		}
	}
	return up, idle
}

func (c *clusterState) updateStats() {
	up, idle := c.counts()
	c.stats.Gauge(stats.SchedUpNodesGauge).Update(int64(up))
	c.stats.Gauge(stats.SchedIdleNodesGauge).Update(int64(idle))
}
