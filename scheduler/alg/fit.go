package alg

import (
	"github.com/pkg/errors"

	"github.com/twitter/scd/scheduler/domain"
)

const (
	FirstFitName = "firstfit"
	GreedyName   = "greedy"
)

// fitModule walks the candidate nodes in name order and takes usable ones. First
// fit stops as soon as the minimums are met; greedy keeps going up to the maximums.
type fitModule struct {
	grow bool
}

func queryFirstFit(Config) (Module, bool) {
	return &fitModule{}, true
}

func queryGreedy(cfg Config) (Module, bool) {
	return &fitModule{grow: true}, cfg.Param("greedy", "true") != "false"
}

func NewFirstFit() Module { return &fitModule{} }

func NewGreedy() Module { return &fitModule{grow: true} }

func (m *fitModule) Init() error { return nil }

func (m *fitModule) Finalize() {}

func (m *fitModule) Allocate(req *domain.AllocationRequest, pool NodePool) (*Allocation, error) {
	candidates := pool.Candidates(req)
	if err := satisfiable(req, candidates); err != nil {
		return nil, err
	}

	maxNodes, maxPEs := req.MinNodes, req.MinPEs
	if m.grow {
		maxNodes, maxPEs = req.MaxNodes, req.MaxPEs
		if maxNodes < req.MinNodes {
			maxNodes = req.MinNodes
		}
		if maxPEs < req.MinPEs {
			maxPEs = req.MinPEs
		}
	}

	alloc := &Allocation{Slots: map[string]int{}}
	var pes uint64
	for _, n := range candidates {
		if uint64(len(alloc.Nodes)) >= maxNodes || (maxPEs > 0 && pes >= maxPEs && uint64(len(alloc.Nodes)) >= req.MinNodes) {
			break
		}
		if !n.Usable(req.Exclusive) {
			continue
		}
		take := n.FreeSlots()
		if !req.Exclusive {
			// Shared nodes give only what is still needed, but at least one slot.
			need := uint64(1)
			if maxPEs > pes+1 {
				need = maxPEs - pes
			}
			if uint64(take) > need {
				take = int(need)
			}
		}
		alloc.Nodes = append(alloc.Nodes, n.Name)
		alloc.Slots[n.Name] = take
		pes += uint64(take)
	}

	if uint64(len(alloc.Nodes)) < req.MinNodes || pes < req.MinPEs {
		return nil, errors.Wrapf(domain.ErrInsufficientResources,
			"found %d nodes and %d slots, want %d nodes and %d slots", len(alloc.Nodes), pes, req.MinNodes, req.MinPEs)
	}
	alloc.ID = generateAllocationID()
	return alloc, nil
}

// satisfiable fails permanently when even an idle cluster could not hold req.
func satisfiable(req *domain.AllocationRequest, candidates []*domain.Node) error {
	slots := uint64(0)
	for _, n := range candidates {
		slots += uint64(n.Slots)
	}
	if uint64(len(candidates)) < req.MinNodes {
		return errors.Wrapf(domain.ErrUnsatisfiable, "only %d matching nodes, want %d", len(candidates), req.MinNodes)
	}
	if slots < req.MinPEs {
		return errors.Wrapf(domain.ErrUnsatisfiable, "only %d matching slots, want %d", slots, req.MinPEs)
	}
	return nil
}
