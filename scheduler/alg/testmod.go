package alg

import (
	"github.com/pkg/errors"

	"github.com/twitter/scd/scheduler/domain"
)

const TestName = "test"

// testModule answers every Allocate the same way, picked by the "test.result"
// param: "succeed" (the default) takes the first MinNodes candidates regardless of
// use, "busy" fails with insufficient resources, "never" fails as unsatisfiable.
type testModule struct {
	result string
	inits  int
}

func queryTest(cfg Config) (Module, bool) {
	result := cfg.Param("test.result", "succeed")
	switch result {
	case "succeed", "busy", "never":
		return &testModule{result: result}, true
	}
	return nil, false
}

func (m *testModule) Init() error {
	m.inits++
	return nil
}

func (m *testModule) Finalize() {}

func (m *testModule) Allocate(req *domain.AllocationRequest, pool NodePool) (*Allocation, error) {
	switch m.result {
	case "busy":
		return nil, errors.Wrap(domain.ErrInsufficientResources, "test module is busy")
	case "never":
		return nil, errors.Wrap(domain.ErrUnsatisfiable, "test module never allocates")
	}
	alloc := &Allocation{ID: generateAllocationID(), Slots: map[string]int{}}
	for _, n := range pool.Candidates(req) {
		if uint64(len(alloc.Nodes)) == req.MinNodes {
			break
		}
		alloc.Nodes = append(alloc.Nodes, n.Name)
		alloc.Slots[n.Name] = 1
	}
	return alloc, nil
}
