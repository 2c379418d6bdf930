// Package alg defines the allocation algorithm plugged into the scheduler, and the
// algorithms that ship with it.
package alg

//go:generate mockgen -source=module.go -package=alg -destination=module_mock.go

import (
	"fmt"
	"sort"
	"strings"

	uuid "github.com/nu7hatch/gouuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/scd/scheduler/domain"
)

// Allocation is the result of a successful Allocate: which nodes a session gets and
// how many slots on each.
type Allocation struct {
	ID    string
	Nodes []string
	Slots map[string]int
}

func (a *Allocation) String() string {
	return fmt.Sprintf("allocation %s: nodes:%v", a.ID, a.Nodes)
}

// NodePool is the read-only view of the cluster an algorithm allocates from.
type NodePool interface {
	// Candidates returns the up nodes acceptable to req, busy or not, sorted by name.
	Candidates(req *domain.AllocationRequest) []*domain.Node

	// TotalNodes counts every known node regardless of state.
	TotalNodes() int
}

// Module is an allocation algorithm. Allocate runs on the scheduling loop and must
// not block or modify the pool; reserving the returned nodes is the caller's job.
//
// Allocate failures wrap domain.ErrInsufficientResources when the request may fit
// later, and domain.ErrUnsatisfiable when it never will.
type Module interface {
	Init() error
	Finalize()
	Allocate(req *domain.AllocationRequest, pool NodePool) (*Allocation, error)
}

// Config is handed to every component's Query.
type Config struct {
	Params map[string]string
}

func (c Config) Param(key, def string) string {
	if v, ok := c.Params[key]; ok {
		return v
	}
	return def
}

// Component offers a Module. Query returns the module and true when the component
// accepts the configuration.
type Component struct {
	Name     string
	Priority int
	// Only considered when named in the include list.
	Explicit bool
	Query    func(Config) (Module, bool)
}

// DefaultComponents lists every algorithm built into the daemon.
func DefaultComponents() []Component {
	return []Component{
		{Name: FirstFitName, Priority: 50, Query: queryFirstFit},
		{Name: GreedyName, Priority: 40, Query: queryGreedy},
		{Name: TestName, Priority: 0, Explicit: true, Query: queryTest},
	}
}

// Select picks the highest priority component that accepts cfg and initializes
// its module. Components of equal priority are tried in the order given. A
// non-empty include restricts the search to the named components.
func Select(components []Component, include []string, cfg Config) (Module, string, error) {
	sorted := append([]Component(nil), components...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	wanted := map[string]bool{}
	for _, name := range include {
		wanted[name] = true
	}
	for _, c := range sorted {
		if len(include) > 0 && !wanted[c.Name] {
			continue
		}
		if c.Explicit && !wanted[c.Name] {
			continue
		}
		m, ok := c.Query(cfg)
		if !ok {
			log.Debugf("algorithm %s declined", c.Name)
			continue
		}
		if err := m.Init(); err != nil {
			return nil, "", errors.Wrapf(err, "initializing algorithm %s", c.Name)
		}
		log.Infof("selected algorithm %s (priority %d)", c.Name, c.Priority)
		return m, c.Name, nil
	}
	return nil, "", fmt.Errorf("no algorithm accepted the configuration, include:[%s]", strings.Join(include, ","))
}

func generateAllocationID() string {
	// uuid.NewV4 only fails if the system random source does.
	for {
		if id, err := uuid.NewV4(); err == nil {
			return id.String()
		}
	}
}
