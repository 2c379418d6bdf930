// Package domain defines the sessions, allocation requests, steps and nodes the
// scheduler works on, their lifecycle states, and the scheduler's error taxonomy.
package domain

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type ResourceType string

// MaxNodeCount bounds the node counts of a request.
const MaxNodeCount = 1 << 24

const (
	ResourceMemory    ResourceType = "MEMORY"
	ResourceCPU       ResourceType = "CPU"
	ResourceBandwidth ResourceType = "BANDWIDTH"
	ResourceImage     ResourceType = "IMAGE"
)

func (t ResourceType) Valid() bool {
	switch t {
	case ResourceMemory, ResourceCPU, ResourceBandwidth, ResourceImage:
		return true
	}
	return false
}

// ResourceConstraint restricts the nodes a request may use. Expression is an
// optional comparison operator followed by a value, ex: ">=64" or "=centos7".
// Numeric types compare numerically; IMAGE only supports = and !=.
type ResourceConstraint struct {
	Type       ResourceType
	Expression string
}

func (c ResourceConstraint) String() string {
	return fmt.Sprintf("%s%s", c.Type, c.Expression)
}

var constraintOps = []string{">=", "<=", "!=", "==", ">", "<", "="}

func (c ResourceConstraint) parse() (op string, value string, err error) {
	expr := strings.TrimSpace(c.Expression)
	op = "="
	for _, candidate := range constraintOps {
		if strings.HasPrefix(expr, candidate) {
			op = candidate
			expr = strings.TrimSpace(expr[len(candidate):])
			break
		}
	}
	if op == "==" {
		op = "="
	}
	if expr == "" {
		return "", "", BadParameterf("constraint %s has no value", c.Type)
	}
	if c.Type == ResourceImage {
		if op != "=" && op != "!=" {
			return "", "", BadParameterf("constraint %s only supports = and !=, got %q", c.Type, op)
		}
		return op, expr, nil
	}
	if _, err := strconv.ParseFloat(expr, 64); err != nil {
		return "", "", BadParameterf("constraint %s needs a numeric value, got %q", c.Type, expr)
	}
	return op, expr, nil
}

// Validate checks the type and expression syntax.
func (c ResourceConstraint) Validate() error {
	if !c.Type.Valid() {
		return BadParameterf("invalid constraint type %q", c.Type)
	}
	_, _, err := c.parse()
	return err
}

// Matches reports whether a node's advertised resource satisfies the constraint.
// A node that doesn't advertise the resource never matches.
func (c ResourceConstraint) Matches(n *Node) bool {
	have, ok := n.Resources[c.Type]
	if !ok {
		return false
	}
	op, want, err := c.parse()
	if err != nil {
		return false
	}
	if c.Type == ResourceImage {
		return (op == "=") == (have == want)
	}
	h, err := strconv.ParseFloat(have, 64)
	if err != nil {
		return false
	}
	w, _ := strconv.ParseFloat(want, 64)
	switch op {
	case ">=":
		return h >= w
	case "<=":
		return h <= w
	case ">":
		return h > w
	case "<":
		return h < w
	case "!=":
		return h != w
	default:
		return h == w
	}
}

// AllocationRequest is what a requestor asks for. It must not be modified once the
// session owning it has been submitted; narrowed copies are made for steps.
type AllocationRequest struct {
	Priority int32
	Account  string
	Name     string // project
	GID      int32

	MinNodes uint64
	MaxNodes uint64
	MinPEs   uint64
	MaxPEs   uint64

	Begin     time.Time     // desired start, zero for as soon as possible
	Walltime  time.Duration // zero for no limit
	Exclusive bool          // nodes are not shared with other sessions

	Nodefile string   // file listing candidate node names or patterns
	Nodes    string   // comma separated candidate node names or glob patterns
	Queues   []string // target queues in order of preference

	Constraints []ResourceConstraint

	// Expected power draw in watts. Zero means estimate it from the node count.
	Power int64
}

func (r *AllocationRequest) String() string {
	return fmt.Sprintf("priority:%d, account:%s, name:%s, nodes:[%d,%d], pes:[%d,%d], walltime:%s, exclusive:%t, queues:%v",
		r.Priority, r.Account, r.Name, r.MinNodes, r.MaxNodes, r.MinPEs, r.MaxPEs, r.Walltime, r.Exclusive, r.Queues)
}

// Copy returns a deep copy, used when a step narrows its allocation.
func (r *AllocationRequest) Copy() *AllocationRequest {
	c := *r
	c.Queues = append([]string(nil), r.Queues...)
	c.Constraints = append([]ResourceConstraint(nil), r.Constraints...)
	return &c
}

// Normalize fills unset upper bounds from the lower bounds.
func (r *AllocationRequest) Normalize() {
	if r.MaxNodes == 0 {
		r.MaxNodes = r.MinNodes
	}
	if r.MaxPEs == 0 {
		r.MaxPEs = r.MinPEs
	}
}

// Validate rejects requests that can never enter the state machine.
func (r *AllocationRequest) Validate() error {
	if r.MinNodes == 0 {
		return BadParameterf("min nodes must be at least 1")
	}
	if r.MinNodes > MaxNodeCount || r.MaxNodes > MaxNodeCount {
		return BadParameterf("node count above %d", MaxNodeCount)
	}
	if r.MaxNodes != 0 && r.MaxNodes < r.MinNodes {
		return BadParameterf("max nodes %d is less than min nodes %d", r.MaxNodes, r.MinNodes)
	}
	if r.MaxPEs != 0 && r.MaxPEs < r.MinPEs {
		return BadParameterf("max pes %d is less than min pes %d", r.MaxPEs, r.MinPEs)
	}
	if r.Walltime < 0 {
		return BadParameterf("negative walltime %s", r.Walltime)
	}
	if r.Power < 0 {
		return BadParameterf("negative power %d", r.Power)
	}
	for _, c := range r.Constraints {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, p := range r.NodePatterns() {
		if _, err := path.Match(p, ""); err != nil {
			return BadParameterf("invalid node pattern %q", p)
		}
	}
	for _, q := range r.Queues {
		if strings.TrimSpace(q) == "" {
			return BadParameterf("empty queue name")
		}
	}
	return nil
}

// NodePatterns splits Nodes into its non-empty elements.
func (r *AllocationRequest) NodePatterns() []string {
	return SplitList(r.Nodes)
}

// MatchesNode reports whether the node is an acceptable candidate: it matches one of
// the node patterns (when any are given) and satisfies every constraint.
func (r *AllocationRequest) MatchesNode(n *Node) bool {
	if patterns := r.NodePatterns(); len(patterns) > 0 {
		matched := false
		for _, p := range patterns {
			if ok, _ := path.Match(p, n.Name); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, c := range r.Constraints {
		if !c.Matches(n) {
			return false
		}
	}
	return true
}

// LoadNodefile reads Nodefile and merges its entries into Nodes. Blank lines and
// lines starting with '#' are skipped. This does file I/O and belongs at the
// submission boundary, never on the scheduling loop.
func (r *AllocationRequest) LoadNodefile() error {
	if r.Nodefile == "" {
		return nil
	}
	data, err := os.ReadFile(r.Nodefile)
	if err != nil {
		return errors.Wrapf(ErrBadParameter, "reading nodefile %s: %v", r.Nodefile, err)
	}
	entries := r.NodePatterns()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, SplitList(line)...)
	}
	r.Nodes = strings.Join(entries, ",")
	return nil
}

// SplitList splits a comma separated list, trimming blanks and dropping empties.
func SplitList(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
