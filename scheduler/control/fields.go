package control

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/twitter/scd/scheduler/domain"
)

// fields reads typed values out of a decoded payload. The first problem found is
// kept in err and later reads are no-ops.
type fields struct {
	m   map[string]interface{}
	err error
}

func (f *fields) fail(key, want string, got interface{}) {
	if f.err == nil {
		f.err = domain.BadParameterf("field %s: want %s, got %T", key, want, got)
	}
}

func (f *fields) has(key string) bool {
	v, ok := f.m[key]
	return ok && v != nil
}

func (f *fields) str(key string) string {
	if !f.has(key) || f.err != nil {
		return ""
	}
	s, ok := f.m[key].(string)
	if !ok {
		f.fail(key, "string", f.m[key])
	}
	return s
}

func (f *fields) num(key string) int64 {
	if !f.has(key) || f.err != nil {
		return 0
	}
	n, ok := f.m[key].(float64)
	if !ok || n != math.Trunc(n) {
		f.fail(key, "integer", f.m[key])
		return 0
	}
	return int64(n)
}

func (f *fields) unsigned(key string) uint64 {
	n := f.num(key)
	if n < 0 {
		f.fail(key, "non-negative integer", n)
		return 0
	}
	return uint64(n)
}

func (f *fields) boolean(key string) bool {
	if !f.has(key) || f.err != nil {
		return false
	}
	b, ok := f.m[key].(bool)
	if !ok {
		f.fail(key, "bool", f.m[key])
	}
	return b
}

func (f *fields) duration(key string) time.Duration {
	s := f.str(key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		f.fail(key, "duration", s)
	}
	return d
}

func (f *fields) timestamp(key string) time.Time {
	s := f.str(key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		f.fail(key, "RFC 3339 time", s)
	}
	return t
}

// strings accepts a list of strings or one comma separated string.
func (f *fields) strings(key string) []string {
	if !f.has(key) || f.err != nil {
		return nil
	}
	switch v := f.m[key].(type) {
	case string:
		return domain.SplitList(v)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				f.fail(key, "list of strings", e)
				return nil
			}
			out = append(out, s)
		}
		return out
	}
	f.fail(key, "list of strings", f.m[key])
	return nil
}

func (f *fields) list(key string) []map[string]interface{} {
	if !f.has(key) || f.err != nil {
		return nil
	}
	v, ok := f.m[key].([]interface{})
	if !ok {
		f.fail(key, "list", f.m[key])
		return nil
	}
	out := make([]map[string]interface{}, 0, len(v))
	for _, e := range v {
		m, ok := e.(map[string]interface{})
		if !ok {
			f.fail(key, "list of objects", e)
			return nil
		}
		out = append(out, m)
	}
	return out
}

func (f *fields) sessionID() domain.SessionID {
	if !f.has("session") {
		f.fail("session", "session id", nil)
		return 0
	}
	id := f.num("session")
	if id <= 0 || id > math.MaxUint32 {
		f.fail("session", "session id", id)
	}
	return domain.SessionID(id)
}

func (f *fields) u32(key string) uint32 {
	n := f.num(key)
	if n < 0 || n > math.MaxUint32 {
		f.fail(key, "32-bit unsigned integer", n)
		return 0
	}
	return uint32(n)
}

func (f *fields) stepID() uint32 {
	if !f.has("step") {
		f.fail("step", "step id", nil)
		return 0
	}
	return f.u32("step")
}

// SessionRequest is the decoded payload of TagSessionRequest.
type SessionRequest struct {
	Request     *domain.AllocationRequest
	Requestor   domain.Requestor
	Interactive bool
	Job         string
}

// RequestFields is the payload form of a session request.
func RequestFields(sr SessionRequest) map[string]interface{} {
	r := sr.Request
	m := map[string]interface{}{
		"uid":         sr.Requestor.UID,
		"endpoint":    sr.Requestor.Endpoint,
		"interactive": sr.Interactive,
		"priority":    r.Priority,
		"minNodes":    r.MinNodes,
		"maxNodes":    r.MaxNodes,
		"minPEs":      r.MinPEs,
		"maxPEs":      r.MaxPEs,
		"exclusive":   r.Exclusive,
		"power":       r.Power,
	}
	optional := map[string]string{
		"job": sr.Job, "account": r.Account, "name": r.Name, "nodes": r.Nodes, "nodefile": r.Nodefile,
	}
	for k, v := range optional {
		if v != "" {
			m[k] = v
		}
	}
	if r.GID != 0 {
		m["gid"] = r.GID
	}
	if !r.Begin.IsZero() {
		m["begin"] = r.Begin
	}
	if r.Walltime != 0 {
		m["walltime"] = r.Walltime
	}
	if len(r.Queues) > 0 {
		m["queues"] = r.Queues
	}
	if len(r.Constraints) > 0 {
		var cs []interface{}
		for _, c := range r.Constraints {
			cs = append(cs, map[string]interface{}{"type": string(c.Type), "expression": c.Expression})
		}
		m["constraints"] = cs
	}
	return m
}

// ParseSessionRequest builds a request from its payload form. It checks types only;
// request validation is the scheduler's job.
func ParseSessionRequest(m map[string]interface{}) (SessionRequest, error) {
	f := &fields{m: m}
	r := &domain.AllocationRequest{
		Priority:  int32(f.num("priority")),
		Account:   f.str("account"),
		Name:      f.str("name"),
		GID:       int32(f.num("gid")),
		MinNodes:  f.unsigned("minNodes"),
		MaxNodes:  f.unsigned("maxNodes"),
		MinPEs:    f.unsigned("minPEs"),
		MaxPEs:    f.unsigned("maxPEs"),
		Begin:     f.timestamp("begin"),
		Walltime:  f.duration("walltime"),
		Exclusive: f.boolean("exclusive"),
		Nodefile:  f.str("nodefile"),
		Nodes:     strings.Join(f.strings("nodes"), ","),
		Queues:    f.strings("queues"),
		Power:     f.num("power"),
	}
	for _, c := range f.list("constraints") {
		cf := &fields{m: c}
		r.Constraints = append(r.Constraints, domain.ResourceConstraint{
			Type:       domain.ResourceType(cf.str("type")),
			Expression: cf.str("expression"),
		})
		if cf.err != nil && f.err == nil {
			f.err = cf.err
		}
	}
	sr := SessionRequest{
		Request:     r,
		Requestor:   domain.Requestor{UID: f.u32("uid"), Endpoint: f.str("endpoint")},
		Interactive: f.boolean("interactive"),
		Job:         f.str("job"),
	}
	return sr, f.err
}

// StatusFields is the payload form of a session status.
func StatusFields(st domain.SessionStatus) map[string]interface{} {
	m := map[string]interface{}{
		"session":     st.ID,
		"state":       st.State,
		"interactive": st.Interactive,
		"submitTime":  st.SubmitTime,
	}
	if st.Queue != "" {
		m["queue"] = st.Queue
	}
	if st.AllocationID != "" {
		m["allocation"] = st.AllocationID
	}
	if len(st.Nodes) > 0 {
		m["nodes"] = st.Nodes
	}
	if len(st.Steps) > 0 {
		steps := make([]interface{}, len(st.Steps))
		for i, s := range st.Steps {
			steps[i] = float64(s)
		}
		m["steps"] = steps
	}
	if st.Err != "" {
		m["err"] = st.Err
	}
	return m
}

func describe(m map[string]interface{}) string {
	var parts []string
	for _, k := range SortedKeys(m) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " ")
}
