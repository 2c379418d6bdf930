package control

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/scd/common/stats"
	"github.com/twitter/scd/scheduler/domain"
	"github.com/twitter/scd/scheduler/queue"
)

// NodeUpdate reports a node's state and capacity.
type NodeUpdate struct {
	Name      string
	Up        bool
	Slots     int
	Resources map[domain.ResourceType]string
}

// Backend executes decoded commands. Calls may block until the scheduling loop
// has handled them.
type Backend interface {
	Submit(sr SessionRequest) (domain.SessionID, error)
	StepStarted(id domain.SessionID, job string, nodes []string) (uint32, error)
	StepCompleted(id domain.SessionID, step uint32) error
	Cancel(id domain.SessionID) error
	Release(id domain.SessionID) error
	Status(id domain.SessionID) (domain.SessionStatus, error)

	AddQueue(name string, priority int, cfg queue.Config) error
	RemoveQueue(name, migrateTo string) (orphaned int, err error)
	RebinQueue(name string, power, nodes queue.BinRanges) error
	Queues() []queue.Info

	NodeUpdate(u NodeUpdate) error
}

// Handler decodes commands and runs them against a Backend.
type Handler struct {
	backend Backend
	stat    stats.StatsReceiver
}

func NewHandler(backend Backend, stat stats.StatsReceiver) *Handler {
	return &Handler{backend: backend, stat: stat}
}

// Handle runs cmd on its own goroutine and calls reply exactly once with the result.
func (h *Handler) Handle(cmd Command, reply func(Response)) {
	go func() {
		reply(h.Dispatch(cmd))
	}()
}

// Dispatch runs cmd synchronously. Unknown tags and bad payloads get a TagError
// response like any other failure.
func (h *Handler) Dispatch(cmd Command) Response {
	h.stat.Counter(stats.ControlCommandCounter).Inc(1)
	m, err := DecodePayload(cmd.Payload)
	var out map[string]interface{}
	if err == nil {
		out, err = h.dispatch(cmd.Tag, &fields{m: m})
	}
	if err != nil {
		h.stat.Counter(stats.ControlErrorCounter).Inc(1)
		log.WithFields(log.Fields{
			"tag":     cmd.Tag,
			"payload": describe(m),
			"err":     err,
		}).Info("control command failed")
		return errorResponse(err)
	}
	return okResponse(out)
}

func (h *Handler) dispatch(tag Tag, f *fields) (map[string]interface{}, error) {
	done := map[string]interface{}{}
	switch tag {
	case TagSessionRequest:
		sr, err := ParseSessionRequest(f.m)
		if err != nil {
			return nil, err
		}
		id, err := h.backend.Submit(sr)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"session": id}, nil

	case TagRun:
		id, job, nodes := f.sessionID(), f.str("job"), f.strings("nodes")
		if f.err != nil {
			return nil, f.err
		}
		step, err := h.backend.StepStarted(id, job, nodes)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"session": id, "step": step}, nil

	case TagStepComplete:
		id, step := f.sessionID(), f.stepID()
		if f.err != nil {
			return nil, f.err
		}
		return done, h.backend.StepCompleted(id, step)

	case TagCancel, TagRelease:
		id := f.sessionID()
		if f.err != nil {
			return nil, f.err
		}
		if tag == TagCancel {
			return done, h.backend.Cancel(id)
		}
		return done, h.backend.Release(id)

	case TagStatus:
		id := f.sessionID()
		if f.err != nil {
			return nil, f.err
		}
		st, err := h.backend.Status(id)
		if err != nil {
			return nil, err
		}
		return StatusFields(st), nil

	case TagQueueAdd:
		name, priority := f.str("name"), int(f.num("priority"))
		cfg := queue.Config{
			PowerBins:      f.bins("powerBins"),
			NodeBins:       f.bins("nodeBins"),
			MaxSessions:    int(f.num("maxSessions")),
			PerNodeWatts:   f.num("perNodeWatts"),
			QueueTimeLimit: f.duration("queueTimeLimit"),
		}
		if f.err != nil {
			return nil, f.err
		}
		return done, h.backend.AddQueue(name, priority, cfg)

	case TagQueueRemove:
		name, migrateTo := f.str("name"), f.str("migrateTo")
		if f.err != nil {
			return nil, f.err
		}
		orphaned, err := h.backend.RemoveQueue(name, migrateTo)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"orphaned": orphaned}, nil

	case TagQueueRebin:
		name, power, nodes := f.str("name"), f.bins("powerBins"), f.bins("nodeBins")
		if f.err != nil {
			return nil, f.err
		}
		return done, h.backend.RebinQueue(name, power, nodes)

	case TagQueueList:
		var list []interface{}
		for _, info := range h.backend.Queues() {
			list = append(list, map[string]interface{}{
				"name":        info.Name,
				"priority":    info.Priority,
				"pending":     info.Pending,
				"maxSessions": info.Max,
				"powerBins":   binCounts(info.PowerBins),
				"nodeBins":    binCounts(info.NodeBins),
			})
		}
		return map[string]interface{}{"queues": list}, nil

	case TagNodeUpdate:
		u := NodeUpdate{
			Name:      f.str("name"),
			Up:        f.boolean("up"),
			Slots:     int(f.num("slots")),
			Resources: map[domain.ResourceType]string{},
		}
		if f.has("resources") {
			res, ok := f.m["resources"].(map[string]interface{})
			if !ok {
				f.fail("resources", "object", f.m["resources"])
			}
			rf := &fields{m: res}
			for k := range res {
				u.Resources[domain.ResourceType(k)] = rf.str(k)
			}
			if f.err == nil {
				f.err = rf.err
			}
		}
		if f.err != nil {
			return nil, f.err
		}
		return done, h.backend.NodeUpdate(u)
	}
	return nil, errors.Wrapf(domain.ErrBadParameter, "unknown command tag %d", uint8(tag))
}

// bins accepts either "0,4,8" or a list of numbers.
func (f *fields) bins(key string) queue.BinRanges {
	if !f.has(key) || f.err != nil {
		return queue.BinRanges{}
	}
	if s, ok := f.m[key].(string); ok {
		r, err := queue.ParseBinRanges(s)
		if err != nil {
			f.err = err
		}
		return r
	}
	list, ok := f.m[key].([]interface{})
	if !ok {
		f.fail(key, "bin bounds", f.m[key])
		return queue.BinRanges{}
	}
	var bounds []int64
	for _, e := range list {
		n, ok := e.(float64)
		if !ok {
			f.fail(key, "bin bounds", e)
			return queue.BinRanges{}
		}
		bounds = append(bounds, int64(n))
	}
	r, err := queue.NewBinRanges(bounds...)
	if err != nil {
		f.err = err
	}
	return r
}

func binCounts(bins []queue.BinInfo) []interface{} {
	out := make([]interface{}, len(bins))
	for i, b := range bins {
		out[i] = map[string]interface{}{"low": b.Low, "high": b.High, "count": b.Count}
	}
	return out
}
