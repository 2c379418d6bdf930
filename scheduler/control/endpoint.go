package control

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/twitter/scd/common/stats"
)

const (
	DefaultMaxRequests = 500
	DefaultMaxBurst    = 100
)

// Endpoint is a named in-process entry point for commands. It sheds load beyond
// its rate limit with an immediate error response.
type Endpoint struct {
	name    string
	handler *Handler
	limiter *rate.Limiter
	stat    stats.StatsReceiver
}

// NewEndpoint accepts up to maxRequests commands per second with bursts of
// maxBurst. Zero values pick the defaults.
func NewEndpoint(name string, handler *Handler, maxRequests, maxBurst int, stat stats.StatsReceiver) *Endpoint {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if maxBurst <= 0 {
		maxBurst = DefaultMaxBurst
	}
	return &Endpoint{
		name:    name,
		handler: handler,
		limiter: rate.NewLimiter(rate.Limit(maxRequests), maxBurst),
		stat:    stat,
	}
}

func (e *Endpoint) Name() string { return e.name }

// Send delivers cmd. The returned channel receives exactly one response.
func (e *Endpoint) Send(cmd Command) <-chan Response {
	ch := make(chan Response, 1)
	if !e.limiter.Allow() {
		e.stat.Counter(stats.ControlThrottledCounter).Inc(1)
		log.Warnf("endpoint %s dropped %s due to rate limit", e.name, cmd.Tag)
		ch <- errorResponse(fmt.Errorf("endpoint %s is over its rate limit", e.name))
		return ch
	}
	e.handler.Handle(cmd, func(r Response) { ch <- r })
	return ch
}

// SendFrame is Send over encoded frames.
func (e *Endpoint) SendFrame(frame []byte) <-chan []byte {
	out := make(chan []byte, 1)
	cmd, err := Decode(frame)
	if err != nil {
		out <- EncodeResponse(errorResponse(err))
		return out
	}
	go func() {
		out <- EncodeResponse(<-e.Send(cmd))
	}()
	return out
}
