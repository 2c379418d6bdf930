// Package events carries reliability and transition events out of the scheduler
// to any number of listeners without ever blocking the scheduling loop.
package events

import (
	"fmt"
	"time"

	"github.com/golang/protobuf/ptypes"
	log "github.com/sirupsen/logrus"
)

type Type int

const (
	TypeException Type = iota
	TypeTransition
	TypeSensor
	TypeCounter
)

var typeNames = []string{"EXCEPTION", "TRANSITION", "SENSOR", "COUNTER"}

func (t Type) String() string { return name(typeNames, int(t)) }

type Class int

const (
	ClassHardware Class = iota
	ClassSoftware
	ClassEnviro
)

var classNames = []string{"HARDWARE", "SOFTWARE", "ENVIRO"}

func (c Class) String() string { return name(classNames, int(c)) }

type Severity int

const (
	SeverityFatal Severity = iota
	SeverityWarning
	SeverityInfo
)

var severityNames = []string{"FATAL", "WARNING", "INFO"}

func (s Severity) String() string { return name(severityNames, int(s)) }

func name(names []string, i int) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("UNKNOWN(%d)", i)
}

// Location is where an event happened.
type Location struct {
	Hostname  string
	Locstring string
}

type Event struct {
	Type       Type
	Class      Class
	Severity   Severity
	Location   Location
	Timestamp  time.Time
	Message    string
	Attributes map[string]string
}

func (e Event) String() string {
	return fmt.Sprintf("%s/%s/%s at %s: %s", e.Type, e.Class, e.Severity, e.Location.Hostname, e.Message)
}

// TimestampString renders the timestamp as RFC 3339 in UTC.
func (e Event) TimestampString() string {
	ts, err := ptypes.TimestampProto(e.Timestamp)
	if err != nil {
		return ""
	}
	return ptypes.TimestampString(ts)
}

// Fields flattens the event for structured logging and storage.
func (e Event) Fields() log.Fields {
	fields := log.Fields{
		"TYPE":      e.Type.String(),
		"CLASS":     e.Class.String(),
		"SEVERITY":  e.Severity.String(),
		"HOSTNAME":  e.Location.Hostname,
		"LOCATION":  e.Location.Locstring,
		"TIMESTAMP": e.TimestampString(),
		"MESSAGE":   e.Message,
	}
	for k, v := range e.Attributes {
		fields[k] = v
	}
	return fields
}
