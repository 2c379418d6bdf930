// Package tags carries the identifiers that every scheduler log line about a session
// should include.
package tags

import (
	log "github.com/sirupsen/logrus"
)

type LogTags struct {
	SessionID uint32
	Queue     string
	State     string
	Tag       string
}

// Fields returns the tags as logrus fields, omitting empty values.
func (t LogTags) Fields() log.Fields {
	f := log.Fields{"sessionID": t.SessionID}
	if t.Queue != "" {
		f["queue"] = t.Queue
	}
	if t.State != "" {
		f["state"] = t.State
	}
	if t.Tag != "" {
		f["tag"] = t.Tag
	}
	return f
}

// With merges extra fields on top of the tags.
func (t LogTags) With(extra log.Fields) log.Fields {
	f := t.Fields()
	for k, v := range extra {
		f[k] = v
	}
	return f
}
