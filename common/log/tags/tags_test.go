package tags

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestFields(t *testing.T) {
	assert.Equal(t, log.Fields{"sessionID": uint32(4)}, LogTags{SessionID: 4}.Fields())

	lt := LogTags{SessionID: 4, Queue: "batch", State: "QUEUED"}
	assert.Equal(t, log.Fields{"sessionID": uint32(4), "queue": "batch", "state": "QUEUED", "err": "x"},
		lt.With(log.Fields{"err": "x"}))
}
