// Package control is the scheduler's command surface. A command is a one byte tag
// followed by a protobuf Struct payload; every command gets exactly one response.
package control

import (
	"fmt"
)

type Tag uint8

const (
	TagSessionRequest Tag = 1
	TagRun            Tag = 2
	TagStepComplete   Tag = 3
	TagCancel         Tag = 4
	TagRelease        Tag = 5
	TagStatus         Tag = 6

	TagQueueAdd    Tag = 10
	TagQueueRemove Tag = 11
	TagQueueList   Tag = 12
	TagQueueRebin  Tag = 13

	TagNodeUpdate Tag = 20

	TagOK    Tag = 100
	TagError Tag = 255
)

var tagNames = map[Tag]string{
	TagSessionRequest: "SESSION_REQUEST",
	TagRun:            "RUN",
	TagStepComplete:   "STEP_COMPLETE",
	TagCancel:         "CANCEL",
	TagRelease:        "RELEASE",
	TagStatus:         "STATUS",
	TagQueueAdd:       "QUEUE_ADD",
	TagQueueRemove:    "QUEUE_REMOVE",
	TagQueueList:      "QUEUE_LIST",
	TagQueueRebin:     "QUEUE_REBIN",
	TagNodeUpdate:     "NODE_UPDATE",
	TagOK:             "OK",
	TagError:          "ERROR",
}

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return fmt.Sprintf("TAG(%d)", uint8(t))
}

// ParseTag accepts a tag name as printed by String.
func ParseTag(name string) (Tag, error) {
	for t, n := range tagNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", name)
}

// Command is a request to the scheduler. Payload is an encoded Struct, see
// EncodePayload.
type Command struct {
	Tag     Tag
	Payload []byte
}

// Response answers a Command with TagOK or TagError.
type Response struct {
	Tag     Tag
	Payload []byte
}

func (c Command) String() string {
	return fmt.Sprintf("%s (%d payload bytes)", c.Tag, len(c.Payload))
}

// NewCommand encodes fields as the payload of a tag.
func NewCommand(tag Tag, fields map[string]interface{}) (Command, error) {
	payload, err := EncodePayload(fields)
	if err != nil {
		return Command{}, err
	}
	return Command{Tag: tag, Payload: payload}, nil
}

// Fields decodes the response payload.
func (r Response) Fields() (map[string]interface{}, error) {
	return DecodePayload(r.Payload)
}

// Err returns the error carried by a TagError response, nil otherwise.
func (r Response) Err() error {
	if r.Tag != TagError {
		return nil
	}
	fields, err := r.Fields()
	if err != nil {
		return fmt.Errorf("undecodable error response: %v", err)
	}
	return fmt.Errorf("%v", fields["error"])
}

func okResponse(fields map[string]interface{}) Response {
	payload, err := EncodePayload(fields)
	if err != nil {
		return errorResponse(err)
	}
	return Response{Tag: TagOK, Payload: payload}
}

func errorResponse(err error) Response {
	// A single string always encodes.
	payload, _ := EncodePayload(map[string]interface{}{"error": err.Error()})
	return Response{Tag: TagError, Payload: payload}
}
