package control

import (
	"fmt"
	"sort"
	"time"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/pkg/errors"

	"github.com/twitter/scd/scheduler/domain"
)

// Encode frames a command as its tag byte followed by the payload.
func Encode(cmd Command) []byte {
	return append([]byte{byte(cmd.Tag)}, cmd.Payload...)
}

// Decode splits a frame into tag and payload. The payload isn't parsed.
func Decode(data []byte) (Command, error) {
	if len(data) == 0 {
		return Command{}, domain.BadParameterf("empty command frame")
	}
	return Command{Tag: Tag(data[0]), Payload: append([]byte(nil), data[1:]...)}, nil
}

func EncodeResponse(r Response) []byte {
	return Encode(Command{Tag: r.Tag, Payload: r.Payload})
}

func DecodeResponse(data []byte) (Response, error) {
	cmd, err := Decode(data)
	return Response{Tag: cmd.Tag, Payload: cmd.Payload}, err
}

func EncodePayload(fields map[string]interface{}) ([]byte, error) {
	s, err := ToStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func DecodePayload(payload []byte) (map[string]interface{}, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(payload, s); err != nil {
		return nil, errors.Wrapf(domain.ErrBadParameter, "decoding payload: %v", err)
	}
	return FromStruct(s), nil
}

// ToStruct converts a map of plain Go values. Numbers become doubles, durations and
// times become strings.
func ToStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for k, v := range fields {
		pv, err := toValue(v)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", k)
		}
		s.Fields[k] = pv
	}
	return s, nil
}

func toValue(v interface{}) (*structpb.Value, error) {
	switch v := v.(type) {
	case nil:
		return &structpb.Value{Kind: &structpb.Value_NullValue{NullValue: structpb.NullValue_NULL_VALUE}}, nil
	case bool:
		return &structpb.Value{Kind: &structpb.Value_BoolValue{BoolValue: v}}, nil
	case string:
		return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: v}}, nil
	case time.Duration:
		return toValue(v.String())
	case time.Time:
		return toValue(v.UTC().Format(time.RFC3339Nano))
	case int:
		return number(float64(v)), nil
	case int32:
		return number(float64(v)), nil
	case int64:
		return number(float64(v)), nil
	case uint32:
		return number(float64(v)), nil
	case uint64:
		return number(float64(v)), nil
	case float64:
		return number(v), nil
	case domain.SessionID:
		return number(float64(v)), nil
	case []string:
		list := make([]interface{}, len(v))
		for i, e := range v {
			list[i] = e
		}
		return toValue(list)
	case []interface{}:
		lv := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(v))}
		for i, e := range v {
			pv, err := toValue(e)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", i)
			}
			lv.Values = append(lv.Values, pv)
		}
		return &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: lv}}, nil
	case []map[string]interface{}:
		list := make([]interface{}, len(v))
		for i, e := range v {
			list[i] = e
		}
		return toValue(list)
	case map[string]interface{}:
		s, err := ToStruct(v)
		if err != nil {
			return nil, err
		}
		return &structpb.Value{Kind: &structpb.Value_StructValue{StructValue: s}}, nil
	case map[string]string:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			m[k] = e
		}
		return toValue(m)
	}
	return nil, fmt.Errorf("unsupported payload type %T", v)
}

func number(f float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: f}}
}

// FromStruct converts back to plain Go values: float64, string, bool, nil,
// []interface{} and map[string]interface{}.
func FromStruct(s *structpb.Struct) map[string]interface{} {
	out := make(map[string]interface{}, len(s.GetFields()))
	for k, v := range s.GetFields() {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *structpb.Value) interface{} {
	switch k := v.GetKind().(type) {
	case *structpb.Value_BoolValue:
		return k.BoolValue
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return k.NumberValue
	case *structpb.Value_ListValue:
		list := make([]interface{}, 0, len(k.ListValue.GetValues()))
		for _, e := range k.ListValue.GetValues() {
			list = append(list, fromValue(e))
		}
		return list
	case *structpb.Value_StructValue:
		return FromStruct(k.StructValue)
	}
	return nil
}

// SortedKeys is used to print payloads deterministically.
func SortedKeys(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
