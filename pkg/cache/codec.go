package cache

import (
	"encoding/json"
	"fmt"

	"github.com/Combine-Capital/rcache/pkg/errors"
	"google.golang.org/protobuf/proto"
)

// Codec converts typed values to and from stored bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec stores values as JSON.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// ProtoCodec stores protocol buffer messages in wire format. Values must
// implement proto.Message.
type ProtoCodec struct{}

func (ProtoCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, errors.NewInvalidInput("value", fmt.Sprintf("%T is not a proto.Message", v))
	}
	return proto.Marshal(msg)
}

func (ProtoCodec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return errors.NewInvalidInput("dest", fmt.Sprintf("%T is not a proto.Message", v))
	}
	return proto.Unmarshal(data, msg)
}
