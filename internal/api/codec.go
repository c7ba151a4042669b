package api

import (
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Schedule messages travel as google.protobuf.Struct under the default proto codec.
// The Go request and response types map onto the struct through their json tags.

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func fromStruct(msg *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// decodeRequest reads the wire message and maps it onto v.
func decodeRequest(dec func(any) error, v any) error {
	msg := &structpb.Struct{}
	if err := dec(msg); err != nil {
		return err
	}
	if err := fromStruct(msg, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return nil
}

func encodeResponse(v any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	msg, err := toStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return msg, nil
}
