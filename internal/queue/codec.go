package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/muaviaUsmani/stampede/internal/request"
)

// Queue members are framed with a one-byte format marker so every
// worker and feeder on the cluster can read every record, whichever
// producer wrote it. This scheduler writes JSON; feeders in other
// languages may write a protobuf Struct (schema-free, like the meta
// map itself) and workers decode both.
const (
	// frameJSON marks a JSON-encoded record
	frameJSON byte = 0x00

	// frameStruct marks a protobuf google.protobuf.Struct record
	frameStruct byte = 0x01
)

var (
	// ErrUnknownRecordFormat is returned when a queue member's frame
	// marker is unrecognized
	ErrUnknownRecordFormat = errors.New("unknown record format")

	// ErrBadRecord is returned when a frame's payload does not decode
	// into a request record
	ErrBadRecord = errors.New("malformed record payload")
)

// encodeRecord frames a request record for storage as a queue member
func encodeRecord(req *request.Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}

	out := make([]byte, 0, len(data)+1)
	out = append(out, frameJSON)
	out = append(out, data...)
	return out, nil
}

// decodeRecord turns a queue member back into a request record. Bare
// JSON without a frame marker is accepted for records written by
// older feeders.
func decodeRecord(data []byte) (*request.Request, error) {
	if len(data) == 0 {
		return nil, ErrUnknownRecordFormat
	}

	switch data[0] {
	case frameJSON:
		return decodeJSONRecord(data[1:])

	case frameStruct:
		var s structpb.Struct
		if err := proto.Unmarshal(data[1:], &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
		}
		// a Struct is just a schema-free map; funnel it through the
		// same field mapping the JSON path uses
		fields, err := json.Marshal(s.AsMap())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
		}
		return decodeJSONRecord(fields)
	}

	// legacy bare JSON
	if data[0] == '{' {
		return decodeJSONRecord(data)
	}

	return nil, ErrUnknownRecordFormat
}

func decodeJSONRecord(payload []byte) (*request.Request, error) {
	var req request.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	return &req, nil
}
