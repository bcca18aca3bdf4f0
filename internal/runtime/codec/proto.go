package codec

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/drblury/retailstream/internal/runtime/events"
)

// Proto writes a google.protobuf.Struct in binary wire format. The payload
// is nested under "payload"; envelope identifiers are top-level fields.
type Proto struct{}

func (Proto) Name() string        { return NameProto }
func (Proto) ContentType() string { return "application/protobuf" }

func (Proto) Encode(env events.Envelope) ([]byte, error) {
	payload, err := toMap(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("codec: payload to struct: %w", err)
	}

	fields := map[string]any{
		"event_type":       string(env.EventType),
		"trace_id":         env.TraceID,
		"ingest_timestamp": env.IngestTimestamp.UTC().Format(time.RFC3339Nano),
		"payload":          payload,
	}
	if env.CorrelationID != "" {
		fields["correlation_id"] = env.CorrelationID
	}
	if env.SessionID != "" {
		fields["session_id"] = env.SessionID
	}
	if env.ParentEventID != "" {
		fields["parent_event_id"] = env.ParentEventID
	}

	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("codec: build struct: %w", err)
	}
	return proto.Marshal(st)
}

func (Proto) Decode(data []byte) (map[string]any, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return st.AsMap(), nil
}

// toMap flattens a payload through JSON so decimals and timestamps keep the
// same textual form in both codecs.
func toMap(payload events.Payload) (map[string]any, error) {
	data, err := api.Marshal(payload)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := api.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
