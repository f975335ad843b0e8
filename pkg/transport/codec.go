package transport

import "encoding/json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec,
// swapping out grpc's default protobuf wire format for plain JSON.
// Forced on both sides (grpc.ForceServerCodec in NewServer,
// grpc.ForceCodec in Dial) so neither needs a generated message type.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "json"
}
