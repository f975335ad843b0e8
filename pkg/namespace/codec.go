package namespace

import (
	"encoding/json"

	"github.com/HaiboGNU/eos-sub000/pkg/changelog"
	"github.com/HaiboGNU/eos-sub000/pkg/types"
)

// The change-log payload codec is plain JSON: spec §6 dictates the
// record *framing* (varint seq/tag/length) byte-for-byte but leaves
// the payload serialization unspecified, and JSON keeps the log
// human-inspectable, matching the rest of the corpus's use of
// encoding/json for all persisted and wire structures.

func encodeContainer(c *types.Container) ([]byte, error) {
	return json.Marshal(c)
}

func decodeContainer(b []byte) (*types.Container, error) {
	var c types.Container
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func encodeFile(f *types.File) ([]byte, error) {
	return json.Marshal(f)
}

func decodeFile(b []byte) (*types.File, error) {
	var f types.File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) appendContainer(tag changelog.Tag, c *types.Container) (uint64, error) {
	payload, err := encodeContainer(c)
	if err != nil {
		return 0, err
	}
	return s.containerLog.Append(tag, payload)
}

func (s *Store) appendFile(tag changelog.Tag, f *types.File) (uint64, error) {
	payload, err := encodeFile(f)
	if err != nil {
		return 0, err
	}
	return s.fileLog.Append(tag, payload)
}
