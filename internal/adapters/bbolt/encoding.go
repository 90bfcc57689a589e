// Binary encoding for session snapshot blobs.
//
// Format v1 prefixes a gob-encoded ports.SessionSnapshot with a single
// version byte.
//
// Blobs starting with '{' are plain JSON snapshots and decode as such.
package bbolt

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"

	"github.com/corey/chatscan/internal/ports"
)

const formatV1 byte = 1

func encodeSnapshot(snap *ports.SessionSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(formatV1)
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) (*ports.SessionSnapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty snapshot blob")
	}
	var snap ports.SessionSnapshot
	switch data[0] {
	case formatV1:
		if err := gob.NewDecoder(bytes.NewReader(data[1:])).Decode(&snap); err != nil {
			return nil, fmt.Errorf("gob decode: %w", err)
		}
	case '{':
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("json decode: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown snapshot format %#x", data[0])
	}
	if snap.Groups == nil {
		snap.Groups = []ports.RecordingGroup{}
	}
	return &snap, nil
}
