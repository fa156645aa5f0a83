package ledger

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes a position snapshot (ticker -> signed shares)
type Codec interface {
	Marshal(positions map[string]int64) ([]byte, error)
	Unmarshal(data []byte) (map[string]int64, error)
	Ext() string
}

// JSONCodec writes the snapshot as a JSON object
type JSONCodec struct{}

func (JSONCodec) Marshal(positions map[string]int64) ([]byte, error) {
	return json.MarshalIndent(positions, "", "  ")
}

func (JSONCodec) Unmarshal(data []byte) (map[string]int64, error) {
	positions := map[string]int64{}
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (JSONCodec) Ext() string { return ".json" }

// MsgpackCodec writes the snapshot as a msgpack map
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(positions map[string]int64) ([]byte, error) {
	return msgpack.Marshal(positions)
}

func (MsgpackCodec) Unmarshal(data []byte) (map[string]int64, error) {
	positions := map[string]int64{}
	if err := msgpack.Unmarshal(data, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (MsgpackCodec) Ext() string { return ".msgpack" }

// CodecFor picks a codec from the file extension, falling back to format ("json" or "msgpack")
func CodecFor(path, format string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mp":
		return MsgpackCodec{}
	case ".json":
		return JSONCodec{}
	}
	if strings.EqualFold(format, "msgpack") {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}
