// Package storage implements persistence of a trained collection to a
// single framed file, plus an optional memory-mapped sidecar for the
// raw vector array. The frame holds the tuple spec §6 names: config,
// raw vectors, optional quantized vectors, optional IVF index,
// metadata, next id, and the build-dirty flag.
package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/xDarkicex/khadb/internal/khaderr"
)

// magic and version identify the framed file format (spec §6).
var magic = [4]byte{'K', 'H', 'D', 'Y'}

const version uint32 = 1

// Config mirrors the façade's validated configuration in a form safe
// to serialize directly (no methods, no pointers to trained
// structures).
type Config struct {
	Dimension    int
	Metric       int
	UsePQ        bool
	PQSubvectors int
	NumClusters  int
	NumProbe     int
}

// IVFState is the serializable form of a trained IVF index: coarse
// centroids plus posting lists. NumProbe travels separately in Config
// since it is the one field still mutable post-build.
type IVFState struct {
	Centroids [][]float32
	Postings  [][]uint32
}

// PQState is the serializable form of a trained PQ codec's
// codebooks.
type PQState struct {
	Codebooks [][][]float32
}

// Frame is the full tuple persisted to disk: (config, raw_vectors,
// optional_quantized_vectors, optional_ivf_index, metadata_map,
// next_id, index_built) from spec §6, plus the trained PQ codebooks
// (needed to reconstruct the codec itself, not just the codes).
type Frame struct {
	Config     Config
	Vectors    [][]float32
	Codes      [][]byte `msgpack:",omitempty"`
	PQ         *PQState `msgpack:",omitempty"`
	IVF        *IVFState `msgpack:",omitempty"`
	Metadata   []any
	NextID     uint32
	IndexBuilt bool
}

// Save writes frame to path as a length-prefixed, magic/version
// framed MessagePack encoding — the Go-idiomatic analogue of the
// original implementation's rmp_serde/bincode tuple persistence (see
// DESIGN.md).
func Save(path string, frame *Frame) error {
	body, err := msgpack.Marshal(frame)
	if err != nil {
		return khaderr.Serialization("encoding frame", err)
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	if err := binary.Write(&buf, binary.LittleEndian, version); err != nil {
		return khaderr.Serialization("writing version", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint64(len(body))); err != nil {
		return khaderr.Serialization("writing frame length", err)
	}
	buf.Write(body)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return khaderr.IO(err)
	}
	return nil
}

// Load reads a Frame previously written by Save, validating the magic
// and version before decoding the body.
func Load(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, khaderr.IO(err)
	}

	if len(data) < 4+4+8 {
		return nil, khaderr.Serialization("file too short for frame header", nil)
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return nil, khaderr.Serialization(fmt.Sprintf("bad magic %q, want %q", data[:4], magic[:]), nil)
	}

	r := bytes.NewReader(data[4:])
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return nil, khaderr.Serialization("reading version", err)
	}
	if v != version {
		return nil, khaderr.Serialization(fmt.Sprintf("unsupported version %d, want %d", v, version), nil)
	}

	var bodyLen uint64
	if err := binary.Read(r, binary.LittleEndian, &bodyLen); err != nil {
		return nil, khaderr.Serialization("reading frame length", err)
	}

	bodyStart := len(data) - r.Len()
	if uint64(len(data)-bodyStart) < bodyLen {
		return nil, khaderr.Serialization("truncated frame body", nil)
	}
	body := data[bodyStart : bodyStart+int(bodyLen)]

	var frame Frame
	if err := msgpack.Unmarshal(body, &frame); err != nil {
		return nil, khaderr.Serialization("decoding frame", err)
	}
	return &frame, nil
}
