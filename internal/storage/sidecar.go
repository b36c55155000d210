package storage

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/xDarkicex/khadb/internal/khaderr"
)

// WriteVectorSidecar writes the optional mmap-friendly raw-vector
// format spec §6 names: 8-byte LE count, 4-byte LE dimension, then
// count×dimension×4 bytes of float32 in vector-major order. This is
// a supplement to Frame (which already carries raw vectors inline);
// the sidecar exists for memory-mapped reads of individual vectors
// from large vector sets without decoding the whole MessagePack frame.
func WriteVectorSidecar(path string, vectors [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return khaderr.IO(err)
	}
	defer f.Close()

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}

	header := make([]byte, 12)
	binary.LittleEndian.PutUint64(header[0:8], uint64(len(vectors)))
	binary.LittleEndian.PutUint32(header[8:12], uint32(dim))
	if _, err := f.Write(header); err != nil {
		return khaderr.IO(err)
	}

	buf := make([]byte, dim*4)
	for _, v := range vectors {
		if len(v) != dim {
			return khaderr.InvalidConfig("sidecar: ragged vector set")
		}
		for i, x := range v {
			binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(x))
		}
		if _, err := f.Write(buf); err != nil {
			return khaderr.IO(err)
		}
	}
	return nil
}

// VectorSidecar is a memory-mapped read-only view over a sidecar file
// written by WriteVectorSidecar. Vector access decodes one vector from
// the mapped region into a newly allocated slice.
type VectorSidecar struct {
	file *os.File
	mm   mmap.MMap
	n    int
	dim  int
}

// OpenVectorSidecarMmap maps path read-only and parses its header.
// Grounded on the teacher's internal/memory/mmap.go syscall idiom,
// but built on github.com/edsrzf/mmap-go instead of a raw
// syscall.Mmap call so the sidecar reader works on any platform the
// mmap-go package supports, not just the teacher's original Unix
// target (see DESIGN.md).
func OpenVectorSidecarMmap(path string) (*VectorSidecar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, khaderr.IO(err)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, khaderr.IO(err)
	}

	if len(m) < 12 {
		m.Unmap()
		f.Close()
		return nil, khaderr.Serialization("sidecar file too short for header", nil)
	}

	n := int(binary.LittleEndian.Uint64(m[0:8]))
	dim := int(binary.LittleEndian.Uint32(m[8:12]))

	want := 12 + n*dim*4
	if len(m) < want {
		m.Unmap()
		f.Close()
		return nil, khaderr.Serialization("sidecar file shorter than header implies", nil)
	}

	return &VectorSidecar{file: f, mm: m, n: n, dim: dim}, nil
}

// Len reports the vector count recorded in the header.
func (s *VectorSidecar) Len() int { return s.n }

// Dim reports the vector dimension recorded in the header.
func (s *VectorSidecar) Dim() int { return s.dim }

// Vector decodes the i-th vector from the mapped region. It always
// allocates a fresh []float32 (rather than aliasing mapped memory
// directly) since float32 values aren't guaranteed an aligned,
// endian-matching in-memory representation in Go without unsafe
// casts, and this is not a hot enough path to justify that risk.
func (s *VectorSidecar) Vector(i int) []float32 {
	if i < 0 || i >= s.n {
		panic("storage: vector index out of range")
	}
	start := 12 + i*s.dim*4
	v := make([]float32, s.dim)
	for j := 0; j < s.dim; j++ {
		off := start + j*4
		v[j] = math.Float32frombits(binary.LittleEndian.Uint32(s.mm[off : off+4]))
	}
	return v
}

// Close unmaps the file and closes the underlying descriptor.
func (s *VectorSidecar) Close() error {
	if err := s.mm.Unmap(); err != nil {
		return khaderr.IO(err)
	}
	return s.file.Close()
}
