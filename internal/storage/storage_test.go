package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.khdy")

	frame := &Frame{
		Config: Config{Dimension: 4, Metric: 0, UsePQ: true, PQSubvectors: 2, NumClusters: 3, NumProbe: 2},
		Vectors: [][]float32{
			{1, 2, 3, 4},
			{5, 6, 7, 8},
		},
		Codes: [][]byte{{0, 1}, {1, 0}},
		PQ: &PQState{
			Codebooks: [][][]float32{
				{{1, 2}, {3, 4}},
				{{5, 6}, {7, 8}},
			},
		},
		IVF: &IVFState{
			Centroids: [][]float32{{1, 1, 1, 1}, {9, 9, 9, 9}},
			Postings:  [][]uint32{{0}, {1}},
		},
		Metadata:   []any{"a", "b"},
		NextID:     2,
		IndexBuilt: true,
	}

	if err := Save(path, frame); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.Config.Dimension != 4 || loaded.Config.NumClusters != 3 {
		t.Fatalf("config mismatch: %+v", loaded.Config)
	}
	if len(loaded.Vectors) != 2 || loaded.Vectors[1][3] != 8 {
		t.Fatalf("vectors mismatch: %+v", loaded.Vectors)
	}
	if len(loaded.Codes) != 2 {
		t.Fatalf("codes mismatch: %+v", loaded.Codes)
	}
	if loaded.NextID != 2 || !loaded.IndexBuilt {
		t.Fatalf("scalar fields mismatch: nextID=%d built=%v", loaded.NextID, loaded.IndexBuilt)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.khdy")
	if err := os.WriteFile(path, []byte("NOTAFRAME_______"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestVectorSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")

	vectors := [][]float32{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	}
	if err := WriteVectorSidecar(path, vectors); err != nil {
		t.Fatal(err)
	}

	sidecar, err := OpenVectorSidecarMmap(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sidecar.Close()

	if sidecar.Len() != 3 || sidecar.Dim() != 3 {
		t.Fatalf("header mismatch: len=%d dim=%d", sidecar.Len(), sidecar.Dim())
	}
	for i, want := range vectors {
		got := sidecar.Vector(i)
		for j := range want {
			if got[j] != want[j] {
				t.Errorf("vector %d[%d] = %v, want %v", i, j, got[j], want[j])
			}
		}
	}
}
