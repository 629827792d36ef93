package vectorstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Vector file layout, little-endian:
//
//	uint32 dimensions
//	uint32 vector count
//	repeated: uint32 id length, id bytes, dimensions x float32
func saveVectors(path string, dimensions int, ids []string, vectors [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint32(dimensions)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(ids))); err != nil {
		return err
	}
	for i, id := range ids {
		if len(vectors[i]) != dimensions {
			return fmt.Errorf("vector %s has %d dimensions, want %d", id, len(vectors[i]), dimensions)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(id))); err != nil {
			return err
		}
		if _, err := w.WriteString(id); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, vectors[i]); err != nil {
			return err
		}
	}
	return w.Flush()
}

// loadVectors reads a vector file. A missing file is an empty collection.
func loadVectors(path string) (int, []string, [][]float32, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil, nil, nil
	}
	if err != nil {
		return 0, nil, nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var dims, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return 0, nil, nil, fmt.Errorf("read header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return 0, nil, nil, fmt.Errorf("read header: %w", err)
	}

	ids := make([]string, 0, count)
	vectors := make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		var idLen uint32
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return 0, nil, nil, fmt.Errorf("read id length: %w", err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return 0, nil, nil, fmt.Errorf("read id: %w", err)
		}
		vec := make([]float32, dims)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return 0, nil, nil, fmt.Errorf("read vector: %w", err)
		}
		ids = append(ids, string(idBytes))
		vectors = append(vectors, vec)
	}
	return int(dims), ids, vectors, nil
}
