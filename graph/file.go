package graph

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/gannet/blobstore"
)

// Save serializes the graph to path. A ".lz4" or ".zst" suffix frames
// the format through the corresponding codec; any other suffix writes
// the raw format. The file is written to a temp name and renamed so a
// failed save never leaves a partial graph behind.
func (g *Graph) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("save graph: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("save graph %s: %w", path, err)
	}

	bw := bufio.NewWriterSize(tmp, 1<<20)
	w, finish, err := compressWriter(path, bw)
	if err != nil {
		return fail(err)
	}
	if _, err := g.WriteTo(w); err != nil {
		return fail(err)
	}
	if err := finish(); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("save graph %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("save graph %s: %w", path, err)
	}
	return nil
}

// Load deserializes a graph from path, transparently decompressing
// ".lz4" and ".zst" files.
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	defer func() { _ = f.Close() }()

	r, closeCodec, err := decompressReader(path, f)
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", path, err)
	}
	defer closeCodec()

	g, err := ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", path, err)
	}
	return g, nil
}

// SaveToStore serializes the graph into a blob store.
func (g *Graph) SaveToStore(ctx context.Context, store blobstore.BlobStore, name string) error {
	data, err := g.Bytes()
	if err != nil {
		return err
	}
	return store.Put(ctx, name, data)
}

// LoadFromStore deserializes a graph from a blob store.
func LoadFromStore(ctx context.Context, store blobstore.BlobStore, name string) (*Graph, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return ReadFrom(bytes.NewReader(data))
}

// Bytes returns the serialized graph.
func (g *Graph) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := g.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compressWriter(path string, w io.Writer) (io.Writer, func() error, error) {
	switch {
	case strings.HasSuffix(path, ".lz4"):
		zw := lz4.NewWriter(w)
		return zw, zw.Close, nil
	case strings.HasSuffix(path, ".zst"):
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, nil, err
		}
		return zw, zw.Close, nil
	default:
		return w, func() error { return nil }, nil
	}
}

func decompressReader(path string, r io.Reader) (io.Reader, func(), error) {
	switch {
	case strings.HasSuffix(path, ".lz4"):
		return lz4.NewReader(r), func() {}, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr.IOReadCloser(), zr.Close, nil
	default:
		return r, func() {}, nil
	}
}
