package graph

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unsafe"
)

// ErrCorruptFormat is returned when a serialized graph fails the
// format invariant checks.
var ErrCorruptFormat = errors.New("corrupt graph format")

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeI32(w io.Writer, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

// writeI32Slice writes the slice as raw little-endian bytes without
// copying. Safe on the supported little-endian targets.
func writeI32Slice(w io.Writer, s []int32) error {
	if len(s) == 0 {
		return nil
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4) //nolint:gosec // raw little-endian view
	_, err := w.Write(buf)
	return err
}

func writeU64Slice(w io.Writer, s []uint64) error {
	if len(s) == 0 {
		return nil
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8) //nolint:gosec // raw little-endian view
	_, err := w.Write(buf)
	return err
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readI32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func readI32Slice(r io.Reader, s []int32) error {
	if len(s) == 0 {
		return nil
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4) //nolint:gosec // raw little-endian view
	_, err := io.ReadFull(r, buf)
	return err
}

func readU64Slice(r io.Reader, s []uint64) error {
	if len(s) == 0 {
		return nil
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8) //nolint:gosec // raw little-endian view
	_, err := io.ReadFull(r, buf)
	return err
}

// WriteTo serializes the graph in the on-disk format: the layer
// initializer block when present, then the dense graph block.
func (g *Graph) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	if li := g.initializer; li != nil {
		if err := li.writeTo(cw); err != nil {
			return cw.n, err
		}
	}

	if err := writeU64(cw, uint64(g.numNodes)); err != nil {
		return cw.n, err
	}
	if err := writeU64(cw, uint64(g.maxDegree)); err != nil {
		return cw.n, err
	}
	if err := writeI32Slice(cw, g.edges); err != nil {
		return cw.n, err
	}

	if err := writeU64(cw, uint64(len(g.degrees))); err != nil {
		return cw.n, err
	}
	if err := writeU64Slice(cw, g.degrees); err != nil {
		return cw.n, err
	}

	eps := make([]uint64, len(g.entryPoints))
	for i, ep := range g.entryPoints {
		eps[i] = uint64(ep)
	}
	if err := writeU64(cw, uint64(len(eps))); err != nil {
		return cw.n, err
	}
	if err := writeU64Slice(cw, eps); err != nil {
		return cw.n, err
	}

	if err := writeU64(cw, g.totalEdges); err != nil {
		return cw.n, err
	}

	for _, s := range []string{g.builderName, g.distanceType} {
		if err := writeU64(cw, uint64(len(s))); err != nil {
			return cw.n, err
		}
		if _, err := cw.Write([]byte(s)); err != nil {
			return cw.n, err
		}
	}

	return cw.n, nil
}

func (li *LayerInitializer) writeTo(w io.Writer) error {
	if err := writeI32(w, li.n); err != nil {
		return err
	}
	if err := writeI32(w, li.k); err != nil {
		return err
	}
	if err := writeI32(w, li.ep); err != nil {
		return err
	}
	for i := int32(0); i < li.n; i++ {
		cur := li.levels[i] * li.k
		if err := writeI32(w, cur); err != nil {
			return err
		}
		if err := writeI32Slice(w, li.lists[i][:cur]); err != nil {
			return err
		}
	}
	return nil
}

// maxReasonableNodes bounds size fields read from untrusted input
// before any allocation happens.
const maxReasonableNodes = 1 << 31

// ReadFrom deserializes a graph and validates the format invariants.
// The layer initializer block is required; HNSW-built graphs always
// carry one.
func ReadFrom(r io.Reader) (*Graph, error) {
	br := bufio.NewReaderSize(r, 1<<20)

	li, err := readInitializer(br)
	if err != nil {
		return nil, err
	}

	numNodes, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("%w: dense header: %w", ErrCorruptFormat, err)
	}
	maxDegree, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("%w: dense header: %w", ErrCorruptFormat, err)
	}
	if numNodes > maxReasonableNodes || maxDegree > maxReasonableNodes ||
		(maxDegree > 0 && numNodes > maxReasonableNodes/maxDegree) {
		return nil, fmt.Errorf("%w: implausible dimensions %d x %d", ErrCorruptFormat, numNodes, maxDegree)
	}

	g := New(int(numNodes), int(maxDegree))
	if err := readI32Slice(br, g.edges); err != nil {
		return nil, fmt.Errorf("%w: edge matrix: %w", ErrCorruptFormat, err)
	}

	degreesSize, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("%w: degrees: %w", ErrCorruptFormat, err)
	}
	if degreesSize != numNodes {
		return nil, fmt.Errorf("%w: degrees size %d != num nodes %d", ErrCorruptFormat, degreesSize, numNodes)
	}
	if err := readU64Slice(br, g.degrees); err != nil {
		return nil, fmt.Errorf("%w: degrees: %w", ErrCorruptFormat, err)
	}

	epsSize, err := readU64(br)
	if err != nil {
		return nil, fmt.Errorf("%w: entry points: %w", ErrCorruptFormat, err)
	}
	if epsSize > numNodes {
		return nil, fmt.Errorf("%w: entry points size %d", ErrCorruptFormat, epsSize)
	}
	eps := make([]uint64, epsSize)
	if err := readU64Slice(br, eps); err != nil {
		return nil, fmt.Errorf("%w: entry points: %w", ErrCorruptFormat, err)
	}
	g.entryPoints = make([]int32, epsSize)
	for i, ep := range eps {
		if ep >= numNodes {
			return nil, fmt.Errorf("%w: entry point %d out of range", ErrCorruptFormat, ep)
		}
		g.entryPoints[i] = int32(ep)
	}

	if g.totalEdges, err = readU64(br); err != nil {
		return nil, fmt.Errorf("%w: total edges: %w", ErrCorruptFormat, err)
	}

	if g.builderName, err = readString(br); err != nil {
		return nil, fmt.Errorf("%w: builder name: %w", ErrCorruptFormat, err)
	}
	if g.distanceType, err = readString(br); err != nil {
		return nil, fmt.Errorf("%w: distance type: %w", ErrCorruptFormat, err)
	}

	g.initializer = li
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func readInitializer(r io.Reader) (*LayerInitializer, error) {
	n, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: initializer header: %w", ErrCorruptFormat, err)
	}
	k, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: initializer header: %w", ErrCorruptFormat, err)
	}
	ep, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: initializer header: %w", ErrCorruptFormat, err)
	}
	if n < 0 || k <= 0 || ep < 0 || ep >= n {
		return nil, fmt.Errorf("%w: initializer header n=%d k=%d ep=%d", ErrCorruptFormat, n, k, ep)
	}

	li := NewLayerInitializer(int(n), int(k))
	li.ep = ep
	for i := int32(0); i < n; i++ {
		cur, err := readI32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: initializer node %d: %w", ErrCorruptFormat, i, err)
		}
		if cur < 0 || cur%k != 0 {
			return nil, fmt.Errorf("%w: initializer node %d length %d", ErrCorruptFormat, i, cur)
		}
		li.levels[i] = cur / k
		li.lists[i] = make([]int32, cur)
		if err := readI32Slice(r, li.lists[i]); err != nil {
			return nil, fmt.Errorf("%w: initializer node %d: %w", ErrCorruptFormat, i, err)
		}
	}
	return li, nil
}

func readString(r io.Reader) (string, error) {
	size, err := readU64(r)
	if err != nil {
		return "", err
	}
	if size > 1<<20 {
		return "", fmt.Errorf("string length %d", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// validate checks the structural invariants of a deserialized graph:
// ids in range, non-sentinel entries preceding sentinels, and degrees
// matching the first sentinel position.
func (g *Graph) validate() error {
	n := int32(g.numNodes)
	for u := int32(0); int(u) < g.numNodes; u++ {
		row := g.Neighbors(u)
		firstSentinel := g.maxDegree
		for i, v := range row {
			if v == EmptyID {
				firstSentinel = i
				break
			}
			if v < 0 || v >= n {
				return fmt.Errorf("%w: node %d neighbor %d out of range", ErrCorruptFormat, u, v)
			}
		}
		for i := firstSentinel; i < g.maxDegree; i++ {
			if row[i] != EmptyID {
				return fmt.Errorf("%w: node %d has edge after sentinel", ErrCorruptFormat, u)
			}
		}
		if int(g.degrees[u]) != firstSentinel {
			return fmt.Errorf("%w: node %d degree %d != first sentinel %d", ErrCorruptFormat, u, g.degrees[u], firstSentinel)
		}
	}

	if li := g.initializer; li != nil {
		if int(li.n) != g.numNodes {
			return fmt.Errorf("%w: initializer covers %d of %d nodes", ErrCorruptFormat, li.n, g.numNodes)
		}
		epLevel := li.levels[li.ep]
		for u := int32(0); u < li.n; u++ {
			if li.levels[u] > epLevel {
				return fmt.Errorf("%w: node %d above entry point level", ErrCorruptFormat, u)
			}
			for _, v := range li.lists[u] {
				if v != EmptyID && (v < 0 || v >= n) {
					return fmt.Errorf("%w: initializer node %d neighbor %d out of range", ErrCorruptFormat, u, v)
				}
			}
		}
	}
	return nil
}
