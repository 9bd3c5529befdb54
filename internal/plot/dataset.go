package plot

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// datasetMagic opens every dataset file.
var datasetMagic = [4]byte{'K', 'D', 'S', '1'}

const datasetHeaderSize = 4 + 8

// WriteDataset encodes points as a little-endian float64 stream.
// The layout is magic, point count, X/Y pairs, then the xxhash64 of the pairs.
func WriteDataset(w io.Writer, points []Point) error {
	bw := bufio.NewWriter(w)
	digest := xxhash.New()

	var header [datasetHeaderSize]byte
	copy(header[:4], datasetMagic[:])
	binary.LittleEndian.PutUint64(header[4:], uint64(len(points)))
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}

	var buf [16]byte
	for _, p := range points {
		binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(p.X))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(p.Y))
		_, _ = digest.Write(buf[:])
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}

	binary.LittleEndian.PutUint64(buf[:8], digest.Sum64())
	if _, err := bw.Write(buf[:8]); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadDataset decodes a dataset written by WriteDataset.
// If limit is positive only the first limit points are returned, but the whole file is still verified.
func ReadDataset(r io.Reader, limit int) ([]Point, error) {
	br := bufio.NewReader(r)

	var header [datasetHeaderSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, zerr.Wrap(domain.ErrInvalidDataset, "missing header")
	}
	if [4]byte(header[:4]) != datasetMagic {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidDataset, "bad magic"), "magic", string(header[:4]))
	}
	count := binary.LittleEndian.Uint64(header[4:])

	keep := count
	if limit > 0 && uint64(limit) < count {
		keep = uint64(limit)
	}
	out := make([]Point, 0, keep)
	digest := xxhash.New()

	var buf [16]byte
	for i := range count {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidDataset, "truncated"), "point", i)
		}
		_, _ = digest.Write(buf[:])
		if i < keep {
			out = append(out, Point{
				X: math.Float64frombits(binary.LittleEndian.Uint64(buf[:8])),
				Y: math.Float64frombits(binary.LittleEndian.Uint64(buf[8:])),
			})
		}
	}

	if _, err := io.ReadFull(br, buf[:8]); err != nil {
		return nil, zerr.Wrap(domain.ErrInvalidDataset, "missing checksum")
	}
	if binary.LittleEndian.Uint64(buf[:8]) != digest.Sum64() {
		return nil, zerr.Wrap(domain.ErrInvalidDataset, "checksum mismatch")
	}
	return out, nil
}
