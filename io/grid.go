package io

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrBadContainer is returned when a grid file is truncated or its header
// is inconsistent.
var ErrBadContainer = errors.New("malformed grid container")

const (
	// Endianness used by default when writing grids. Grids of either
	// endianness can be read.
	DefaultEndiannessFlag int32 = 0
)

/*
The binary format used for field grids is as follows:
    |-- 1 --||-- 2 --||-- ... 3 ... --||-- ... 4 ... --| ...

    1 - (int32) Flag indicating the endianness of the file. 0 indicates a
        little endian byte ordering and -1 indicates a big endian byte order.
    2 - (int32) Size of a GridHeader struct. Checked for consistency.
    3 - (GridHeader) Header containing the grid's dimensions and bounds.
    4 - ([]float64) One contiguous block per stored component, each holding
        N[0]*N[1]*N[2] values in x-major order.
*/
type GridHeader struct {
	N        [3]int64
	Min, Max [3]float64
	Blocks   int64
}

// Count returns the number of values in a single block.
func (h *GridHeader) Count() int64 { return h.N[0] * h.N[1] * h.N[2] }

// endianness is a utility function converting an endianness flag to a
// byte order.
func endianness(flag int32) (binary.ByteOrder, error) {
	switch flag {
	case 0:
		return binary.LittleEndian, nil
	case -1:
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: unrecognized endianness flag %d",
		ErrBadContainer, flag)
}

// WriteGridTo writes a header and its blocks to w.
func WriteGridTo(w io.Writer, h *GridHeader, blocks ...[]float64) error {
	if int64(len(blocks)) != h.Blocks {
		return fmt.Errorf("header declares %d blocks, but %d were given",
			h.Blocks, len(blocks))
	}
	for i := range blocks {
		if int64(len(blocks[i])) != h.Count() {
			return fmt.Errorf("block %d has length %d, but header count is %d",
				i, len(blocks[i]), h.Count())
		}
	}

	order, _ := endianness(DefaultEndiannessFlag)
	if err := binary.Write(w, order, DefaultEndiannessFlag); err != nil {
		return err
	}
	if err := binary.Write(w, order, int32(binary.Size(h))); err != nil {
		return err
	}
	if err := binary.Write(w, order, h); err != nil {
		return err
	}
	for i := range blocks {
		if err := binary.Write(w, order, blocks[i]); err != nil {
			return err
		}
	}
	return nil
}

// WriteGrid writes a header and its blocks to the given file.
func WriteGrid(file string, h *GridHeader, blocks ...[]float64) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	if err = WriteGridTo(f, h, blocks...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readGridHeader(r io.Reader, h *GridHeader) (binary.ByteOrder, error) {
	var flag int32
	// order doesn't matter for this read, since flags are symmetric.
	if err := binary.Read(r, binary.LittleEndian, &flag); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadContainer, err)
	}
	order, err := endianness(flag)
	if err != nil {
		return nil, err
	}

	var size int32
	if err := binary.Read(r, order, &size); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadContainer, err)
	}
	if int(size) != binary.Size(h) {
		return nil, fmt.Errorf("%w: expected GridHeader size of %d, found %d",
			ErrBadContainer, binary.Size(h), size)
	}

	if err := binary.Read(r, order, h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadContainer, err)
	}
	for i := 0; i < 3; i++ {
		if h.N[i] <= 0 {
			return nil, fmt.Errorf("%w: non-positive dimension %d",
				ErrBadContainer, h.N[i])
		}
	}
	if h.Blocks < 0 {
		return nil, fmt.Errorf("%w: negative block count", ErrBadContainer)
	}
	return order, nil
}

// ReadGridFrom reads a header and all of its blocks from r.
func ReadGridFrom(r io.Reader) (*GridHeader, [][]float64, error) {
	h := &GridHeader{}
	order, err := readGridHeader(r, h)
	if err != nil {
		return nil, nil, err
	}

	blocks := make([][]float64, h.Blocks)
	for i := range blocks {
		blocks[i] = make([]float64, h.Count())
		if err := binary.Read(r, order, blocks[i]); err != nil {
			return nil, nil, fmt.Errorf("%w: block %d: %v",
				ErrBadContainer, i, err)
		}
	}
	return h, blocks, nil
}

// ReadGridHeader reads the header in the given file into the target header.
func ReadGridHeader(file string, h *GridHeader) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = readGridHeader(f, h)
	return err
}

// ReadGrid reads the grid stored in the given file.
func ReadGrid(file string) (*GridHeader, [][]float64, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadGridFrom(f)
}
