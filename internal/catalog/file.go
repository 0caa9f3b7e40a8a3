package catalog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File layout (little-endian):
//
//	magic "KGMC" | version u8 | dtype u8 | flags u16 | dim u32 | n u32 | nameLen u32 | name
//	n records: idLen u32 | id | [ordinal u32 if flagOrdinals] | dim values (f32 or f16)
const (
	fileMagic   = "KGMC"
	fileVersion = 1

	dtypeFloat32 = 0
	dtypeFloat16 = 1

	flagOrdinals = 1 << 0

	maxIDLen = 1 << 16
	maxDim   = 1 << 16

	// preallocElems bounds the vector buffer reserved from header counts.
	preallocElems = 1 << 22
)

// ErrBadFormat is returned when a catalog file is not in the expected layout.
var ErrBadFormat = errors.New("bad catalog file")

// WriteOptions controls how Write encodes a catalog.
type WriteOptions struct {
	// Float16 stores vectors in half precision, halving the file size at the cost of precision.
	Float16 bool
	// OmitOrdinals skips the per-record ordinal column. By default ordinals are written
	// (persisted or derived) so readers do not have to re-derive them.
	OmitOrdinals bool
}

type fileHeader struct {
	Version uint8
	DType   uint8
	Flags   uint16
	Dim     uint32
	N       uint32
}

// Write encodes c to w.
func Write(w io.Writer, c *Catalog, opts WriteOptions) error {
	bw := bufio.NewWriter(w)
	h := fileHeader{Version: fileVersion, DType: dtypeFloat32, Dim: uint32(c.dim), N: uint32(c.Len())}
	if opts.Float16 {
		h.DType = dtypeFloat16
	}
	if !opts.OmitOrdinals {
		h.Flags |= flagOrdinals
	}
	if _, err := bw.WriteString(fileMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := writeString(bw, c.name); err != nil {
		return fmt.Errorf("write name: %w", err)
	}
	for i, id := range c.categoryIDs {
		if err := writeString(bw, id); err != nil {
			return fmt.Errorf("write category id: %w", err)
		}
		if h.Flags&flagOrdinals != 0 {
			ord, _ := c.Ordinal(i)
			if err := binary.Write(bw, binary.LittleEndian, uint32(ord)); err != nil {
				return fmt.Errorf("write ordinal: %w", err)
			}
		}
		var vec []byte
		if opts.Float16 {
			vec = EncodeFloat16s(c.Row(i))
		} else {
			vec = EncodeFloat32s(c.Row(i))
		}
		if _, err := bw.Write(vec); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return bw.Flush()
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// Read decodes a catalog written by Write. Options override stored values (e.g. WithName).
func Read(r io.Reader, opts ...Option) (*Catalog, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != fileMagic {
		return nil, fmt.Errorf("%w: unexpected magic %q", ErrBadFormat, magic)
	}
	var h fileHeader
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if h.Version != fileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, h.Version)
	}
	width := 4
	switch h.DType {
	case dtypeFloat32:
	case dtypeFloat16:
		width = 2
	default:
		return nil, fmt.Errorf("%w: unknown dtype %d", ErrBadFormat, h.DType)
	}
	if h.Dim == 0 || h.Dim > maxDim {
		return nil, fmt.Errorf("%w: dimension %d", ErrBadFormat, h.Dim)
	}
	name, err := readString(br)
	if err != nil {
		return nil, fmt.Errorf("read name: %w", err)
	}

	dim := int(h.Dim)
	n := int(h.N)
	// Cap the up-front allocation; a corrupt header must not reserve gigabytes.
	capHint := min(n, 1<<16, preallocElems/dim)
	ids := make([]string, 0, capHint)
	data := make([]float32, 0, capHint*dim)
	var ordinals []int
	if h.Flags&flagOrdinals != 0 {
		ordinals = make([]int, 0, capHint)
	}
	buf := make([]byte, dim*width)
	for i := 0; i < n; i++ {
		id, err := readString(br)
		if err != nil {
			return nil, fmt.Errorf("read category id %d: %w", i, err)
		}
		if ordinals != nil {
			var ord uint32
			if err := binary.Read(br, binary.LittleEndian, &ord); err != nil {
				return nil, fmt.Errorf("read ordinal %d: %w", i, err)
			}
			ordinals = append(ordinals, int(ord))
		}
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		if width == 2 {
			data = append(data, DecodeFloat16s(buf)...)
		} else {
			data = append(data, DecodeFloat32s(buf)...)
		}
		ids = append(ids, id)
	}

	all := []Option{WithName(name)}
	if ordinals != nil {
		all = append(all, WithOrdinals(ordinals))
	}
	return build(dim, data, ids, append(all, opts...)...)
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxIDLen {
		return "", fmt.Errorf("%w: string length %d", ErrBadFormat, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// LoadFile reads a catalog file, decompressing according to its extension.
func LoadFile(path string, opts ...Option) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()
	rc, err := NewDecompressor(f, CompressionFor(path))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	c, err := Read(rc, opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return c, nil
}

// SaveFile writes c to path, compressing according to its extension. The file is
// written to a temporary sibling and renamed into place, so watchers never see a
// half-written catalog.
func SaveFile(path string, c *Catalog, opts WriteOptions) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create catalog file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	cw, err := NewCompressor(tmp, CompressionFor(path))
	if err != nil {
		_ = tmp.Close()
		return err
	}
	if err := Write(cw, c, opts); err != nil {
		_ = cw.Close()
		_ = tmp.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush catalog file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close catalog file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename catalog file: %w", err)
	}
	return nil
}
