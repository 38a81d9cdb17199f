package segy

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

const defaultMaxDecompressed int64 = 2 << 30

var errSourceClosed = errors.New("data source closed")

// dataSource serves byte ranges of an opened SEG-Y file. Slices returned by
// Slice alias the source and are only valid until Close.
type dataSource interface {
	Size() int64
	Slice(offset int64, length int) ([]byte, error)
	Close() error
}

type mmapSource struct {
	file   *os.File
	mapped mmap.MMap
}

func newMmapSource(f *os.File) (*mmapSource, error) {
	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return &mmapSource{file: f, mapped: mapped}, nil
}

func (s *mmapSource) Size() int64 {
	return int64(len(s.mapped))
}

func (s *mmapSource) Slice(offset int64, length int) ([]byte, error) {
	if s.mapped == nil {
		return nil, errSourceClosed
	}
	return sliceBounds(s.mapped, offset, length)
}

func (s *mmapSource) Close() error {
	if s.mapped == nil {
		return nil
	}
	err := s.mapped.Unmap()
	s.mapped = nil
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// memorySource holds a fully decompressed file.
type memorySource struct {
	data []byte
}

func (s *memorySource) Size() int64 {
	return int64(len(s.data))
}

func (s *memorySource) Slice(offset int64, length int) ([]byte, error) {
	if s.data == nil {
		return nil, errSourceClosed
	}
	return sliceBounds(s.data, offset, length)
}

func (s *memorySource) Close() error {
	s.data = nil
	return nil
}

func sliceBounds(buf []byte, offset int64, length int) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("invalid byte range offset=%d length=%d", offset, length)
	}
	end := offset + int64(length)
	if end < offset || end > int64(len(buf)) {
		return nil, fmt.Errorf("byte range [%d..%d) exceeds %d mapped bytes", offset, end, len(buf))
	}
	return buf[offset:end], nil
}

// Compression names a supported input compression, chosen by file extension.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionS2   Compression = "s2"
	CompressionLZ4  Compression = "lz4"
	CompressionXZ   Compression = "xz"
)

// CompressionFor maps a path's extension to its compression.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return CompressionGzip
	case ".zst":
		return CompressionZstd
	case ".sz":
		return CompressionS2
	case ".lz4":
		return CompressionLZ4
	case ".xz":
		return CompressionXZ
	}
	return CompressionNone
}

func decompressor(c Compression, r io.Reader) (io.Reader, func(), error) {
	noop := func() {}
	switch c {
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { zr.Close() }, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case CompressionS2:
		return s2.NewReader(r), noop, nil
	case CompressionLZ4:
		return lz4.NewReader(r), noop, nil
	case CompressionXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, noop, nil
	}
	return r, noop, nil
}

// readDecompressed inflates f into memory, failing once more than limit
// bytes have been produced.
func readDecompressed(f *os.File, c Compression, limit int64) (*memorySource, error) {
	const op = "decompress"
	zr, done, err := decompressor(c, f)
	if err != nil {
		return nil, ioError(op, err, "%s reader", c)
	}
	defer done()
	data, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, ioError(op, err, "%s stream", c)
	}
	if int64(len(data)) > limit {
		return nil, validationError(op, "decompressed size exceeds limit of %d bytes", limit)
	}
	return &memorySource{data: data}, nil
}

// openSource opens path as an mmap source, or as a memory source when the
// extension names a compression.
func openSource(path string, maxDecompressed int64) (dataSource, error) {
	const op = "open"
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError(op, err, "%s", path)
	}
	if c := CompressionFor(path); c != CompressionNone {
		defer f.Close()
		return readDecompressed(f, c, maxDecompressed)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioError(op, err, "stat %s", path)
	}
	if info.Size() < FileHeaderSize {
		f.Close()
		return nil, segyError(op, "file too small: %d bytes, need at least %d", info.Size(), FileHeaderSize)
	}
	src, err := newMmapSource(f)
	if err != nil {
		f.Close()
		return nil, ioError(op, err, "mmap %s", path)
	}
	return src, nil
}
