package mirror

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/klauspost/compress/zstd"
)

const (
	layerTargetSize = 5 * 1024 * 1024  // 5MB target
	layerMinSize    = 2 * 1024 * 1024  // 2MB minimum before combining
	layerSoftMax    = 10 * 1024 * 1024 // 10MB soft maximum
)

// packFiles encodes files as length-prefixed records:
// [path length 2B][path][content length 8B][content]...
func packFiles(paths []string, data map[string][]byte) []byte {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	var buf bytes.Buffer
	lenBuf := make([]byte, 8)

	for _, path := range sorted {
		content := data[path]

		binary.BigEndian.PutUint16(lenBuf[:2], uint16(len(path)))
		buf.Write(lenBuf[:2])
		buf.WriteString(path)

		binary.BigEndian.PutUint64(lenBuf, uint64(len(content)))
		buf.Write(lenBuf)
		buf.Write(content)
	}
	return buf.Bytes()
}

func unpackFiles(blob []byte) (map[string][]byte, error) {
	files := make(map[string][]byte)
	buf := bytes.NewReader(blob)

	for buf.Len() > 0 {
		var pathLen uint16
		if err := binary.Read(buf, binary.BigEndian, &pathLen); err != nil {
			return nil, fmt.Errorf("read path length: %w", err)
		}
		pathBuf := make([]byte, pathLen)
		if _, err := io.ReadFull(buf, pathBuf); err != nil {
			return nil, fmt.Errorf("read path: %w", err)
		}

		var length uint64
		if err := binary.Read(buf, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("read content length: %w", err)
		}
		if length > uint64(buf.Len()) {
			return nil, fmt.Errorf("corrupt record for %q: %d bytes claimed, %d left", pathBuf, length, buf.Len())
		}
		content := make([]byte, length)
		if _, err := io.ReadFull(buf, content); err != nil {
			return nil, fmt.Errorf("read content: %w", err)
		}

		files[string(pathBuf)] = content
	}

	return files, nil
}

// planLayers groups paths into layers of roughly layerTargetSize,
// combining small groups and splitting at the soft maximum. Grouping is
// stable for a given file set so unchanged content repacks into identical
// layers.
func planLayers(files map[string]FileInfo) [][]string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var layers [][]string
	var current []string
	var size int64

	for _, path := range paths {
		fileSize := files[path].Size

		if len(current) == 0 {
			current = append(current, path)
			size = fileSize
			continue
		}

		newSize := size + fileSize
		if newSize <= layerTargetSize {
			current = append(current, path)
			size = newSize
		} else if size < layerMinSize && newSize <= layerSoftMax {
			current = append(current, path)
			size = newSize
		} else {
			layers = append(layers, current)
			current = []string{path}
			size = fileSize
		}
	}

	if len(current) > 0 {
		layers = append(layers, current)
	}

	return layers
}

// fileLayer implements v1.Layer over a zstd compressed pack of files.
type fileLayer struct {
	compressed   []byte
	uncompressed []byte
}

func newFileLayer(data []byte, enc *zstd.Encoder) *fileLayer {
	return &fileLayer{
		compressed:   enc.EncodeAll(data, nil),
		uncompressed: data,
	}
}

func (l *fileLayer) Digest() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.compressed))
	return h, err
}

func (l *fileLayer) DiffID() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.uncompressed))
	return h, err
}

func (l *fileLayer) Compressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.compressed)), nil
}

func (l *fileLayer) Uncompressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.uncompressed)), nil
}

func (l *fileLayer) Size() (int64, error)                { return int64(len(l.compressed)), nil }
func (l *fileLayer) MediaType() (types.MediaType, error) { return types.OCILayerZStd, nil }

// newEncoder maps a compression level (1 fastest, 2 default, 3 best) to a
// zstd encoder.
func newEncoder(level int) (*zstd.Encoder, error) {
	var encoderLevel zstd.EncoderLevel
	switch level {
	case 1:
		encoderLevel = zstd.SpeedFastest
	case 2:
		encoderLevel = zstd.SpeedDefault
	case 3:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedDefault
	}
	return zstd.NewWriter(nil,
		zstd.WithEncoderLevel(encoderLevel),
		zstd.WithEncoderConcurrency(1),
	)
}
