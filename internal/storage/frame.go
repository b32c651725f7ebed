package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// A frame is a serialized data object on disk:
//
//	[Magic(4)][Version(2)][Level(1)][BLAKE3 digest of payload(32)][zstd payload]

type frameHeader struct {
	Magic   uint32 // identifies serialized data object files
	Version uint16 // frame format version
	Level   uint8  // zstd encoder level used for the payload
}

const (
	frameMagic   uint32 = 0x414C5300 // "ALS\0"
	frameVersion uint16 = 1
	digestSize          = 32
)

var (
	ErrBadMagic = errors.New("invalid frame magic number")
	ErrDigest   = errors.New("frame payload digest mismatch")
)

var (
	encodersMu sync.Mutex
	encoders   = map[zstd.EncoderLevel]*zstd.Encoder{}
)

func encoderFor(level zstd.EncoderLevel) *zstd.Encoder {
	encodersMu.Lock()
	defer encodersMu.Unlock()
	enc, ok := encoders[level]
	if !ok {
		enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		encoders[level] = enc
	}
	return enc
}

// CompressBytes compresses src with the default level.
func CompressBytes(src []byte) []byte {
	return CompressBytesLevel(src, zstd.SpeedDefault)
}

func CompressBytesLevel(src []byte, level zstd.EncoderLevel) []byte {
	return encoderFor(level).EncodeAll(src, make([]byte, 0, len(src)))
}

// Create a reader that caches decompressors.
// For this operation type we supply a nil Reader.
var compressDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

// Decompress a buffer. We don't supply a destination buffer,
// so it will be allocated by the decoder.
func DecompressBytes(src []byte) ([]byte, error) {
	return compressDecoder.DecodeAll(src, nil)
}

// ParseLevel maps a level name (fastest, default, better, best) to a zstd
// encoder level.
func ParseLevel(name string) (zstd.EncoderLevel, error) {
	if name == "" {
		return zstd.SpeedDefault, nil
	}
	ok, level := zstd.EncoderLevelFromString(name)
	if !ok {
		return zstd.SpeedDefault, fmt.Errorf("unknown compression level %q", name)
	}
	return level, nil
}

// WriteFrame writes payload as a frame.
func WriteFrame(w io.Writer, payload []byte, level zstd.EncoderLevel) error {
	header := frameHeader{Magic: frameMagic, Version: frameVersion, Level: uint8(level)}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	sum := blake3.Sum256(payload)
	if _, err := w.Write(sum[:]); err != nil {
		return err
	}
	_, err := w.Write(CompressBytesLevel(payload, level))
	return err
}

// ReadFrame reads a whole frame and returns the verified payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header frameHeader
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	if header.Magic != frameMagic {
		return nil, ErrBadMagic
	}
	if header.Version > frameVersion {
		return nil, fmt.Errorf("unsupported frame version: %d", header.Version)
	}

	var want [digestSize]byte
	if _, err := io.ReadFull(r, want[:]); err != nil {
		return nil, fmt.Errorf("read frame digest: %w", err)
	}
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	payload, err := DecompressBytes(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress frame: %w", err)
	}
	if blake3.Sum256(payload) != want {
		return nil, ErrDigest
	}
	return payload, nil
}

// FrameBytes returns payload framed in memory.
func FrameBytes(payload []byte, level zstd.EncoderLevel) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload, level); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFrameBytes is ReadFrame on an in-memory frame.
func ReadFrameBytes(b []byte) ([]byte, error) {
	return ReadFrame(bytes.NewReader(b))
}

// WriteStructFile stores a tree at path, replacing any previous file.
func WriteStructFile(path string, s *Struct, level zstd.EncoderLevel) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	frame, err := FrameBytes(MarshalStruct(s), level)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, frame, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadStructFile loads a tree written by WriteStructFile.
func ReadStructFile(path string) (*Struct, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	payload, err := ReadFrame(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return UnmarshalStruct(payload)
}
