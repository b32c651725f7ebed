package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"imascore/internal/types"
)

func TestCompressLevels(t *testing.T) {
	payload := MarshalStruct(frameSample())
	levels := map[string]zstd.EncoderLevel{
		"fastest": zstd.SpeedFastest,
		"default": zstd.SpeedDefault,
		"best":    zstd.SpeedBestCompression,
	}
	for name, level := range levels {
		for _, in := range [][]byte{payload, {}} {
			out, err := DecompressBytes(CompressBytesLevel(in, level))
			if err != nil {
				t.Fatalf("%s: DecompressBytes returned error: %v", name, err)
			}
			if !bytes.Equal(in, out) {
				t.Errorf("%s: round trip of %d bytes returned %d bytes", name, len(in), len(out))
			}
		}
	}
	if packed := CompressBytes(payload); len(packed) >= len(payload) {
		t.Errorf("encoded tree of %d bytes did not shrink (%d bytes)", len(payload), len(packed))
	}
}

func frameSample() *Struct {
	s := NewStruct()
	s.SetLeaf("time", &Leaf{Data: types.Doubles1D(0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7), Timebase: "time"})
	s.SetLeaf("ids_properties/comment", &Leaf{Data: types.String1D(string(bytes.Repeat([]byte("equilibrium "), 64)))})
	return s
}

func TestDecompressRejectsPlainTree(t *testing.T) {
	if _, err := DecompressBytes(MarshalStruct(frameSample())); err == nil {
		t.Error("decompressing an uncompressed tree succeeded")
	}
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"", "fastest", "default", "better", "best"} {
		if _, err := ParseLevel(name); err != nil {
			t.Errorf("ParseLevel(%q) returned error: %v", name, err)
		}
	}
	if _, err := ParseLevel("ludicrous"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("equilibrium"), 100)
	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload, zstd.SpeedFastest); err != nil {
		t.Fatalf("WriteFrame returned error: %v", err)
	}
	got, err := ReadFrame(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadFrame returned error: %v", err)
	}
	if !bytes.Equal(payload, got) {
		t.Error("Frame payload does not match original")
	}
}

func TestFrameRejectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("payload"), zstd.SpeedDefault); err != nil {
		t.Fatal(err)
	}

	badMagic := append([]byte(nil), buf.Bytes()...)
	badMagic[0] ^= 0xff
	if _, err := ReadFrame(bytes.NewReader(badMagic)); err != ErrBadMagic {
		t.Errorf("Expected ErrBadMagic, got %v", err)
	}

	badDigest := append([]byte(nil), buf.Bytes()...)
	badDigest[8] ^= 0xff // inside the digest
	if _, err := ReadFrame(bytes.NewReader(badDigest)); err != ErrDigest {
		t.Errorf("Expected ErrDigest, got %v", err)
	}

	if _, err := ReadFrame(bytes.NewReader(buf.Bytes()[:4])); err == nil {
		t.Error("Expected error on truncated header")
	}
}

func TestStructFile(t *testing.T) {
	s := NewStruct()
	s.SetLeaf("time", &Leaf{Data: types.Doubles1D(0, 1, 2)})
	path := filepath.Join(t.TempDir(), "pulse", "equilibrium.alser")

	if err := WriteStructFile(path, s, zstd.SpeedDefault); err != nil {
		t.Fatalf("WriteStructFile returned error: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temporary file left behind")
	}

	got, err := ReadStructFile(path)
	if err != nil {
		t.Fatalf("ReadStructFile returned error: %v", err)
	}
	leaf, ok := got.Leaf("time")
	if !ok {
		t.Fatal("Missing time leaf")
	}
	if len(leaf.Data.Doubles) != 3 || leaf.Data.Doubles[2] != 2 {
		t.Errorf("Unexpected time data %v", leaf.Data.Doubles)
	}
}
