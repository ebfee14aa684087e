package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ralt/sdkgen/internal/macho/machotest"
)

func writeFixture(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0755); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestDetectBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want ObjectType
	}{
		{"thin64 little endian", []byte{0xcf, 0xfa, 0xed, 0xfe, 7, 0, 0, 1}, TypeThin64},
		{"thin32 big endian", []byte{0xfe, 0xed, 0xfa, 0xce, 0, 0, 0, 12}, TypeThin32},
		{"fat", []byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 2}, TypeFat},
		{"fat64", []byte{0xca, 0xfe, 0xba, 0xbf, 0, 0, 0, 1}, TypeFat},
		{"java class", []byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 52}, TypeUnknown},
		{"elf", []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}, TypeUnknown},
		{"short", []byte{0xcf, 0xfa}, TypeUnknown},
	}
	for _, tt := range tests {
		if got := detectBytes(tt.data); got != tt.want {
			t.Errorf("%s: detectBytes = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestScanAndExpand(t *testing.T) {
	dir, err := os.MkdirTemp("", "sdkgen-scan-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	writeFixture(t, filepath.Join(dir, "bin", "b-tool"), machotest.ARM64().Bytes())
	writeFixture(t, filepath.Join(dir, "bin", "a-tool"), machotest.Fat(machotest.X86_64(), machotest.ARM64()))
	writeFixture(t, filepath.Join(dir, "bin", "script.sh"), []byte("#!/bin/sh\n"))
	writeFixture(t, filepath.Join(dir, "lib", "sub", "libx.dylib"), machotest.X86_64().Bytes())
	writeFixture(t, filepath.Join(dir, "empty"), nil)

	s := NewFileSystemScanner()
	objects, err := s.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	var paths []string
	for _, obj := range objects {
		rel, _ := filepath.Rel(dir, obj.Path)
		paths = append(paths, filepath.ToSlash(rel))
	}
	want := []string{"bin/a-tool", "bin/b-tool", "lib/sub/libx.dylib"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("Scan = %v, want %v", paths, want)
	}
	if objects[0].Type != TypeFat {
		t.Errorf("a-tool type = %s, want universal", objects[0].Type)
	}

	explicit := filepath.Join(dir, "bin", "script.sh")
	inputs, err := ExpandInputs(context.Background(), s, []string{explicit, filepath.Join(dir, "lib")})
	if err != nil {
		t.Fatalf("ExpandInputs failed: %v", err)
	}
	if len(inputs) != 2 || inputs[0] != explicit || filepath.Base(inputs[1]) != "libx.dylib" {
		t.Errorf("ExpandInputs = %v", inputs)
	}

	if _, err := ExpandInputs(context.Background(), s, []string{filepath.Join(dir, "missing")}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ExpandInputs(missing) error = %v", err)
	}

	typ, err := DetectObjectType(filepath.Join(dir, "empty"))
	if err != nil || typ != TypeUnknown {
		t.Errorf("DetectObjectType(empty) = %v, %v", typ, err)
	}
}

func TestScanCancelled(t *testing.T) {
	dir, err := os.MkdirTemp("", "sdkgen-scan-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)
	writeFixture(t, filepath.Join(dir, "tool"), machotest.ARM64().Bytes())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFileSystemScanner().Scan(ctx, dir); !errors.Is(err, context.Canceled) {
		t.Errorf("Scan error = %v, want context.Canceled", err)
	}
}
