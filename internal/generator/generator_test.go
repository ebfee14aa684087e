package generator

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ralt/sdkgen/internal/macho"
	"github.com/ralt/sdkgen/internal/macho/machotest"
	"github.com/ralt/sdkgen/internal/models"
	"github.com/ralt/sdkgen/internal/tapi"
)

type exportBlock struct {
	Targets []string `yaml:"targets"`
	Symbols []string `yaml:"symbols"`
}

type stubDocument struct {
	Targets        []string      `yaml:"targets"`
	InstallName    string        `yaml:"install-name"`
	CurrentVersion int           `yaml:"current-version"`
	Exports        []exportBlock `yaml:"exports"`
}

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "sdkgen-generator-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func writeBinary(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0755); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func readStub(t *testing.T, path string) *stubDocument {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read stub: %v", err)
	}
	body, ok := strings.CutPrefix(string(data), "--- !tapi-tbd\n")
	if !ok {
		t.Fatalf("Stub lacks tapi header:\n%s", data)
	}
	var doc stubDocument
	if err := yaml.Unmarshal([]byte(body), &doc); err != nil {
		t.Fatalf("Stub is not valid YAML: %v", err)
	}
	return &doc
}

type fakeSigner struct {
	signed []byte
	keyErr error
}

func (f *fakeSigner) SignDetached(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.signed = data
	return []byte("-----BEGIN PGP SIGNATURE-----\n"), nil
}

func (f *fakeSigner) GetPublicKey() ([]byte, error) {
	if f.keyErr != nil {
		return nil, f.keyErr
	}
	return []byte("-----BEGIN PGP PUBLIC KEY BLOCK-----\n"), nil
}

// A single thin x86_64 macOS binary importing two symbols from libFoo.
func TestScenarioSingleBinary(t *testing.T) {
	dir := tempDir(t)
	bin := writeBinary(t, dir, "tool", machotest.X86_64().
		BuildVersion(machotest.PlatformMacOS).
		Dylib("/usr/lib/libFoo.dylib", 0x00010203).
		Import("_foo_open", 1).
		Import("_foo_close", 1).
		Bytes())

	dest := filepath.Join(dir, "sdk")
	config := &models.GenerateConfig{
		Inputs:      []string{bin},
		Destination: dest,
		Format:      models.FormatDir,
	}
	if err := NewGenerator(config, nil).Generate(context.Background()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	doc := readStub(t, filepath.Join(dest, "usr/lib/libFoo.tbd"))
	if doc.CurrentVersion != 1 {
		t.Errorf("current-version = %d, want 1", doc.CurrentVersion)
	}
	if !reflect.DeepEqual(doc.Targets, []string{"x86_64-macos"}) {
		t.Errorf("targets = %v", doc.Targets)
	}
	want := []exportBlock{{Targets: []string{"x86_64-macos"}, Symbols: []string{"_foo_close", "_foo_open"}}}
	if !reflect.DeepEqual(doc.Exports, want) {
		t.Errorf("exports = %+v, want %+v", doc.Exports, want)
	}

	entries, err := os.ReadDir(filepath.Join(dest, "usr/lib"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only libFoo.tbd, got %d entries", len(entries))
	}
}

// Two binaries for different archs each import one symbol from libFoo.
func TestScenarioTwoBinaries(t *testing.T) {
	dir := tempDir(t)
	arm := writeBinary(t, dir, "arm", machotest.ARM64().
		BuildVersion(machotest.PlatformMacOS).
		Dylib("/usr/lib/libFoo.dylib", 0x10000).
		Import("_arm_only", 1).
		Bytes())
	x86 := writeBinary(t, dir, "x86", machotest.X86_64().
		BuildVersion(machotest.PlatformMacOS).
		Dylib("/usr/lib/libFoo.dylib", 0x10000).
		Import("_x86_only", 1).
		Bytes())

	dest := filepath.Join(dir, "sdk")
	config := &models.GenerateConfig{
		Inputs:      []string{arm, x86},
		Destination: dest,
		Format:      models.FormatDir,
		Jobs:        2,
	}
	if err := NewGenerator(config, nil).Generate(context.Background()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	doc := readStub(t, filepath.Join(dest, "usr/lib/libFoo.tbd"))
	if !reflect.DeepEqual(doc.Targets, []string{"arm64-macos", "x86_64-macos"}) {
		t.Errorf("targets = %v", doc.Targets)
	}
	want := []exportBlock{
		{Targets: []string{"arm64-macos"}, Symbols: []string{"_arm_only"}},
		{Targets: []string{"x86_64-macos"}, Symbols: []string{"_x86_only"}},
	}
	if !reflect.DeepEqual(doc.Exports, want) {
		t.Errorf("exports = %+v, want %+v", doc.Exports, want)
	}
}

// A versioned library gets an inferred link that collapses with an explicit one.
func TestScenarioVersionlessLink(t *testing.T) {
	dir := tempDir(t)
	writeBinary(t, dir, "tool", machotest.ARM64().
		Dylib("/usr/lib/libFoo.2.dylib", 0x20000).
		Import("_foo", 1).
		Bytes())

	linksFile := filepath.Join(dir, "links.txt")
	if err := os.WriteFile(linksFile, []byte("# extra\nusr/lib/libFoo.tbd => libFoo.2.tbd\n"), 0644); err != nil {
		t.Fatalf("Failed to write links file: %v", err)
	}

	dest := filepath.Join(dir, "out", "sdk.tar")
	sig := &fakeSigner{}
	config := &models.GenerateConfig{
		Inputs:          []string{dir},
		Destination:     dest,
		Format:          models.FormatTar,
		DefaultPlatform: models.PlatformIOS,
		Symlinks: []string{
			"usr/lib/libFoo.tbd -> /usr/lib/libFoo.2.tbd",
			"usr/local/lib/libFoo.tbd -> /usr/lib/libFoo.2.tbd",
		},
		SymlinkFiles: []string{linksFile},
	}
	if err := NewGenerator(config, sig).Generate(context.Background()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	f, err := os.Open(dest)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer f.Close()

	links := map[string]string{}
	var files []string
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Reading tar failed: %v", err)
		}
		switch hdr.Typeflag {
		case tar.TypeSymlink:
			if _, dup := links[hdr.Name]; dup {
				t.Errorf("Duplicate link %s", hdr.Name)
			}
			links[hdr.Name] = hdr.Linkname
		case tar.TypeReg:
			files = append(files, hdr.Name)
		}
	}

	if !reflect.DeepEqual(files, []string{"usr/lib/libFoo.2.tbd"}) {
		t.Errorf("files = %v", files)
	}
	want := map[string]string{
		"usr/lib/libFoo.tbd":       "libFoo.2.tbd",
		"usr/local/lib/libFoo.tbd": "../../lib/libFoo.2.tbd",
	}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("links = %v, want %v", links, want)
	}

	sum, err := os.ReadFile(dest + ".sha256")
	if err != nil {
		t.Fatalf("Checksum file missing: %v", err)
	}
	if !strings.HasSuffix(string(sum), "  sdk.tar\n") {
		t.Errorf("Checksum file = %q", sum)
	}
	if _, err := os.Stat(dest + ".asc"); err != nil {
		t.Errorf("Signature file missing: %v", err)
	}
	pub, err := os.ReadFile(dest + ".pub")
	if err != nil {
		t.Fatalf("Public key file missing: %v", err)
	}
	if !strings.HasPrefix(string(pub), "-----BEGIN PGP PUBLIC KEY BLOCK-----") {
		t.Errorf("Public key file = %q", pub)
	}
	archive, _ := os.ReadFile(dest)
	if string(sig.signed) != string(archive) {
		t.Error("Signer did not receive the archive contents")
	}
}

func TestInferredLinkDoesNotReplaceStub(t *testing.T) {
	dir := tempDir(t)
	bin := writeBinary(t, dir, "tool", machotest.ARM64().
		BuildVersion(machotest.PlatformMacOS).
		Dylib("/usr/lib/libFoo.dylib", 0x10000).
		Dylib("/usr/lib/libFoo.2.dylib", 0x20000).
		Bytes())

	dest := filepath.Join(dir, "sdk")
	config := &models.GenerateConfig{Inputs: []string{bin}, Destination: dest}
	if err := NewGenerator(config, nil).Generate(context.Background()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	info, err := os.Lstat(filepath.Join(dest, "usr/lib/libFoo.tbd"))
	if err != nil {
		t.Fatalf("Lstat failed: %v", err)
	}
	if !info.Mode().IsRegular() {
		t.Errorf("libFoo.tbd mode = %v, want regular stub", info.Mode())
	}
}

func TestGenerateErrors(t *testing.T) {
	dir := tempDir(t)
	noPlatform := writeBinary(t, dir, "noplatform", machotest.ARM64().
		Dylib("/usr/lib/libFoo.dylib", 0x10000).
		Import("_foo", 1).
		Bytes())
	notMachO := writeBinary(t, dir, "script", []byte("#!/bin/sh\necho hi\n"))

	tests := []struct {
		name    string
		config  models.GenerateConfig
		errType models.ErrorType
		target  error
	}{
		{
			name:    "no platform",
			config:  models.GenerateConfig{Inputs: []string{noPlatform}},
			errType: models.ErrStubGen,
			target:  tapi.ErrNoPlatform,
		},
		{
			name:    "not mach-o",
			config:  models.GenerateConfig{Inputs: []string{notMachO}},
			errType: models.ErrMachOParse,
			target:  macho.ErrUnsupportedHeader,
		},
		{
			name:    "bad symlink",
			config:  models.GenerateConfig{Inputs: []string{noPlatform}, Symlinks: []string{"nosep"}},
			errType: models.ErrSymlink,
		},
		{
			name:    "empty input dir",
			config:  models.GenerateConfig{Inputs: []string{t.TempDir()}},
			errType: models.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			cfg.Destination = filepath.Join(dir, "out-"+strings.ReplaceAll(tt.name, " ", "-"))
			err := NewGenerator(&cfg, nil).Generate(context.Background())

			var sgErr *models.SdkGenError
			if !errors.As(err, &sgErr) {
				t.Fatalf("Expected *SdkGenError, got %v", err)
			}
			if sgErr.Type != tt.errType {
				t.Errorf("Error type = %s, want %s", sgErr.Type, tt.errType)
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("Error %v does not wrap %v", err, tt.target)
			}
		})
	}
}

func TestFailedRunRemovesArchive(t *testing.T) {
	dir := tempDir(t)
	bin := writeBinary(t, dir, "noplatform", machotest.ARM64().
		Dylib("/usr/lib/libFoo.dylib", 0x10000).
		Import("_foo", 1).
		Bytes())

	for _, format := range []models.ArchiveFormat{models.FormatTar, models.FormatTgz, models.FormatZip} {
		dest := filepath.Join(dir, "sdk."+format.String())
		config := &models.GenerateConfig{Inputs: []string{bin}, Destination: dest, Format: format}
		err := NewGenerator(config, nil).Generate(context.Background())
		if !errors.Is(err, tapi.ErrNoPlatform) {
			t.Fatalf("Generate(%s) error = %v, want ErrNoPlatform", format, err)
		}
		if _, err := os.Stat(dest); !os.IsNotExist(err) {
			t.Errorf("Partial %s archive left behind: %v", format, err)
		}
	}
}

func TestPublicKeyExportFailure(t *testing.T) {
	dir := tempDir(t)
	bin := writeBinary(t, dir, "tool", machotest.ARM64().
		BuildVersion(machotest.PlatformMacOS).
		Dylib("/usr/lib/libFoo.dylib", 0x10000).
		Import("_foo", 1).
		Bytes())

	keyErr := errors.New("no public key")
	config := &models.GenerateConfig{
		Inputs:      []string{bin},
		Destination: filepath.Join(dir, "sdk.zip"),
		Format:      models.FormatZip,
	}
	err := NewGenerator(config, &fakeSigner{keyErr: keyErr}).Generate(context.Background())

	var sgErr *models.SdkGenError
	if !errors.As(err, &sgErr) || sgErr.Type != models.ErrSigning {
		t.Fatalf("Expected signing error, got %v", err)
	}
	if !errors.Is(err, keyErr) {
		t.Errorf("Error %v does not wrap the key export failure", err)
	}
}

func TestCollectDylibsOrderIndependent(t *testing.T) {
	dir := tempDir(t)
	var inputs []string
	for i, b := range []*machotest.Builder{
		machotest.X86_64().BuildVersion(machotest.PlatformMacOS).Dylib("/usr/lib/libA.dylib", 0x10000).Import("_a", 1),
		machotest.ARM64().BuildVersion(machotest.PlatformMacOS).Dylib("/usr/lib/libB.dylib", 0x10000).Dylib("/usr/lib/libA.dylib", 0x10000).Import("_a", 2).Import("_b", 1),
		machotest.ARM64().BuildVersion(machotest.PlatformIOS).Dylib("/usr/lib/libA.dylib", 0x10000).Import("_c", 1),
	} {
		inputs = append(inputs, writeBinary(t, dir, string(rune('a'+i)), b.Bytes()))
	}

	forward, err := CollectDylibs(context.Background(), inputs, 1)
	if err != nil {
		t.Fatalf("CollectDylibs failed: %v", err)
	}
	reversed := []string{inputs[2], inputs[1], inputs[0]}
	backward, err := CollectDylibs(context.Background(), reversed, 3)
	if err != nil {
		t.Fatalf("CollectDylibs failed: %v", err)
	}
	if !reflect.DeepEqual(forward, backward) {
		t.Error("CollectDylibs depends on input order")
	}
	if len(forward) != 2 || len(forward[0].Symbols) != 3 {
		t.Errorf("Unexpected aggregate: %+v", forward)
	}
}
