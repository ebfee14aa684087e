package generator

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ralt/sdkgen/internal/macho"
	"github.com/ralt/sdkgen/internal/models"
	"github.com/ralt/sdkgen/internal/scanner"
	"github.com/ralt/sdkgen/internal/signer"
	"github.com/ralt/sdkgen/internal/symlink"
	"github.com/ralt/sdkgen/internal/tapi"
	"github.com/ralt/sdkgen/internal/utils"
	"github.com/ralt/sdkgen/internal/writer"
)

// Generator turns Mach-O inputs into an SDK of text-based stubs
type Generator struct {
	config  *models.GenerateConfig
	signer  signer.Signer
	scanner scanner.Scanner
}

// NewGenerator creates a new SDK generator. s may be nil for unsigned output.
func NewGenerator(config *models.GenerateConfig, s signer.Signer) *Generator {
	return &Generator{
		config:  config,
		signer:  s,
		scanner: scanner.NewFileSystemScanner(),
	}
}

// Generate runs the whole pipeline: input discovery, parsing, stub and
// symlink output, then checksum and signature for archive formats.
func (g *Generator) Generate(ctx context.Context) error {
	cfg := g.config

	inputs, err := scanner.ExpandInputs(ctx, g.scanner, cfg.Inputs)
	if err != nil {
		return &models.SdkGenError{
			Type: models.ErrFileOp,
			Err:  fmt.Errorf("failed to expand inputs: %w", err),
		}
	}
	if len(inputs) == 0 {
		return &models.SdkGenError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("no Mach-O inputs found"),
		}
	}
	logrus.Infof("Processing %d input files", len(inputs))

	links, err := g.explicitLinks()
	if err != nil {
		return err
	}

	dylibs, err := CollectDylibs(ctx, inputs, cfg.Jobs)
	if err != nil {
		return err
	}
	logrus.Infof("Found %d distinct dylibs", len(dylibs))

	tree, err := writer.New(cfg.Destination, cfg.Format)
	if err != nil {
		return &models.SdkGenError{
			Type:  models.ErrArchive,
			Input: cfg.Destination,
			Err:   fmt.Errorf("failed to open destination: %w", err),
		}
	}

	if err := WriteSDK(tree, cfg.DefaultPlatform, dylibs, links); err != nil {
		if aerr := tree.Abort(); aerr != nil {
			logrus.Warnf("Failed to clean up %s: %v", cfg.Destination, aerr)
		}
		return err
	}

	if err := tree.Finish(); err != nil {
		return &models.SdkGenError{
			Type:  models.ErrArchive,
			Input: cfg.Destination,
			Err:   fmt.Errorf("failed to finish sdk: %w", err),
		}
	}

	if cfg.Format.IsArchive() {
		if err := g.publish(); err != nil {
			return err
		}
	}

	logrus.Info("SDK generation completed successfully!")
	logrus.Infof("Output %s: %s", cfg.Format, cfg.Destination)
	return nil
}

// explicitLinks gathers the descriptors given on the command line and in files
func (g *Generator) explicitLinks() ([]symlink.Descriptor, error) {
	var links []symlink.Descriptor
	for _, s := range g.config.Symlinks {
		d, err := symlink.Parse(s)
		if err != nil {
			return nil, &models.SdkGenError{Type: models.ErrSymlink, Err: err}
		}
		links = append(links, d)
	}
	for _, path := range g.config.SymlinkFiles {
		ds, err := symlink.ParseFile(utils.ExpandHome(path))
		if err != nil {
			return nil, &models.SdkGenError{Type: models.ErrSymlink, Input: path, Err: err}
		}
		links = append(links, ds...)
	}
	return links, nil
}

// publish writes the checksum file and, with a signer, the signature and
// the public key that verifies it
func (g *Generator) publish() error {
	dest := g.config.Destination

	sum, err := utils.WriteChecksumFile(dest)
	if err != nil {
		return &models.SdkGenError{
			Type:  models.ErrFileOp,
			Input: dest,
			Err:   fmt.Errorf("failed to write checksum: %w", err),
		}
	}
	logrus.Infof("SHA256 %s (%d bytes)", sum.SHA256, sum.Size)
	logrus.Debugf("SHA512 %s", sum.SHA512)

	if g.signer == nil {
		return nil
	}
	sigPath, err := signer.SignFile(g.signer, dest)
	if err != nil {
		return &models.SdkGenError{
			Type:  models.ErrSigning,
			Input: dest,
			Err:   fmt.Errorf("failed to sign sdk: %w", err),
		}
	}
	logrus.Infof("Signature written to %s", sigPath)

	pub, err := g.signer.GetPublicKey()
	if err != nil {
		return &models.SdkGenError{
			Type:  models.ErrSigning,
			Input: dest,
			Err:   fmt.Errorf("failed to export public key: %w", err),
		}
	}
	if err := utils.WriteFile(dest+".pub", pub, 0644); err != nil {
		return &models.SdkGenError{
			Type:  models.ErrFileOp,
			Input: dest,
			Err:   fmt.Errorf("failed to write public key: %w", err),
		}
	}
	logrus.Infof("Public key written to %s.pub", dest)
	return nil
}

// CollectDylibs parses every input with up to jobs workers and aggregates
// the results in input order. The first failure cancels the rest.
func CollectDylibs(ctx context.Context, inputs []string, jobs int) ([]*models.DylibInfo, error) {
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	results := make([][]*models.DylibInfo, len(inputs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)

	for i, path := range inputs {
		i, path := i, path
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			recs, err := extractFile(path)
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	agg := tapi.NewAggregator()
	for i, recs := range results {
		agg.Add(recs...)
		logrus.Tracef("%s merged, %d install names so far", inputs[i], agg.Len())
	}
	logrus.Debugf("Merged %d inputs into %d install names", len(inputs), agg.Len())
	return agg.Dylibs(), nil
}

func extractFile(path string) ([]*models.DylibInfo, error) {
	logrus.Debugf("Parsing %s", path)

	var all []*models.DylibInfo
	err := macho.ReadFile(path, func(img *macho.Image) error {
		recs, err := macho.Extract(img)
		if err != nil {
			return fmt.Errorf("%s slice: %w", img.Arch, err)
		}
		all = append(all, recs...)
		return nil
	})
	if err != nil {
		return nil, &models.SdkGenError{Type: models.ErrMachOParse, Input: path, Err: err}
	}

	logrus.Debugf("%s: %d dylib references", path, len(all))
	return all, nil
}

// WriteSDK writes one stub per dylib, then the explicit links and the
// version-less links inferred from stub names. An inferred link that would
// replace a stub is skipped.
func WriteSDK(tree writer.FileTree, defaultPlatform models.Platform, dylibs []*models.DylibInfo, links []symlink.Descriptor) error {
	stubs := make(map[string]struct{}, len(dylibs))
	var inferred []symlink.Descriptor

	for _, d := range dylibs {
		p := tapi.StubPath(d.InstallName)
		if err := writeStub(tree, p, defaultPlatform, d); err != nil {
			return err
		}
		stubs[p] = struct{}{}

		if link, ok := symlink.VersionlessLink(p); ok {
			inferred = append(inferred, link)
		}
	}

	all := append([]symlink.Descriptor(nil), links...)
	for _, link := range inferred {
		if _, isStub := stubs[utils.SafeNormalize(link.Link)]; isStub {
			logrus.Warnf("Not linking %s to %s: a stub already has that name", link.Link, link.Original)
			continue
		}
		all = append(all, link)
	}

	for _, link := range symlink.Dedup(all) {
		if parent := utils.ParentDir(utils.SafeNormalize(link.Link)); parent != "" {
			if err := tree.Mkdirp(parent); err != nil {
				return &models.SdkGenError{Type: models.ErrArchive, Input: link.Link, Err: err}
			}
		}
		if err := tree.NewFileSymlink(link.Original, link.Link); err != nil {
			return &models.SdkGenError{Type: models.ErrSymlink, Input: link.String(), Err: err}
		}
	}
	return nil
}

func writeStub(tree writer.FileTree, p string, defaultPlatform models.Platform, d *models.DylibInfo) error {
	if parent := utils.ParentDir(p); parent != "" {
		if err := tree.Mkdirp(parent); err != nil {
			return &models.SdkGenError{Type: models.ErrArchive, Input: p, Err: err}
		}
	}

	w, err := tree.NewFile(p)
	if err != nil {
		return &models.SdkGenError{Type: models.ErrArchive, Input: p, Err: err}
	}
	if err := tapi.WriteStub(w, defaultPlatform, d); err != nil {
		w.Close()
		return &models.SdkGenError{Type: models.ErrStubGen, Input: d.InstallName, Err: err}
	}
	if err := w.Close(); err != nil {
		return &models.SdkGenError{Type: models.ErrArchive, Input: p, Err: err}
	}

	logrus.Debugf("Wrote %s (%d symbols, %d targets)", p, len(d.Symbols), len(d.Targets))
	return nil
}
