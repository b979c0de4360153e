// Package writer hands a lowered model to code emission.
//
// HLS template rendering is done by an external emitter. ManifestWriter is
// the default: it writes the canonical lowered IR, one text file per
// weight variable and, when configured, a tarball of the project.
package writer

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/roach88/fpgalower/internal/config"
	"github.com/roach88/fpgalower/internal/ir"
)

// WeightsDir is the weight file directory relative to the output dir.
const WeightsDir = "firmware/weights"

// ManifestWriter writes the lowered IR to a filesystem.
type ManifestWriter struct {
	fs     afero.Fs
	logger *slog.Logger
}

// Option configures a ManifestWriter.
type Option func(*ManifestWriter)

// WithLogger sets the writer logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *ManifestWriter) { w.logger = l }
}

// NewManifestWriter creates a writer on fs. Use afero.NewOsFs() for disk.
func NewManifestWriter(fs afero.Fs, opts ...Option) *ManifestWriter {
	w := &ManifestWriter{fs: fs, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ManifestPath returns where the manifest of cfg's project is written.
func ManifestPath(cfg *config.Config) string {
	return filepath.Join(cfg.OutputDir(), cfg.ProjectName()+".ir.json")
}

// ArchivePath returns where the project tarball is written.
func ArchivePath(cfg *config.Config) string {
	return filepath.Clean(cfg.OutputDir()) + ".tar.gz"
}

// Emit implements pass.Emitter.
func (w *ManifestWriter) Emit(ctx context.Context, m *ir.Model, cfg *config.Config) error {
	outDir := cfg.OutputDir()
	if err := w.fs.MkdirAll(filepath.Join(outDir, WeightsDir), 0o755); err != nil {
		return errors.Wrapf(err, "create output directory %s", outDir)
	}

	encoded, err := ir.EncodeModel(m)
	if err != nil {
		return errors.Wrap(err, "encode model")
	}
	digest, err := ir.Digest(m)
	if err != nil {
		return errors.Wrap(err, "digest model")
	}
	data, err := ir.MarshalCanonical(map[string]any{
		"project": cfg.ProjectName(),
		"digest":  digest,
		"model":   encoded,
	})
	if err != nil {
		return errors.Wrap(err, "marshal manifest")
	}
	path := ManifestPath(cfg)
	if err := afero.WriteFile(w.fs, path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	w.logger.Info("wrote manifest", "path", path, "size", humanize.Bytes(uint64(len(data))), "digest", digest)

	var total uint64
	for _, n := range m.Nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, wv := range n.Weights() {
			size, err := w.writeWeight(outDir, n, wv)
			if err != nil {
				return err
			}
			total += size
		}
	}
	w.logger.Info("wrote weights", "dir", filepath.Join(outDir, WeightsDir), "size", humanize.Bytes(total))

	if cfg.WriteTar() {
		return w.writeArchive(outDir, ArchivePath(cfg))
	}
	return nil
}

// WeightFileName returns the file a weight variable is written to.
func WeightFileName(n *ir.LayerNode, wv *ir.WeightVariable) string {
	name := wv.ResolvedVarName(n.Index)
	if name == "" {
		name = wv.Name + strconv.Itoa(n.Index)
	}
	return name + ".txt"
}

func (w *ManifestWriter) writeWeight(outDir string, n *ir.LayerNode, wv *ir.WeightVariable) (uint64, error) {
	if wv.Data == nil {
		return 0, nil
	}
	var sb strings.Builder
	for i, v := range wv.Data.Data {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	sb.WriteByte('\n')

	path := filepath.Join(outDir, WeightsDir, WeightFileName(n, wv))
	if err := afero.WriteFile(w.fs, path, []byte(sb.String()), 0o644); err != nil {
		return 0, errors.Wrapf(err, "write weights %s", path)
	}
	return uint64(sb.Len()), nil
}

// writeArchive packs outDir into a gzip-compressed tarball at dst.
func (w *ManifestWriter) writeArchive(outDir, dst string) (err error) {
	f, err := w.fs.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "create archive %s", dst)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close archive")
		}
	}()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	base := filepath.Dir(filepath.Clean(outDir))

	walkErr := afero.Walk(w.fs, outDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		src, err := w.fs.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
	if walkErr != nil {
		return errors.Wrapf(walkErr, "archive %s", outDir)
	}
	if err := tw.Close(); err != nil {
		return errors.Wrap(err, "close tar stream")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "close gzip stream")
	}
	w.logger.Info("wrote archive", "path", dst)
	return nil
}
