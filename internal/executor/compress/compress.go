// ABOUTME: compress task executor — creates or extracts tar.gz / tar.bz2 / zip archives
// ABOUTME: bz2 archive creation goes through dsnet/compress/bzip2; extraction degrades gracefully on bad input

package compress

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	bzip2w "github.com/dsnet/compress/bzip2"

	"github.com/corewave/orchestrator/pkg/types"
)

const (
	stateCreate  = "create"
	stateExtract = "extract"

	formatTarGz  = "tar.gz"
	formatTarBz2 = "tar.bz2"
	formatZip    = "zip"
)

// config is the resolved shape of a compress-kind task's input/spec.
type config struct {
	Path        string
	State       string
	Format      string
	Sources     []string
	Destination string
	Exclude     []string
}

// Executor implements a compress-kind TaskDefinition.
type Executor struct{}

func New() *Executor { return &Executor{} }

func (e *Executor) Execute(ctx context.Context, taskDef *types.TaskDefinition, resolvedInput map[string]interface{}, timeout time.Duration) (*types.TaskExecutionResult, error) {
	start := time.Now()

	cfg := parseConfig(resolvedInput, taskDef.Spec)
	if cfg.Path == "" {
		return fail(start, "path is required"), nil
	}
	if cfg.Format == "" {
		cfg.Format = detectFormat(cfg.Path)
	}

	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return fail(start, err.Error()), nil
	}

	var output types.TaskOutput
	switch cfg.State {
	case stateExtract:
		output, err = extract(path, cfg)
	default:
		output, err = create(path, cfg)
	}
	if err != nil {
		return fail(start, err.Error()), nil
	}
	output["path"] = path
	output["format"] = cfg.Format

	return &types.TaskExecutionResult{Success: true, Output: output, Duration: time.Since(start)}, nil
}

func fail(start time.Time, msg string) *types.TaskExecutionResult {
	return &types.TaskExecutionResult{Success: false, ErrKind: "ExecutionError", ErrMsg: msg, Duration: time.Since(start)}
}

func parseConfig(resolvedInput, spec map[string]interface{}) *config {
	cfg := &config{State: stateCreate}
	merge := func(m map[string]interface{}) {
		if v, ok := m["path"].(string); ok {
			cfg.Path = v
		}
		if v, ok := m["state"].(string); ok {
			cfg.State = v
		}
		if v, ok := m["format"].(string); ok {
			cfg.Format = v
		}
		if v, ok := m["destination"].(string); ok {
			cfg.Destination = v
		}
		if v, ok := m["sources"].([]interface{}); ok {
			cfg.Sources = toStrings(v)
		}
		if v, ok := m["exclude"].([]interface{}); ok {
			cfg.Exclude = toStrings(v)
		}
	}
	merge(spec)
	merge(resolvedInput)
	return cfg
}

func toStrings(vs []interface{}) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func detectFormat(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return formatTarGz
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return formatTarBz2
	case strings.HasSuffix(lower, ".zip"):
		return formatZip
	default:
		return formatTarGz
	}
}

func excluded(path string, cfg *config) bool {
	for _, pattern := range cfg.Exclude {
		if matchPattern(path, pattern) {
			return true
		}
	}
	return false
}

func matchPattern(path, pattern string) bool {
	switch {
	case pattern == path:
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(path, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(path, pattern[:len(pattern)-1])
	default:
		return strings.Contains(path, pattern)
	}
}

func create(archivePath string, cfg *config) (types.TaskOutput, error) {
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return nil, err
	}

	file, err := os.Create(archivePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var archived []string
	switch cfg.Format {
	case formatTarGz:
		gzw := gzip.NewWriter(file)
		defer gzw.Close()
		archived, err = writeTar(tar.NewWriter(gzw), cfg)
	case formatTarBz2:
		bzw, werr := bzip2w.NewWriter(file, &bzip2w.WriterConfig{Level: bzip2w.DefaultCompression})
		if werr != nil {
			return nil, werr
		}
		defer bzw.Close()
		archived, err = writeTar(tar.NewWriter(bzw), cfg)
	case formatZip:
		archived, err = writeZip(file, cfg)
	default:
		return nil, fmt.Errorf("unsupported format for create: %s", cfg.Format)
	}
	if err != nil {
		return nil, err
	}

	return types.TaskOutput{"changed": true, "archivedFiles": len(archived)}, nil
}

func writeTar(tw *tar.Writer, cfg *config) ([]string, error) {
	defer tw.Close()
	var archived []string
	for _, source := range cfg.Sources {
		srcAbs, err := filepath.Abs(source)
		if err != nil {
			return nil, err
		}
		err = filepath.Walk(srcAbs, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if excluded(path, cfg) {
				return nil
			}
			header, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			header.Name = path
			if err := tw.WriteHeader(header); err != nil {
				return err
			}
			if !info.IsDir() {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				if _, err := io.Copy(tw, f); err != nil {
					return err
				}
				archived = append(archived, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return archived, nil
}

func writeZip(file *os.File, cfg *config) ([]string, error) {
	zw := zip.NewWriter(file)
	defer zw.Close()
	var archived []string
	for _, source := range cfg.Sources {
		srcAbs, err := filepath.Abs(source)
		if err != nil {
			return nil, err
		}
		err = filepath.Walk(srcAbs, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if info.IsDir() || excluded(path, cfg) {
				return nil
			}
			entry, err := zw.Create(path)
			if err != nil {
				return err
			}
			src, err := os.Open(path)
			if err != nil {
				return err
			}
			defer src.Close()
			if _, err := io.Copy(entry, src); err != nil {
				return err
			}
			archived = append(archived, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return archived, nil
}

func extract(archivePath string, cfg *config) (types.TaskOutput, error) {
	if _, err := os.Stat(archivePath); err != nil {
		return nil, fmt.Errorf("archive does not exist: %w", err)
	}
	destDir := cfg.Destination
	if destDir == "" {
		destDir = filepath.Dir(archivePath)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var extracted []string
	switch cfg.Format {
	case formatTarGz:
		gzr, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer gzr.Close()
		extracted, err = extractTar(tar.NewReader(gzr), destDir, cfg)
		if err != nil {
			return nil, err
		}
	case formatTarBz2:
		extracted, err = extractTar(tar.NewReader(bzip2.NewReader(file)), destDir, cfg)
		if err != nil {
			return nil, err
		}
	case formatZip:
		reader, err := zip.OpenReader(archivePath)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		for _, f := range reader.File {
			if excluded(f.Name, cfg) {
				continue
			}
			target := filepath.Join(destDir, f.Name)
			if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
				continue
			}
			if f.FileInfo().IsDir() {
				os.MkdirAll(target, f.Mode())
				continue
			}
			if err := extractZipEntry(f, target); err != nil {
				return nil, err
			}
			extracted = append(extracted, target)
		}
	default:
		return nil, fmt.Errorf("unsupported format for extract: %s", cfg.Format)
	}

	return types.TaskOutput{"changed": true, "extractedFiles": len(extracted), "destination": destDir}, nil
}

func extractTar(tr *tar.Reader, destDir string, cfg *config) ([]string, error) {
	var extracted []string
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if excluded(header.Name, cfg) {
			continue
		}
		target := filepath.Join(destDir, header.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			continue
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, err
			}
			out, err := os.Create(target)
			if err != nil {
				return nil, err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return nil, err
			}
			out.Close()
			extracted = append(extracted, target)
		}
	}
	return extracted, nil
}

func extractZipEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, rc)
	return err
}
