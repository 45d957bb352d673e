// ABOUTME: Tests for the compress task executor's create/extract round trip
// ABOUTME: Covers tar.gz and zip formats plus format auto-detection from the archive path

package compress

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/corewave/orchestrator/pkg/types"
)

func setupSourceTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestExecutor_CreateThenExtract_TarGz(t *testing.T) {
	exec := New()
	srcDir := setupSourceTree(t)
	archivePath := filepath.Join(t.TempDir(), "out.tar.gz")

	createDef := &types.TaskDefinition{Name: "archive", Spec: map[string]interface{}{
		"path": archivePath, "sources": []interface{}{srcDir},
	}}
	result, err := exec.Execute(context.Background(), createDef, map[string]interface{}{}, time.Second)
	if err != nil {
		t.Fatalf("expected no error on create, got: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected create success, got: %+v", result)
	}
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatalf("expected archive file to exist: %v", err)
	}

	destDir := t.TempDir()
	extractDef := &types.TaskDefinition{Name: "archive", Spec: map[string]interface{}{
		"path": archivePath, "state": "extract", "destination": destDir,
	}}
	result, err = exec.Execute(context.Background(), extractDef, map[string]interface{}{}, time.Second)
	if err != nil {
		t.Fatalf("expected no error on extract, got: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected extract success, got: %+v", result)
	}
	if result.Output["extractedFiles"].(int) < 1 {
		t.Errorf("expected at least one extracted file, got %+v", result.Output)
	}
}

func TestExecutor_CreateThenExtract_Zip(t *testing.T) {
	exec := New()
	srcDir := setupSourceTree(t)
	archivePath := filepath.Join(t.TempDir(), "out.zip")

	createDef := &types.TaskDefinition{Name: "archive", Spec: map[string]interface{}{
		"path": archivePath, "sources": []interface{}{srcDir}, "format": "zip",
	}}
	result, err := exec.Execute(context.Background(), createDef, map[string]interface{}{}, time.Second)
	if err != nil || !result.Success {
		t.Fatalf("expected create success, got result=%+v err=%v", result, err)
	}

	destDir := t.TempDir()
	extractDef := &types.TaskDefinition{Name: "archive", Spec: map[string]interface{}{
		"path": archivePath, "state": "extract", "destination": destDir,
	}}
	result, err = exec.Execute(context.Background(), extractDef, map[string]interface{}{}, time.Second)
	if err != nil || !result.Success {
		t.Fatalf("expected extract success, got result=%+v err=%v", result, err)
	}
}

func TestExecutor_MissingPathFails(t *testing.T) {
	exec := New()
	taskDef := &types.TaskDefinition{Name: "archive", Spec: map[string]interface{}{}}

	result, err := exec.Execute(context.Background(), taskDef, map[string]interface{}{}, time.Second)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure when path is missing")
	}
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]string{
		"out.tar.gz":  formatTarGz,
		"out.tgz":     formatTarGz,
		"out.tar.bz2": formatTarBz2,
		"out.zip":     formatZip,
		"out.unknown": formatTarGz,
	}
	for path, want := range cases {
		if got := detectFormat(path); got != want {
			t.Errorf("detectFormat(%q) = %q, want %q", path, got, want)
		}
	}
}
