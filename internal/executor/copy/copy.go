// ABOUTME: copy task executor — copies one file between any two filesystem.Locate-able URIs
// ABOUTME: local paths, s3://, and sftp:// sources/destinations are resolved uniformly via afero

package copy

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"

	"github.com/corewave/orchestrator/internal/filesystem"
	"github.com/corewave/orchestrator/pkg/types"
)

// Executor implements a copy-kind TaskDefinition. Its Spec/resolvedInput carry:
//
//	src, dest: required URIs (bare paths are local; s3://bucket/key, sftp://host/path)
//	createDirs: bool, default true
//	credentials: map of aws/ssh fields forwarded to filesystem.Credentials
type Executor struct{}

func New() *Executor { return &Executor{} }

func (e *Executor) Execute(ctx context.Context, taskDef *types.TaskDefinition, resolvedInput map[string]interface{}, timeout time.Duration) (*types.TaskExecutionResult, error) {
	start := time.Now()

	src, _ := stringField(resolvedInput, taskDef.Spec, "src")
	dest, _ := stringField(resolvedInput, taskDef.Spec, "dest")
	if src == "" || dest == "" {
		return fail(start, "copy task requires both 'src' and 'dest'"), nil
	}
	createDirs := boolField(resolvedInput, taskDef.Spec, "createDirs", true)
	creds := credentialsFrom(resolvedInput, taskDef.Spec)

	srcLoc, err := filesystem.Locate(src)
	if err != nil {
		return fail(start, err.Error()), nil
	}
	destLoc, err := filesystem.Locate(dest)
	if err != nil {
		return fail(start, err.Error()), nil
	}

	srcFs, err := filesystem.Resolve(srcLoc, creds)
	if err != nil {
		return fail(start, err.Error()), nil
	}
	destFs, err := filesystem.Resolve(destLoc, creds)
	if err != nil {
		return fail(start, err.Error()), nil
	}

	written, err := copyFile(srcFs, srcLoc.Path, destFs, destLoc.Path, createDirs)
	if err != nil {
		return fail(start, err.Error()), nil
	}

	output := types.TaskOutput{"src": src, "dest": dest, "bytesCopied": written}
	return &types.TaskExecutionResult{Success: true, Output: output, Duration: time.Since(start)}, nil
}

func copyFile(srcFs afero.Fs, srcPath string, destFs afero.Fs, destPath string, createDirs bool) (int64, error) {
	in, err := srcFs.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	if createDirs {
		if err := destFs.MkdirAll(parentDir(destPath), 0o755); err != nil {
			return 0, fmt.Errorf("creating destination directory: %w", err)
		}
	}

	out, err := destFs.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("creating destination: %w", err)
	}
	defer out.Close()

	return io.Copy(out, in)
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func fail(start time.Time, msg string) *types.TaskExecutionResult {
	return &types.TaskExecutionResult{Success: false, ErrKind: "ExecutionError", ErrMsg: msg, Duration: time.Since(start)}
}

func stringField(resolvedInput, spec map[string]interface{}, key string) (string, bool) {
	if v, ok := resolvedInput[key].(string); ok {
		return v, true
	}
	if v, ok := spec[key].(string); ok {
		return v, true
	}
	return "", false
}

func boolField(resolvedInput, spec map[string]interface{}, key string, def bool) bool {
	if v, ok := resolvedInput[key].(bool); ok {
		return v
	}
	if v, ok := spec[key].(bool); ok {
		return v
	}
	return def
}

func credentialsFrom(resolvedInput, spec map[string]interface{}) *filesystem.Credentials {
	creds := &filesystem.Credentials{}
	merge := func(m map[string]interface{}) {
		raw, ok := m["credentials"].(map[string]interface{})
		if !ok {
			return
		}
		if v, ok := raw["awsAccessKeyId"].(string); ok {
			creds.AWSAccessKeyID = v
		}
		if v, ok := raw["awsSecretAccessKey"].(string); ok {
			creds.AWSSecretAccessKey = v
		}
		if v, ok := raw["awsSessionToken"].(string); ok {
			creds.AWSSessionToken = v
		}
		if v, ok := raw["awsRegion"].(string); ok {
			creds.AWSRegion = v
		}
		if v, ok := raw["sshUser"].(string); ok {
			creds.SSHUser = v
		}
		if v, ok := raw["sshPassword"].(string); ok {
			creds.SSHPassword = v
		}
		if v, ok := raw["sshPrivateKey"].(string); ok {
			creds.SSHPrivateKey = v
		}
		if v, ok := raw["sshPrivateKeyPath"].(string); ok {
			creds.SSHPrivateKeyPath = v
		}
	}
	merge(spec)
	merge(resolvedInput)
	return creds
}
