// Package workspace exposes read-only file access under a single root
// directory, for use as agent tools.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathError is a machine-readable error body surfaced to the model as JSON.
type PathError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *PathError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

const (
	CodeOutsideRoot = "ERR_PATH_OUTSIDE_ROOT"
	CodeDenied      = "ERR_DENIED_READ"
	CodeNotAFile    = "ERR_NOT_A_FILE"
)

// denied lists top-level entries that are never readable.
var denied = []string{".git", ".agent"}

type Root struct {
	dir string
}

// Open resolves dir (the working directory when empty) to an absolute,
// symlink-free path.
func Open(dir string) (*Root, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getwd: %w", err)
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("abs(%s): %w", dir, err)
	}
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}
	return &Root{dir: abs}, nil
}

func (r *Root) Dir() string { return r.dir }

// Resolve maps rel to an absolute path inside the root. Absolute inputs,
// parent traversal and symlink escapes are rejected, as is anything under a
// denied entry.
func (r *Root) Resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", &PathError{Code: CodeOutsideRoot, Message: "absolute paths are not allowed"}
	}
	candidate := filepath.Join(r.dir, filepath.Clean(rel))

	// Resolve the leaf if it exists, otherwise its parent, so an escape via
	// a symlinked directory is still caught.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else if parent, err := filepath.EvalSymlinks(filepath.Dir(candidate)); err == nil {
		candidate = filepath.Join(parent, filepath.Base(candidate))
	}

	out, err := filepath.Rel(r.dir, candidate)
	if err != nil || out == ".." || strings.HasPrefix(out, ".."+string(filepath.Separator)) || filepath.IsAbs(out) {
		return "", &PathError{Code: CodeOutsideRoot, Message: "requested path resolves outside the workspace root"}
	}
	slashed := filepath.ToSlash(out)
	for _, d := range denied {
		if slashed == d || strings.HasPrefix(slashed, d+"/") {
			return "", &PathError{Code: CodeDenied, Message: "reads under " + d + "/ are not allowed"}
		}
	}
	return candidate, nil
}

// ReadFile returns the content of the regular file at rel.
func (r *Root) ReadFile(rel string) (string, error) {
	abs, err := r.Resolve(rel)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !fi.Mode().IsRegular() {
		return "", &PathError{Code: CodeNotAFile, Message: "path is not a regular file"}
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ListFiles returns the entries of the directory at rel, non-recursively.
// Directories carry a trailing "/".
func (r *Root) ListFiles(rel string) ([]string, error) {
	if rel == "" {
		rel = "."
	}
	abs, err := r.Resolve(rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return names, nil
}
