// Package codebase gives the dev bot read-only access to a repository
// checkout.
package codebase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/iamvkosarev/amc-discord/internal/model"
)

const (
	MaxFileSize          = 1 << 20
	DefaultSearchResults = 20
	DefaultGrepResults   = 30
	MaxRecursiveEntries  = 100
)

var (
	ErrOutsideRepo = errors.New("path is outside the repository")
	ErrNotFound    = errors.New("path does not exist")
	ErrNotFile     = errors.New("not a file")
	ErrNotDir      = errors.New("not a directory")
	ErrTooLarge    = errors.New("file is too large")
	ErrBinary      = errors.New("file appears to be binary")
)

var excludedNames = []string{
	".git",
	"__pycache__",
	"node_modules",
	".direnv",
	".venv",
	"result",
	".pytest_cache",
	".ruff_cache",
	"map_tiles",
	".DS_Store",
}

type Explorer struct {
	root string
}

func New(repoPath string) (*Explorer, error) {
	root, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repo path %s: %w", repoPath, err)
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return nil, fmt.Errorf("repo path does not exist: %s", repoPath)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("repo path is not a directory: %s", repoPath)
	}
	return &Explorer{root: root}, nil
}

func (e *Explorer) Root() string {
	return e.root
}

func isExcluded(name string) bool {
	return slices.Contains(excludedNames, name)
}

// resolve maps a repo-relative path to an absolute one, refusing anything
// that escapes the root, including through symlinks.
func (e *Explorer) resolve(rel string) (string, error) {
	if rel == "" {
		rel = "."
	}
	joined := filepath.Join(e.root, filepath.FromSlash(rel))
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if !within(e.root, joined) {
			return "", fmt.Errorf("%w: %s", ErrOutsideRepo, rel)
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	if !within(e.root, resolved) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRepo, rel)
	}
	return resolved, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// walk visits files and directories under dir in lexical order, skipping
// excluded names entirely.
func (e *Explorer) walk(ctx context.Context, dir string, visit func(p string, d fs.DirEntry) (stop bool)) error {
	errStop := errors.New("stop")
	err := filepath.WalkDir(
		dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if p == dir {
				return nil
			}
			if isExcluded(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if visit(p, d) {
				return errStop
			}
			return nil
		},
	)
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}

func (e *Explorer) relative(p string) string {
	rel, err := filepath.Rel(e.root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// SearchFiles finds files whose repo-relative path matches the glob pattern
// at any depth. "**" matches any number of directories and braces expand
// alternatives.
func (e *Explorer) SearchFiles(ctx context.Context, pattern string, maxResults int) ([]model.FileEntry, error) {
	pattern = strings.TrimPrefix(strings.TrimSpace(pattern), "/")
	if pattern == "" {
		return nil, errors.New("pattern is empty")
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	if maxResults <= 0 {
		maxResults = DefaultSearchResults
	}
	if !strings.HasPrefix(pattern, "**") {
		pattern = "**/" + pattern
	}

	results := make([]model.FileEntry, 0)
	err := e.walk(
		ctx, e.root, func(p string, d fs.DirEntry) bool {
			if d.IsDir() {
				return false
			}
			rel := e.relative(p)
			if ok, err := doublestar.Match(pattern, rel); err != nil || !ok {
				return false
			}
			results = append(results, fileEntry(rel, "", d))
			return len(results) >= maxResults
		},
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return results, nil
}

// ReadFile returns the whole file, or numbered lines when a range is given.
// Line numbers are 1-based and inclusive; zero means open-ended.
func (e *Explorer) ReadFile(rel string, startLine, endLine int) (string, error) {
	p, err := e.resolve(rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotFile, rel)
	}
	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("%w: %s is over 1MB, read a line range instead", ErrTooLarge, rel)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if slices.Contains(data, 0) {
		return "", fmt.Errorf("%w: %s", ErrBinary, rel)
	}
	content := strings.ToValidUTF8(string(data), string(utf8.RuneError))
	if startLine <= 0 && endLine <= 0 {
		return content, nil
	}

	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	start := max(startLine, 1)
	end := len(lines)
	if endLine > 0 && endLine < end {
		end = endLine
	}
	var b strings.Builder
	for i := start; i <= end; i++ {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%4d: %s", i, strings.TrimRight(lines[i-1], " \t\r"))
	}
	return b.String(), nil
}

// Grep does a case-insensitive substring search over text files.
func (e *Explorer) Grep(ctx context.Context, query, rel string, maxResults int) ([]model.GrepMatch, error) {
	if query == "" {
		return nil, errors.New("query is empty")
	}
	if maxResults <= 0 {
		maxResults = DefaultGrepResults
	}
	start, err := e.resolve(rel)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	matches := make([]model.GrepMatch, 0)

	scan := func(p string) bool {
		f, err := os.Open(p)
		if err != nil {
			return false
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxFileSize)
		for lineNumber := 1; scanner.Scan(); lineNumber++ {
			line := scanner.Text()
			if !strings.Contains(strings.ToLower(line), needle) {
				continue
			}
			matches = append(
				matches, model.GrepMatch{
					File:       e.relative(p),
					LineNumber: lineNumber,
					Content:    strings.TrimRight(line, " \t\r"),
				},
			)
			if len(matches) >= maxResults {
				return true
			}
		}
		return false
	}

	info, err := os.Stat(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	if !info.IsDir() {
		scan(start)
		return matches, nil
	}
	err = e.walk(
		ctx, start, func(p string, d fs.DirEntry) bool {
			if d.IsDir() {
				return false
			}
			return scan(p)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("grep failed: %w", err)
	}
	return matches, nil
}

// ListDirectory lists one level sorted by name, or the whole subtree capped
// at MaxRecursiveEntries.
func (e *Explorer) ListDirectory(ctx context.Context, rel string, recursive bool) (model.DirectoryListing, error) {
	dir, err := e.resolve(rel)
	if err != nil {
		return model.DirectoryListing{}, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return model.DirectoryListing{}, fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	if !info.IsDir() {
		return model.DirectoryListing{}, fmt.Errorf("%w: %s", ErrNotDir, rel)
	}

	listing := model.DirectoryListing{Entries: make([]model.FileEntry, 0)}
	if recursive {
		err = e.walk(
			ctx, dir, func(p string, d fs.DirEntry) bool {
				name, _ := filepath.Rel(dir, p)
				listing.Entries = append(listing.Entries, fileEntry("", filepath.ToSlash(name), d))
				if len(listing.Entries) >= MaxRecursiveEntries {
					listing.Warning = fmt.Sprintf(
						"Results truncated at %d items. Use non-recursive listing for specific subdirectories.",
						MaxRecursiveEntries,
					)
					return true
				}
				return false
			},
		)
		if err != nil {
			return model.DirectoryListing{}, fmt.Errorf("list directory failed: %w", err)
		}
		return listing, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return model.DirectoryListing{}, fmt.Errorf("list directory failed: %w", err)
	}
	for _, d := range entries {
		if isExcluded(d.Name()) {
			continue
		}
		entry := fileEntry("", d.Name(), d)
		if d.IsDir() {
			if children, err := os.ReadDir(filepath.Join(dir, d.Name())); err == nil {
				n := len(children)
				entry.NumChildren = &n
			}
		}
		listing.Entries = append(listing.Entries, entry)
	}
	return listing, nil
}

func fileEntry(p, name string, d fs.DirEntry) model.FileEntry {
	entry := model.FileEntry{Path: p, Name: name, Type: "file"}
	if d.IsDir() {
		entry.Type = "directory"
		return entry
	}
	if info, err := d.Info(); err == nil {
		size := info.Size()
		entry.Size = &size
	}
	return entry
}
