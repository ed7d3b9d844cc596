// Package ingest loads authored fragment files into the store. Unchanged
// files are skipped by content hash; files removed from the content tree
// have their fragments deleted.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"nocturne/internal/config"
	"nocturne/internal/parser"
)

type Result struct {
	FragmentsUpserted int
	FragmentsRemoved  int
	FilesSkipped      int
	Errors            []error
}

type Options struct {
	// Full reprocesses every file regardless of stored hashes.
	Full bool
}

func Run(ctx context.Context, cfg *config.ProjectConfig, db Store, options Options) (*Result, error) {
	if err := db.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	var existingHashes map[string]string
	if !options.Full {
		var err error
		existingHashes, err = db.GetSourceHashes(ctx)
		if err != nil {
			return nil, fmt.Errorf("get source hashes: %w", err)
		}
	}

	files, err := walkContentFiles(cfg.Content.Paths, cfg.Content.Exclude)
	if err != nil {
		return nil, fmt.Errorf("walking content files: %w", err)
	}

	result := &Result{}
	for _, path := range files {
		hash, err := computeHash(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("hashing %s: %w", path, err))
			continue
		}
		if !options.Full {
			if existing, ok := existingHashes[path]; ok && existing == hash {
				result.FilesSkipped++
				continue
			}
		}

		doc, err := parser.ParseFile(path)
		if err != nil {
			if errors.Is(err, parser.ErrNoFrontmatter) || errors.Is(err, parser.ErrMissingType) {
				result.FilesSkipped++
				continue
			}
			result.Errors = append(result.Errors, fmt.Errorf("parsing %s: %w", path, err))
			continue
		}

		fragment, err := doc.Fragment(mintID(path))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("converting %s: %w", path, err))
			continue
		}
		fragment.SourceHash = hash

		if err := db.UpsertFragment(ctx, fragment); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("upserting %s: %w", path, err))
			continue
		}
		result.FragmentsUpserted++
	}

	removed, err := db.RemoveStaleFragments(ctx, files)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("removing stale fragments: %w", err))
	} else {
		result.FragmentsRemoved = int(removed)
	}

	return result, nil
}

// mintID derives a stable fragment id from the source path, so files
// without an authored id keep the same id across re-ingests.
func mintID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(filepath.ToSlash(path))).String()
}

func walkContentFiles(roots []string, excludes []string) ([]string, error) {
	excluded := make([]string, 0, len(excludes))
	for _, path := range excludes {
		if path == "" {
			continue
		}
		excluded = append(excluded, filepath.Clean(path))
	}

	var files []string
	for _, root := range roots {
		if root == "" {
			continue
		}
		root = filepath.Clean(root)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && isExcluded(path, excluded) {
				return filepath.SkipDir
			}
			if d.IsDir() {
				return nil
			}
			if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
				return nil
			}
			if isExcluded(path, excluded) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func isExcluded(path string, excludes []string) bool {
	clean := filepath.Clean(path)
	for _, exclude := range excludes {
		if exclude == clean || strings.HasPrefix(clean, exclude+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

func computeHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
