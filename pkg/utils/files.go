package utils

import (
	"path/filepath"
	"strings"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// DefaultOutputPath swaps the extension of inPath for ext, keeping the
// directory. A file without an extension gets ext appended.
func DefaultOutputPath(inPath, ext string) string {
	base := strings.TrimSuffix(inPath, filepath.Ext(inPath))
	return base + ext
}

// IsSource reports whether path names a program in the source language.
func IsSource(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".c")
}
