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

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// OutputPath swaps the extension of inPath for ext.
func OutputPath(inPath, ext string) string {
	old := filepath.Ext(inPath)
	if old == "" || old == ext {
		return inPath + ext
	}
	return strings.TrimSuffix(inPath, old) + ext
}
