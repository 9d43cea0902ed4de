package file

import (
	"path/filepath"
	"strings"
)

func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return TrimExt(path) + ext
}

// TrimExt drops the extension of the last path element.
// Dot files such as ".hidden" keep their name.
func TrimExt(path string) string {
	if path == "" {
		return path
	}

	dir := filepath.Dir(path)
	filename := filepath.Base(path)
	lastDot := strings.LastIndex(filename, ".")
	if lastDot <= 0 {
		return filepath.Join(dir, filename)
	}
	return filepath.Join(dir, filename[:lastDot])
}
