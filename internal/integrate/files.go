package integrate

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const DefaultPattern = "*.tiff,*.tif"

// SplitPatterns splits a comma separated pattern list and trims each entry.
// Empty entries are dropped.
func SplitPatterns(pattern string) []string {
	var out []string
	for _, p := range strings.Split(pattern, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CollectFiles globs every pattern inside folder and returns the matches sorted.
// A file matched by two patterns is listed twice. Dot files only match patterns
// that themselves start with a dot.
func CollectFiles(folder, pattern string) ([]string, error) {
	folder, err := filepath.Abs(folder)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, p := range SplitPatterns(pattern) {
		matches, err := filepath.Glob(filepath.Join(folder, p))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if hidden(filepath.Base(m), p) {
				continue
			}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, &NoMatchingFilesError{Folder: folder, Pattern: pattern}
	}
	sort.Strings(files)
	return files, nil
}

// Matches reports whether the base name of path matches one of the patterns.
func Matches(path, pattern string) bool {
	base := filepath.Base(path)
	for _, p := range SplitPatterns(pattern) {
		if ok, _ := filepath.Match(p, base); ok && !hidden(base, p) {
			return true
		}
	}
	return false
}

func hidden(base, pattern string) bool {
	return strings.HasPrefix(base, ".") && !strings.HasPrefix(filepath.Base(pattern), ".")
}

// OutputPrefix normalizes a user supplied output prefix: a prefix with a
// directory part is made absolute, and trailing underscores are removed.
func OutputPrefix(raw string) (string, error) {
	prefix := raw
	if strings.ContainsRune(prefix, filepath.Separator) {
		abs, err := filepath.Abs(prefix)
		if err != nil {
			return "", err
		}
		prefix = abs
	}
	return strings.TrimRight(prefix, "_"), nil
}

// EnsurePrefixDir creates the directory part of a normalized prefix.
func EnsurePrefixDir(prefix string) error {
	if !strings.ContainsRune(prefix, filepath.Separator) {
		return nil
	}
	return os.MkdirAll(filepath.Dir(prefix), 0o755)
}

// Stem returns the file name of path without directory and extension. Leading
// dots are part of the name, not an extension.
func Stem(path string) string {
	base := filepath.Base(path)
	trimmed := strings.TrimLeft(base, ".")
	lead := base[:len(base)-len(trimmed)]
	return lead + strings.TrimSuffix(trimmed, filepath.Ext(trimmed))
}

// OutputName is the pattern file written for image path: <prefix>_<stem>.txt.
func OutputName(prefix, path string) string {
	return prefix + "_" + Stem(path) + ".txt"
}
