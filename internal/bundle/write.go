package bundle

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path through a dotted temp file in the same
// directory followed by a rename. On POSIX the rename is atomic, so readers
// observe either the old content or the new content, never a torn write.
//
// The temp name is "." + base + ".tmp", the same convention the sync
// transport uses. A crash between write and rename leaves a file the next
// launch's partial-sync check recognizes and repair removes.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(path)
	tmp := filepath.Join(dir, TempPrefix+base+".tmp")
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", base, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", base, err)
	}
	return nil
}

// IsTempName reports whether name follows the dotted temporary-file
// convention: a leading dot and one of the recognized temp suffixes.
func IsTempName(name string) bool {
	_, ok := TempTarget(name)
	return ok
}

// TempTarget returns the file a dotted temporary name was being written for.
// ".history.crdt.tmp" maps to "history.crdt". The second return is false when
// name does not follow the temp convention.
func TempTarget(name string) (string, bool) {
	if len(name) < 2 || name[0] != '.' {
		return "", false
	}
	for _, suffix := range TempSuffixes {
		if len(name) > len(TempPrefix)+len(suffix) && name[len(name)-len(suffix):] == suffix {
			return name[len(TempPrefix) : len(name)-len(suffix)], true
		}
	}
	return "", false
}
