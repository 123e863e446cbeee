package testutil

import (
	"os"
	"path/filepath"
)

// CleanDir empties the directory named by dirname, keeping only the entries
// named in keeps. A missing directory is not an error.
func CleanDir(dirname string, keeps []string) error {
	ents, err := os.ReadDir(dirname)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	keep := map[string]bool{}
	for _, k := range keeps {
		keep[k] = true
	}

	for _, ent := range ents {
		if keep[ent.Name()] {
			continue
		}
		err = os.RemoveAll(filepath.Join(dirname, ent.Name()))
		if err != nil {
			return err
		}
	}
	return nil
}
