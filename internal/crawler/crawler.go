package crawler

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Crawler finds RBI documents on disk.
type Crawler struct {
	ext     string
	ignored []string
}

// NewCrawler creates a crawler for *.rbi files.
func NewCrawler() *Crawler {
	return &Crawler{
		ext:     ".rbi",
		ignored: []string{".git", "node_modules"},
	}
}

// Scan walks root in lexical order and calls onFile for every document.
// root may also be a single file, which is yielded as is. A missing root
// yields nothing.
func (c *Crawler) Scan(root string, onFile func(path string) error) error {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return onFile(root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !strings.HasSuffix(d.Name(), c.ext) {
			return nil
		}
		return onFile(path)
	})
}

// Files collects every document under root.
func (c *Crawler) Files(root string) ([]string, error) {
	var files []string
	err := c.Scan(root, func(path string) error {
		files = append(files, filepath.ToSlash(path))
		return nil
	})
	return files, err
}
