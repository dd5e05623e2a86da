// Package util - Filesystem helpers for the classification CLI.
package util

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Name is the base name of the image file.
	Name string
	// Data is the raw bytes of the image file.
	Data []byte
}

// LoadDirectoryImageFiles reads all image files from a directory, sorted by
// name. Entries with unsupported extensions are ignored; files that cannot
// be read are skipped with a log line instead of failing the whole batch.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The readable images, possibly empty.
//   - error: An error if the directory itself cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var images []ImageFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		switch strings.ToLower(filepath.Ext(file.Name())) {
		case ".jpg", ".jpeg", ".png", ".webp":
		default:
			continue
		}

		imgPath := filepath.Join(dir, file.Name())
		data, readErr := os.ReadFile(imgPath)
		if readErr != nil {
			log.Printf("skipping unreadable image %s: %v", imgPath, readErr)
			continue
		}
		images = append(images, ImageFile{
			Path: imgPath,
			Name: file.Name(),
			Data: data,
		})
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Name < images[j].Name
	})

	return images, nil
}
