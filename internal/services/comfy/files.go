package comfy

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"darkroom/internal/services"
	"darkroom/internal/workflows"
)

// StageInput copies a source image into the server's input directory and
// returns the filename the workflow graph should reference. A name collision
// gets a fresh random-seed filename instead of overwriting.
func (c *Client) StageInput(sourcePath string) (string, error) {
	if err := os.MkdirAll(c.inputDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure input dir: %w", err)
	}

	filename := filepath.Base(sourcePath)
	target := filepath.Join(c.inputDir, filename)
	ext := filepath.Ext(filename)
	for {
		if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
			break
		}
		filename = fmt.Sprintf("%d%s", workflows.RandomSeed(), ext)
		target = filepath.Join(c.inputDir, filename)
	}

	if err := copyFile(sourcePath, target); err != nil {
		return "", fmt.Errorf("stage input image: %w", err)
	}
	return filename, nil
}

// LocateOutput walks the server's output directory for the first file whose
// name starts with the given prefix.
func (c *Client) LocateOutput(prefix string) (string, error) {
	var found string
	err := filepath.WalkDir(c.outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), prefix) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "comfy", "locate output", "walk output dir", err)
	}
	if found == "" {
		return "", services.Wrap(services.ErrNotFound, "comfy", "locate output", "no file with prefix "+prefix, nil)
	}
	return found, nil
}

func copyFile(sourcePath, targetPath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dest, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := dest.Sync(); err != nil {
		dest.Close()
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := dest.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}
