// Package validation checks filesystem inputs and outputs before the
// pipeline touches them, so failures surface as clear errors instead
// of mid-run parse aborts.
package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// exportExtensions lists the file extensions instrument exports ship
// with. Comma and tab delimited exports both commonly carry .csv.
var exportExtensions = map[string]bool{
	".csv": true,
	".txt": true,
	".tsv": true,
}

// FileValidator validates export files and directories for the pipeline
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator. A nil logger falls
// back to slog.Default.
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateExportFile checks that a single export file exists, is a
// regular file with a recognized extension, and is readable.
func (v *FileValidator) ValidateExportFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("Export file does not exist",
			slog.String("file", path))
		return fmt.Errorf("export file %s does not exist", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat export file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !exportExtensions[ext] {
		v.logger.Error("File is not a recognized export",
			slog.String("file", path),
			slog.String("extension", ext))
		return fmt.Errorf("file %s is not a recognized export (extension: %s)", path, ext)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("Export file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("Export file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// CollectExportFiles lists the export files in a directory, sorted by
// name. Hidden files and office lock files are skipped. An existing
// directory with no export files is an error: there is nothing to
// process.
func (v *FileValidator) CollectExportFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("Input directory does not exist",
			slog.String("directory", dir))
		return nil, fmt.Errorf("input directory %s does not exist", dir)
	}
	if err != nil {
		v.logger.Error("Failed to stat input directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		v.logger.Error("Input path is not a directory",
			slog.String("path", dir))
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if !exportExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)

	if len(files) == 0 {
		v.logger.Error("No export files found",
			slog.String("directory", dir))
		return nil, fmt.Errorf("no export files found in %s", dir)
	}

	v.logger.Info("Input directory validated",
		slog.String("directory", dir),
		slog.Int("files_found", len(files)))
	return files, nil
}

// ValidateOutputDirectory ensures the output directory exists, creating
// it if needed, and verifies it is writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(testFile)

	return nil
}
