package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/comigor/cidion/internal/logger"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// File tool names.
const (
	ReadFileName  = "read_file"
	WriteFileName = "write_file"
	ListFilesName = "list_files"
)

// ReadFileInput is the argument bundle of read_file.
type ReadFileInput struct {
	FilePath string `json:"file_path" required:"true" validate:"required" description:"Path to the file to read"`
}

// WriteFileInput is the argument bundle of write_file.
type WriteFileInput struct {
	FilePath string `json:"file_path" required:"true" validate:"required" description:"Path to the file to write"`
	Content  string `json:"content" required:"true" description:"Content to write to the file"`
}

// ListFilesInput is the argument bundle of list_files.
type ListFilesInput struct {
	DirectoryPath string `json:"directory_path" required:"true" validate:"required" description:"Path to the directory to list"`
}

// NewReadFileTool reads files from fs, truncating the content to maxLength bytes.
func NewReadFileTool(fs afero.Fs, maxLength int) Tool {
	return MustNewTypedTool(ReadFileName, "Read the contents of a file",
		func(ctx context.Context, in ReadFileInput) (string, error) {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			f, err := fs.Open(in.FilePath)
			if errors.Is(err, os.ErrNotExist) {
				return "File not found: " + in.FilePath, nil
			}
			if err != nil {
				return "", fmt.Errorf("reading file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return "", fmt.Errorf("reading file: %w", err)
			}
			if !info.Mode().IsRegular() {
				return "", fmt.Errorf("reading file: %s is not a regular file", in.FilePath)
			}

			// one byte past the limit is enough to know truncation is needed
			r := io.Reader(f)
			if maxLength > 0 {
				r = io.LimitReader(f, int64(maxLength)+1)
			}
			content, err := io.ReadAll(r)
			if err != nil {
				return "", fmt.Errorf("reading file: %w", err)
			}
			logger.L.Debug("read file", "path", in.FilePath, "size", info.Size())
			return truncate(string(content), maxLength), nil
		})
}

// NewWriteFileTool writes files into fs, creating parent directories.
func NewWriteFileTool(fs afero.Fs) Tool {
	return MustNewTypedTool(WriteFileName, "Write content to a file",
		func(ctx context.Context, in WriteFileInput) (string, error) {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			if dir := filepath.Dir(in.FilePath); dir != "." && dir != "" {
				if err := fs.MkdirAll(dir, 0o755); err != nil {
					return "", fmt.Errorf("writing file: %w", err)
				}
			}
			if err := afero.WriteFile(fs, in.FilePath, []byte(in.Content), 0o644); err != nil {
				return "", fmt.Errorf("writing file: %w", err)
			}
			logger.L.Info("wrote file", "path", in.FilePath, "size", len(in.Content))
			return "Successfully wrote to " + in.FilePath, nil
		})
}

// NewListFilesTool lists a directory of fs, directories first.
func NewListFilesTool(fs afero.Fs) Tool {
	return MustNewTypedTool(ListFilesName, "List files and directories in a path",
		func(ctx context.Context, in ListFilesInput) (string, error) {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			entries, err := afero.ReadDir(fs, in.DirectoryPath)
			if err != nil {
				return "", fmt.Errorf("listing directory: %w", err)
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

			var dirs, files []string
			for _, e := range entries {
				if e.IsDir() {
					dirs = append(dirs, fmt.Sprintf("📁 %s/", e.Name()))
				} else {
					files = append(files, fmt.Sprintf("📄 %s (%s)", e.Name(), humanize.Bytes(uint64(e.Size()))))
				}
			}

			var out []string
			if len(dirs) > 0 {
				out = append(out, "Directories:")
				out = append(out, dirs...)
			}
			if len(files) > 0 {
				out = append(out, "Files:")
				out = append(out, files...)
			}
			if len(out) == 0 {
				return "Directory is empty", nil
			}
			return strings.Join(out, "\n"), nil
		})
}

// WorkspaceFs returns the OS filesystem, confined to dir when dir is set.
func WorkspaceFs(dir string) afero.Fs {
	if dir == "" {
		return afero.NewOsFs()
	}
	return afero.NewBasePathFs(afero.NewOsFs(), dir)
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
