package builtin

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	loggerv2 "jarvis/logger/v2"
	"jarvis/tools"
)

const defaultReadLimit = 20000

func fileTools(d Deps) []tools.Definition {
	f := &fileOps{home: d.HomeDir, logger: d.Logger, now: time.Now}
	return []tools.Definition{
		{
			Name:        "move_file",
			Description: "Moves a file into a destination folder, creating the folder if needed. A numeric suffix is added when the name is taken.",
			Category:    categoryFileOps,
			Schema: tools.NewSchema(
				tools.Required("source_path", tools.TypeString, "Full path of the file to move."),
				tools.Required("destination_folder", tools.TypeString, "Full path of the folder to move the file into."),
				tools.Optional("dry_run", tools.TypeBoolean, "Describe the action without performing it.", false),
			),
			Func: f.move,
		},
		{
			Name:        "rename_file",
			Description: "Renames a file in place. The new name should include the extension.",
			Category:    categoryFileOps,
			Schema: tools.NewSchema(
				tools.Required("current_path", tools.TypeString, "Full path of the file to rename."),
				tools.Required("new_name", tools.TypeString, "New file name, e.g. 'final.txt'."),
				tools.Optional("dry_run", tools.TypeBoolean, "Describe the action without performing it.", false),
			),
			Func: f.rename,
		},
		{
			Name:        "delete_junk_file",
			Description: "Deletes a file classified as temporary or junk.",
			Category:    categoryFileOps,
			Schema: tools.NewSchema(
				tools.Required("file_path", tools.TypeString, "Full path of the file to delete."),
				tools.Required("reason", tools.TypeString, "Why the file is junk."),
				tools.Optional("dry_run", tools.TypeBoolean, "Describe the action without performing it.", false),
			),
			Func: f.deleteJunk,
		},
		{
			Name:        "create_document",
			Description: "Creates a text document with the given content. folder_path may be a full path or 'Desktop'/'Documents'.",
			Category:    categoryFileOps,
			Schema: tools.NewSchema(
				tools.Required("filename", tools.TypeString, "Name of the file to create."),
				tools.Required("content", tools.TypeString, "Text content of the document."),
				tools.Optional("folder_path", tools.TypeString, "Target folder.", "Desktop"),
			),
			Func: f.createDocument,
		},
		{
			Name:        "read_text_file",
			Description: "Reads a UTF-8 text file and returns its content, truncated to max_chars.",
			Category:    categoryFileOps,
			Schema: tools.NewSchema(
				tools.Required("file_path", tools.TypeString, "Full path of the file to read."),
				tools.Optional("max_chars", tools.TypeInteger, "Maximum characters returned.", defaultReadLimit),
			),
			Func: f.readText,
		},
		{
			Name:        "create_project_backup",
			Description: "Creates a timestamped zip backup of a folder next to it. Defaults to the current directory.",
			Category:    categoryFileOps,
			Schema: tools.NewSchema(
				tools.Optional("source_path", tools.TypeString, "Folder to back up.", nil),
				tools.Optional("dry_run", tools.TypeBoolean, "Describe the action without performing it.", false),
			),
			Func: f.backup,
		},
	}
}

type fileOps struct {
	home   string
	logger loggerv2.Logger
	now    func() time.Time
}

// uniquePath returns path, or path with _1, _2... before the extension
// when it already exists.
func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("source path '%s' is not a valid file: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return tools.Errorf("not_a_file", "source path '%s' is not a valid file", path)
	}
	return nil
}

func (f *fileOps) move(_ context.Context, args tools.Args) (any, error) {
	src, dstDir := args.String("source_path"), args.String("destination_folder")
	if args.Bool("dry_run") {
		return fmt.Sprintf("[DRY RUN] Would move file '%s' to folder '%s'.", filepath.Base(src), dstDir), nil
	}
	if err := requireFile(src); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination folder: %w", err)
	}
	final := uniquePath(filepath.Join(dstDir, filepath.Base(src)))
	if err := moveFile(src, final); err != nil {
		return nil, err
	}
	f.logger.Info("Moved file", loggerv2.String("from", src), loggerv2.String("to", final))
	return fmt.Sprintf("Successfully moved '%s' to '%s'.", filepath.Base(src), final), nil
}

// moveFile renames, falling back to copy and delete across devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy file: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func (f *fileOps) rename(_ context.Context, args tools.Args) (any, error) {
	cur, newName := args.String("current_path"), args.String("new_name")
	if args.Bool("dry_run") {
		return fmt.Sprintf("[DRY RUN] Would rename file '%s' to '%s'.", filepath.Base(cur), newName), nil
	}
	if strings.ContainsAny(newName, `/\`) {
		return nil, tools.Errorf("invalid_name", "new_name must be a file name, not a path: %q", newName)
	}
	if err := requireFile(cur); err != nil {
		return nil, err
	}
	final := uniquePath(filepath.Join(filepath.Dir(cur), newName))
	if err := os.Rename(cur, final); err != nil {
		return nil, fmt.Errorf("rename file: %w", err)
	}
	f.logger.Info("Renamed file", loggerv2.String("from", cur), loggerv2.String("to", final))
	return fmt.Sprintf("Successfully renamed '%s' to '%s'.", filepath.Base(cur), filepath.Base(final)), nil
}

func (f *fileOps) deleteJunk(_ context.Context, args tools.Args) (any, error) {
	path, reason := args.String("file_path"), args.String("reason")
	if args.Bool("dry_run") {
		return fmt.Sprintf("[DRY RUN] Would delete junk file '%s'. Reason: %s", filepath.Base(path), reason), nil
	}
	if err := requireFile(path); err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("delete junk file '%s': %w", filepath.Base(path), err)
	}
	f.logger.Info("Deleted junk file", loggerv2.String("path", path), loggerv2.String("reason", reason))
	return fmt.Sprintf("Deleted junk file '%s'. Reason: %s", filepath.Base(path), reason), nil
}

func (f *fileOps) resolveFolder(folder string) string {
	switch strings.ToLower(folder) {
	case "", "desktop":
		return filepath.Join(f.home, "Desktop")
	case "documents":
		return filepath.Join(f.home, "Documents")
	}
	return folder
}

func (f *fileOps) createDocument(_ context.Context, args tools.Args) (any, error) {
	name := args.String("filename")
	if strings.ContainsAny(name, `/\`) || name == "" {
		return nil, tools.Errorf("invalid_name", "filename must be a plain file name: %q", name)
	}
	dir := f.resolveFolder(args.String("folder_path"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	final := uniquePath(filepath.Join(dir, name))
	if err := os.WriteFile(final, []byte(args.String("content")), 0o644); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	return fmt.Sprintf("Successfully created document at '%s'.", final), nil
}

func (f *fileOps) readText(_ context.Context, args tools.Args) (any, error) {
	path := args.String("file_path")
	if err := requireFile(path); err != nil {
		return nil, err
	}
	//nolint:gosec // G304: reading user-named files is the point of this tool
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	limit := args.Int("max_chars")
	text := []rune(string(b))
	if limit > 0 && len(text) > limit {
		return string(text[:limit]) + "...", nil
	}
	return string(text), nil
}

func (f *fileOps) backup(_ context.Context, args tools.Args) (any, error) {
	src := args.String("source_path")
	if src == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		src = wd
	}
	src, err := filepath.Abs(src)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return nil, tools.Errorf("not_a_directory", "the specified source directory does not exist: '%s'", src)
	}

	archive := filepath.Join(filepath.Dir(src),
		fmt.Sprintf("%s_backup_%s.zip", filepath.Base(src), f.now().Format("2006-01-02_15-04-05")))
	if args.Bool("dry_run") {
		return fmt.Sprintf("[DRY RUN] Would create a zip backup of '%s' at '%s'.", src, archive), nil
	}

	f.logger.Info("Starting backup", loggerv2.String("source", src), loggerv2.String("archive", archive))
	if err := zipDir(src, archive); err != nil {
		_ = os.Remove(archive)
		return nil, fmt.Errorf("create backup: %w", err)
	}
	return fmt.Sprintf("Successfully created backup at: '%s'", archive), nil
}

func zipDir(root, archive string) error {
	out, err := os.OpenFile(archive, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		//nolint:gosec // G304: walking the backup root
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, in)
		_ = in.Close()
		return err
	})
	return errors.Join(walkErr, zw.Close(), out.Close())
}
