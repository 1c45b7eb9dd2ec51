package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rescale/twinpane/internal/constants"
	"github.com/rescale/twinpane/internal/models"
	"github.com/rescale/twinpane/internal/pathutil"
	"github.com/rescale/twinpane/internal/progress"
	"github.com/rescale/twinpane/internal/transfer"
)

func sideFlag(local bool) models.Side {
	if local {
		return models.SideLocal
	}
	return models.SideRemote
}

// newLsCmd creates the 'ls' command.
func newLsCmd() *cobra.Command {
	var local, all bool

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a remote (or local) directory",
		Long: `List a directory with size and modification time.
Directories come first, then files by name.

Examples:
  twinpane ls --profile work
  twinpane ls --profile work data/incoming
  twinpane ls --local -a ~/projects`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			sess, err := sessionFor(ctx, sideFlag(local))
			if err != nil {
				return err
			}
			defer sess.Close()

			_, cursor := sess.FS(sideFlag(local))
			if all {
				cursor.SetShowHidden(true)
			}
			if len(args) == 1 {
				if err := cursor.Chdir(ctx, args[0]); err != nil {
					return err
				}
			}
			entries, err := cursor.List(ctx)
			if err != nil {
				return err
			}
			writeListing(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&local, "local", "l", false, "List the local side")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Show hidden entries")
	return cmd
}

// newPutCmd creates the 'put' command (upload).
func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-path> [remote-path]",
		Short: "Upload a file or directory tree",
		Long: `Copy a local file or directory recursively to the remote side.

When remote-path is omitted the copy lands in the remote start directory
under the same name. When remote-path is an existing directory the copy
goes inside it. Existing files are overwritten; nothing is deleted.

Examples:
  twinpane put --profile work report.pdf
  twinpane put --profile work ./results backups/results-2024`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShotTransfer(cmd, models.DirectionUpload, args)
		},
	}
	return cmd
}

// newGetCmd creates the 'get' command (download).
func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <remote-path> [local-path]",
		Short: "Download a file or directory tree",
		Long: `Copy a remote file or directory recursively to the local side.

When local-path is omitted the copy lands in the working directory under
the same name. When local-path is an existing directory the copy goes
inside it.

Examples:
  twinpane get --profile work logs/app.log
  twinpane get --profile work data ./mirror`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShotTransfer(cmd, models.DirectionDownload, args)
		},
	}
	return cmd
}

func runOneShotTransfer(cmd *cobra.Command, dir models.Direction, args []string) error {
	ctx := GetContext()
	sess, err := openSession(ctx, ".")
	if err != nil {
		return err
	}
	defer sess.Close()

	dest := ""
	if len(args) == 2 {
		dest = args[1]
	}
	req, err := sess.buildRequest(ctx, dir, args[0], dest)
	if err != nil {
		return err
	}

	ui := sess.newTransferUI(ctx, req, term.IsTerminal(int(os.Stderr.Fd())), os.Stderr)
	out := sess.Transfer(ctx, req, ui)
	printOutcome(cmd.OutOrStdout(), out)
	return outcomeError(out)
}

// buildRequest resolves source and destination against the panes.
func (s *Session) buildRequest(ctx context.Context, dir models.Direction, source, dest string) (transfer.Request, error) {
	_, srcCursor := s.FS(dir.Source())
	if dir.Source() == models.SideLocal {
		resolved, err := pathutil.ResolveRelativeTo(srcCursor.Path(), source)
		if err != nil {
			return transfer.Request{}, err
		}
		source = resolved
	} else {
		source = srcCursor.Resolve(source)
	}
	if dest != "" && dir.Dest() == models.SideLocal {
		dest = expandHome(dest)
	}
	return transfer.Request{
		Direction:  dir,
		SourcePath: source,
		DestPath:   s.destinationPath(ctx, dir, source, dest),
	}, nil
}

// newTransferUI picks a single bar for a file and per-file bars for a tree.
func (s *Session) newTransferUI(ctx context.Context, req transfer.Request, isTerminal bool, out io.Writer) progress.TransferUI {
	srcFS, _ := s.FS(req.Direction.Source())
	entry, err := srcFS.Stat(ctx, req.SourcePath)
	if err == nil && !entry.IsDir {
		if isTerminal {
			return progress.NewSingleFileUI(progress.NewCLIProgressTo(out), out, true)
		}
		return progress.NewSingleFileUI(progress.NewNoOpProgress(), out, false)
	}
	if isTerminal {
		return progress.NewTreeUI()
	}
	return progress.NewTreeUITo(out, false)
}

// outcomeError turns a non-completed outcome into a command error for the exit code.
func outcomeError(out transfer.Outcome) error {
	if out.Status == transfer.StatusCompleted {
		return nil
	}
	if out.Err != nil {
		return out.Err
	}
	return fmt.Errorf("transfer %s: %d of %d files failed", out.Status, out.Failed(), out.Attempted)
}

// newMkdirCmd creates the 'mkdir' command.
func newMkdirCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			side := sideFlag(local)
			sess, err := sessionFor(ctx, side)
			if err != nil {
				return err
			}
			defer sess.Close()

			fs, cursor := sess.FS(side)
			target := cursor.Resolve(args[0])
			p, err := sess.Files.CreateFolder(ctx, fs, fs.Paths().Dir(target), fs.Paths().Base(target))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", p)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&local, "local", "l", false, "Create on the local side")
	return cmd
}

// newRmCmd creates the 'rm' command.
func newRmCmd() *cobra.Command {
	var local, recursive, force bool

	cmd := &cobra.Command{
		Use:   "rm [-r] <path> [path...]",
		Short: "Delete files or directories",
		Long: `Delete files, or directories with -r.

A recursive remote delete removes every child through the SFTP session;
nothing is copied locally. The first failure stops that path's delete.

Examples:
  twinpane rm --profile work old.log
  twinpane rm --profile work -r build/tmp
  twinpane rm --local -rf ./scratch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			side := sideFlag(local)
			sess, err := sessionFor(ctx, side)
			if err != nil {
				return err
			}
			defer sess.Close()

			fs, cursor := sess.FS(side)
			reader := bufio.NewReader(os.Stdin)
			failed := 0
			for _, arg := range args {
				target := cursor.Resolve(arg)
				if recursive && !force && term.IsTerminal(int(os.Stdin.Fd())) &&
					!confirm(reader, fmt.Sprintf("Delete %s %s and everything below it?", side, target)) {
					continue
				}
				res, err := sess.Files.Delete(ctx, fs, target, recursive)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "rm: %v\n", err)
					failed++
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.String())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d deletes failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&local, "local", "l", false, "Delete on the local side")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Delete directories and their contents")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Do not ask before recursive deletes")
	return cmd
}

// newMvCmd creates the 'mv' command.
func newMvCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "mv <old-path> <new-path>",
		Short: "Rename or move within one side",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			side := sideFlag(local)
			sess, err := sessionFor(ctx, side)
			if err != nil {
				return err
			}
			defer sess.Close()

			fs, cursor := sess.FS(side)
			oldPath, newPath := cursor.Resolve(args[0]), cursor.Resolve(args[1])
			if err := sess.Files.Move(ctx, fs, oldPath, newPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", oldPath, newPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&local, "local", "l", false, "Rename on the local side")
	return cmd
}

// writeListing prints entries as NAME / SIZE / MODIFIED columns.
func writeListing(w io.Writer, entries []models.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
	for _, e := range entries {
		name, size, modified := e.Name, models.FormatSize(e.Size), ""
		if e.IsDir {
			size = "-"
			if e.Name != constants.ParentEntryName {
				name += "/"
			}
		}
		if !e.ModTime.IsZero() {
			modified = e.ModTime.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, size, modified)
	}
	tw.Flush()
}
