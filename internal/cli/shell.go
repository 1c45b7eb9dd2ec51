package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rescale/twinpane/internal/models"
	"github.com/rescale/twinpane/internal/profiles"
	"github.com/rescale/twinpane/internal/state"
)

// newShellCmd creates the 'shell' command.
func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with a local and a remote pane",
		Long: `Open an interactive session. The remote pane starts in the login
directory, the local pane in start_dir (default: home).

Type 'help' inside the shell for the command list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			sess, err := openSession(ctx, "")
			if err != nil {
				return err
			}
			defer sess.Close()

			store, err := openProfileStore()
			if err != nil {
				return err
			}

			sh := newShell(sess, store, os.Stdin, cmd.OutOrStdout())
			sh.interactive = term.IsTerminal(int(os.Stdin.Fd()))
			return sh.Run(ctx)
		},
	}
}

// shell is the read-eval loop over one Session.
type shell struct {
	sess        *Session
	store       *profiles.Store
	in          *bufio.Scanner
	out         io.Writer
	interactive bool
}

func newShell(sess *Session, store *profiles.Store, in io.Reader, out io.Writer) *shell {
	return &shell{sess: sess, store: store, in: bufio.NewScanner(in), out: out}
}

const shellHelp = `Remote pane             Local pane
  ls [path]               lls [path]        list
  cd <dir|..>             lcd <dir|..>      change directory
  pwd                     lpwd              print directory
  mkdir <name>            lmkdir <name>     create directory
  rm [-r] <name>...       lrm [-r] <name>...  delete
  mv <old> <new>          lmv <old> <new>   rename or move

Transfers
  put <local> [remote]    upload a file or tree
  get <remote> [local]    download a file or tree
  status                  current state and last outcome
  history                 finished transfers

Session
  refresh                 relist both panes
  hidden [on|off]         toggle hidden entries
  save <profile>          save this connection as a profile
  help                    this text
  exit                    leave the shell`

// Run reads commands until EOF, exit, or ctx is cancelled.
func (s *shell) Run(ctx context.Context) error {
	if err := s.sess.Refresh(ctx); err != nil {
		fmt.Fprintf(s.out, "warning: %v\n", err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintf(s.out, "[%s] %s | %s> ", s.sess.Endpoint().Host, s.sess.LocalCursor.Path(), s.sess.RemoteCursor.Path())
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}

		args := strings.Fields(s.in.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			return nil
		}
		if err := s.exec(ctx, args[0], args[1:]); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

func (s *shell) exec(ctx context.Context, name string, args []string) error {
	switch name {
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
	case "ls":
		return s.list(ctx, models.SideRemote, args)
	case "lls":
		return s.list(ctx, models.SideLocal, args)
	case "cd":
		return s.cd(ctx, models.SideRemote, args)
	case "lcd":
		return s.cd(ctx, models.SideLocal, args)
	case "pwd":
		fmt.Fprintln(s.out, s.sess.RemoteCursor.Path())
	case "lpwd":
		fmt.Fprintln(s.out, s.sess.LocalCursor.Path())
	case "mkdir":
		return s.mkdir(ctx, models.SideRemote, args)
	case "lmkdir":
		return s.mkdir(ctx, models.SideLocal, args)
	case "rm":
		return s.rm(ctx, models.SideRemote, args)
	case "lrm":
		return s.rm(ctx, models.SideLocal, args)
	case "mv":
		return s.mv(ctx, models.SideRemote, args)
	case "lmv":
		return s.mv(ctx, models.SideLocal, args)
	case "put":
		return s.transfer(ctx, models.DirectionUpload, args)
	case "get":
		return s.transfer(ctx, models.DirectionDownload, args)
	case "status":
		s.status()
	case "history":
		s.history()
	case "refresh":
		return s.sess.Refresh(ctx)
	case "hidden":
		return s.hidden(ctx, args)
	case "save":
		return s.save(args)
	default:
		return fmt.Errorf("unknown command %q (try 'help')", name)
	}
	return nil
}

func (s *shell) list(ctx context.Context, side models.Side, args []string) error {
	fs, cursor := s.sess.FS(side)
	if len(args) == 0 {
		entries, err := cursor.List(ctx)
		if err != nil {
			return err
		}
		writeListing(s.out, entries)
		return nil
	}

	// A path argument lists without moving the pane.
	peek := state.NewCursor(fs, cursor.Resolve(args[0]), state.Options{
		HiddenPrefix: s.sess.cfg.Browser.HiddenPrefix,
		ShowHidden:   cursor.ShowHidden(),
	})
	entries, err := peek.List(ctx)
	if err != nil {
		return err
	}
	writeListing(s.out, entries)
	return nil
}

func (s *shell) cd(ctx context.Context, side models.Side, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cd <dir|..>")
	}
	_, cursor := s.sess.FS(side)
	target := args[0]

	if target == ".." {
		cursor.Ascend()
	} else if !cursor.Descend(ctx, target) {
		// Not an entry of the current listing: treat it as a path.
		if err := cursor.Chdir(ctx, target); err != nil {
			return err
		}
	}
	_, err := cursor.List(ctx)
	return err
}

func (s *shell) mkdir(ctx context.Context, side models.Side, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: mkdir <name>")
	}
	fs, cursor := s.sess.FS(side)
	p, err := s.sess.Files.CreateFolder(ctx, fs, cursor.Path(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Created %s\n", p)
	_, err = cursor.List(ctx)
	return err
}

func (s *shell) rm(ctx context.Context, side models.Side, args []string) error {
	recursive := false
	var names []string
	for _, a := range args {
		if a == "-r" || a == "-rf" {
			recursive = true
			continue
		}
		names = append(names, a)
	}
	if len(names) == 0 {
		return errors.New("usage: rm [-r] <name>...")
	}

	fs, cursor := s.sess.FS(side)
	res := s.sess.Files.DeleteItems(ctx, fs, cursor.Path(), names, recursive)
	for _, name := range names {
		if err, failed := res.Failures[name]; failed {
			fmt.Fprintf(s.out, "rm %s: %v\n", name, err)
		}
	}
	fmt.Fprintf(s.out, "Deleted %d, failed %d\n", res.Deleted, res.Failed)
	_, err := cursor.List(ctx)
	return err
}

func (s *shell) mv(ctx context.Context, side models.Side, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: mv <old> <new>")
	}
	fs, cursor := s.sess.FS(side)

	// Plain names rename within the pane; anything else is a move.
	if !strings.ContainsAny(args[0]+args[1], `/\`) {
		p, err := s.sess.Files.Rename(ctx, fs, cursor.Path(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Renamed to %s\n", p)
	} else {
		if err := s.sess.Files.Move(ctx, fs, cursor.Resolve(args[0]), cursor.Resolve(args[1])); err != nil {
			return err
		}
	}
	_, err := cursor.List(ctx)
	return err
}

func (s *shell) transfer(ctx context.Context, dir models.Direction, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: %s <source> [dest]", dir)
	}
	dest := ""
	if len(args) == 2 {
		dest = args[1]
	}
	req, err := s.sess.buildRequest(ctx, dir, args[0], dest)
	if err != nil {
		return err
	}

	// Ctrl+C cancels this transfer and returns to the prompt.
	tctx, stop := interruptible(ctx)
	defer stop()
	out := s.sess.Transfer(tctx, req, s.sess.newTransferUI(ctx, req, s.interactive, s.out))
	printOutcome(s.out, out)
	return nil
}

func (s *shell) status() {
	fmt.Fprintf(s.out, "transfer: %s\n", s.sess.Coordinator.State())
	if h, ok := s.sess.Coordinator.Current(); ok {
		fmt.Fprintf(s.out, "running: %s\n", h.Request())
	}
	if out, ok := s.sess.Coordinator.LastOutcome(); ok {
		fmt.Fprintf(s.out, "last: %s\n", out.Summary())
	}
	fmt.Fprintf(s.out, "hidden entries: %t\n", s.sess.LocalCursor.ShowHidden())
}

func (s *shell) history() {
	records := s.sess.Coordinator.History()
	if len(records) == 0 {
		fmt.Fprintln(s.out, "no transfers yet")
		return
	}
	for _, r := range records {
		fmt.Fprintf(s.out, "%s  %s  %s\n", r.StartedAt.Format("15:04:05"), r.Request, r.Outcome.Summary())
	}
}

func (s *shell) hidden(ctx context.Context, args []string) error {
	show := !s.sess.LocalCursor.ShowHidden()
	if len(args) == 1 {
		switch args[0] {
		case "on":
			show = true
		case "off":
			show = false
		default:
			return errors.New("usage: hidden [on|off]")
		}
	}
	s.sess.LocalCursor.SetShowHidden(show)
	s.sess.RemoteCursor.SetShowHidden(show)
	fmt.Fprintf(s.out, "hidden entries: %t\n", show)
	return s.sess.Refresh(ctx)
}

func (s *shell) save(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: save <profile>")
	}
	if s.store == nil {
		return errors.New("no profile store")
	}
	ep := s.sess.Endpoint()
	p := profiles.Profile{Name: args[0], Host: ep.Host, Port: ep.Port, Username: ep.User, Secret: ep.Secret}
	if err := s.store.Put(p); err != nil {
		return err
	}
	if err := s.store.Save(); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Saved profile %s\n", p)
	return nil
}
