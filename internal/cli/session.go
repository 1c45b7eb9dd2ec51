package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rescale/twinpane/internal/config"
	"github.com/rescale/twinpane/internal/events"
	"github.com/rescale/twinpane/internal/localfs"
	"github.com/rescale/twinpane/internal/logging"
	"github.com/rescale/twinpane/internal/metrics"
	"github.com/rescale/twinpane/internal/models"
	"github.com/rescale/twinpane/internal/pathutil"
	"github.com/rescale/twinpane/internal/profiles"
	"github.com/rescale/twinpane/internal/progress"
	"github.com/rescale/twinpane/internal/services"
	"github.com/rescale/twinpane/internal/sftpfs"
	"github.com/rescale/twinpane/internal/state"
	"github.com/rescale/twinpane/internal/storage"
	"github.com/rescale/twinpane/internal/transfer"
)

// connectionFlags are the persistent flags naming the remote endpoint.
type connectionFlags struct {
	profile    string
	host       string
	port       int
	user       string
	password   string
	knownHosts string
	insecure   bool
}

func (f *connectionFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.profile, "profile", "p", "", "Saved connection profile to use")
	pf.StringVar(&f.host, "host", "", "SFTP server host (overrides profile)")
	pf.IntVar(&f.port, "port", 0, "SFTP server port (overrides profile, default from config)")
	pf.StringVarP(&f.user, "user", "u", "", "Login user (overrides profile)")
	pf.StringVar(&f.password, "password", "", "Login password (prompted when empty)")
	pf.StringVar(&f.knownHosts, "known-hosts", "", "known_hosts file (default from config)")
	pf.BoolVar(&f.insecure, "insecure", false, "Skip host key verification")
}

// endpoint merges the named profile with the flags; flags win.
func (f *connectionFlags) endpoint(store *profiles.Store, defaultPort int) (storage.Endpoint, error) {
	var ep storage.Endpoint
	if f.profile != "" {
		p, err := store.Get(f.profile)
		if err != nil {
			return ep, err
		}
		ep = p.Endpoint()
	}
	if f.host != "" {
		ep.Host = f.host
	}
	if f.port != 0 {
		ep.Port = f.port
	}
	if f.user != "" {
		ep.User = f.user
	}
	if f.password != "" {
		ep.Secret = f.password
	}
	if ep.Port == 0 {
		ep.Port = defaultPort
	}
	if ep.Host == "" {
		return ep, fmt.Errorf("no remote host: use --profile or --host")
	}
	return ep, nil
}

// Session holds both panes, the transfer coordinator and file operations
// for one connection.
type Session struct {
	Local        *localfs.FS
	Remote       *sftpfs.Client
	LocalCursor  *state.Cursor
	RemoteCursor *state.Cursor
	Coordinator  *transfer.Coordinator
	Files        *services.FileService
	Bus          *events.EventBus
	Logger       *logging.Logger

	cfg      *config.AppConfig
	endpoint storage.Endpoint
}

// NewSession wires a session around remote, which may not be connected yet.
func NewSession(cfg *config.AppConfig, remote *sftpfs.Client, bus *events.EventBus, logger *logging.Logger, collector *metrics.Collector) *Session {
	if bus == nil {
		bus = events.NewEventBus(0)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	local := localfs.New()
	start, err := pathutil.ResolveAbsolutePath(expandHome(cfg.Browser.StartDir))
	if err != nil {
		start = config.DefaultStartDir()
	}
	cursorOpts := state.Options{
		Bus:          bus,
		HiddenPrefix: cfg.Browser.HiddenPrefix,
		ShowHidden:   cfg.Browser.ShowHidden,
	}

	engine := transfer.NewEngine(local, remote,
		transfer.WithChunkSize(cfg.Transfer.ChunkSize),
		transfer.WithLogger(logger.Component("engine")),
		transfer.WithMetrics(collector),
	)

	return &Session{
		Local:        local,
		Remote:       remote,
		LocalCursor:  state.NewCursor(local, start, cursorOpts),
		RemoteCursor: state.NewCursor(remote, cfg.Browser.RemoteRoot, cursorOpts),
		Coordinator:  transfer.NewCoordinator(engine, bus, logger),
		Files:        services.NewFileService(bus, logger),
		Bus:          bus,
		Logger:       logger,
		cfg:          cfg,
	}
}

// newRemoteClient builds an unconnected SFTP client from config and flags.
func newRemoteClient(cfg *config.AppConfig, flags *connectionFlags, logger *logging.Logger) *sftpfs.Client {
	knownHosts := cfg.SSH.KnownHosts
	if flags.knownHosts != "" {
		knownHosts = expandHome(flags.knownHosts)
	}
	return sftpfs.New(sftpfs.Options{
		Root:                  cfg.Browser.RemoteRoot,
		KnownHostsFile:        knownHosts,
		InsecureIgnoreHostKey: cfg.SSH.InsecureIgnoreHostKey || flags.insecure,
		Timeout:               cfg.Timeout(),
		ChunkSize:             cfg.Transfer.ChunkSize,
		Logger:                logger,
	})
}

// openSession resolves the endpoint, prompts for a missing password and
// connects. startDir overrides the configured local start directory when set.
func openSession(ctx context.Context, startDir string) (*Session, error) {
	cfg := withStartDir(GetConfig(), startDir)
	log := GetLogger()

	store, err := profiles.Open(cfg.Profiles.ProfilesFile)
	if err != nil {
		return nil, err
	}
	ep, err := conn.endpoint(store, cfg.SSH.Port)
	if err != nil {
		return nil, err
	}
	if ep.Secret == "" {
		secret, err := readPassword(fmt.Sprintf("%s@%s's password: ", ep.User, ep.Host))
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		ep.Secret = secret
	}

	sess := NewSession(cfg, newRemoteClient(cfg, &conn, log), eventBus, log, collector)
	if err := sess.Connect(ctx, ep); err != nil {
		return nil, err
	}
	return sess, nil
}

// openLocalSession builds a session whose remote side stays disconnected.
func openLocalSession(startDir string) *Session {
	cfg := withStartDir(GetConfig(), startDir)
	log := GetLogger()
	return NewSession(cfg, newRemoteClient(cfg, &conn, log), eventBus, log, collector)
}

// sessionFor opens a local-only session for local operations, a connected one otherwise.
func sessionFor(ctx context.Context, side models.Side) (*Session, error) {
	if side == models.SideLocal {
		return openLocalSession("."), nil
	}
	return openSession(ctx, ".")
}

func withStartDir(cfg *config.AppConfig, startDir string) *config.AppConfig {
	if startDir == "" {
		return cfg
	}
	c := *cfg
	c.Browser.StartDir = startDir
	return &c
}

// Connect opens the remote side and resets the remote pane to its root.
func (s *Session) Connect(ctx context.Context, ep storage.Endpoint) error {
	if err := s.Remote.Connect(ctx, ep); err != nil {
		s.Bus.PublishConnection(ep.Host, false, err)
		return err
	}
	s.Bus.PublishConnection(ep.Host, true, nil)
	s.endpoint = ep
	if err := s.RemoteCursor.Chdir(ctx, s.cfg.Browser.RemoteRoot); err != nil {
		s.Logger.Warn().Err(err).Str("path", s.cfg.Browser.RemoteRoot).Msg("Remote root not accessible")
	}
	return nil
}

// Close cancels a running transfer, waits for it and disconnects.
func (s *Session) Close() error {
	if h, ok := s.Coordinator.Current(); ok {
		s.Coordinator.Cancel()
		h.Wait()
	}
	if s.Remote.Connected() {
		host := s.Remote.Host()
		err := s.Remote.Close()
		s.Bus.PublishConnection(host, false, err)
		return err
	}
	return nil
}

// Endpoint returns what the session last connected with.
func (s *Session) Endpoint() storage.Endpoint { return s.endpoint }

// FS returns the filesystem and cursor of a side.
func (s *Session) FS(side models.Side) (storage.Filesystem, *state.Cursor) {
	if side == models.SideRemote {
		return s.Remote, s.RemoteCursor
	}
	return s.Local, s.LocalCursor
}

// Refresh relists both panes. A pane that fails to list keeps its old state.
func (s *Session) Refresh(ctx context.Context) error {
	var firstErr error
	if _, err := s.LocalCursor.List(ctx); err != nil {
		firstErr = err
	}
	if s.Remote.Connected() {
		if _, err := s.RemoteCursor.List(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Transfer runs req on the coordinator, driving ui from progress and item
// events, and refreshes the destination pane afterwards.
func (s *Session) Transfer(ctx context.Context, req transfer.Request, ui progress.TransferUI) transfer.Outcome {
	items := s.Bus.Subscribe(events.EventTransferItem)
	defer s.Bus.Unsubscribe(events.EventTransferItem, items)

	var sink transfer.ProgressFunc
	if ui != nil {
		sink = ui.Observe
	}

	h, err := s.Coordinator.Start(ctx, req, sink)
	if err != nil {
		return transfer.Outcome{Status: transfer.StatusRejected, Err: err}
	}

	handle := func(ev events.Event) {
		te, ok := ev.(*events.TransferEvent)
		if !ok || te.TransferID != h.ID() || ui == nil {
			return
		}
		ui.Complete(te.Path, te.BytesTransferred, te.Error)
	}

	for done := false; !done; {
		select {
		case ev := <-items:
			handle(ev)
		case <-h.Done():
			done = true
		}
	}
	// Item events are published before Done closes.
	for drained := false; !drained; {
		select {
		case ev := <-items:
			handle(ev)
		default:
			drained = true
		}
	}
	if ui != nil {
		ui.Wait()
	}

	out := h.Wait()
	if out.Status != transfer.StatusRejected {
		_, dst := s.FS(req.Direction.Dest())
		// A cancelled transfer still refreshes the destination pane.
		if _, err := dst.List(context.WithoutCancel(ctx)); err != nil {
			s.Logger.Debug().Err(err).Msg("Refresh after transfer failed")
		}
	}
	return out
}

// destinationPath applies cp-like naming: when dest names an existing
// directory on the destination side, the copy goes inside it.
func (s *Session) destinationPath(ctx context.Context, dir models.Direction, source, dest string) string {
	srcFS, _ := s.FS(dir.Source())
	fs, cursor := s.FS(dir.Dest())
	srcName := srcFS.Paths().Base(source)
	if dest == "" {
		return fs.Paths().Join(cursor.Path(), srcName)
	}
	dest = cursor.Resolve(dest)
	if cursor.IsDirectoryAt(ctx, dest) {
		return fs.Paths().Join(dest, srcName)
	}
	return dest
}

// printOutcome writes the summary and each failure to w.
func printOutcome(w io.Writer, out transfer.Outcome) {
	fmt.Fprintln(w, out.Summary())
	for _, f := range out.Failures {
		fmt.Fprintf(w, "  failed: %s: %v\n", f.Path, f.Err)
	}
}

// expandHome expands a leading ~, leaving p unchanged when home is unknown.
func expandHome(p string) string {
	expanded, err := pathutil.ExpandHome(p)
	if err != nil {
		return p
	}
	return expanded
}
