package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"thermolog/internal/daemon"
	"thermolog/internal/logging"
	"thermolog/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, &service{daemon: d, logger: logger, ctx: serverCtx}); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = s.listener.Close()
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun thermolog stop"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	s.daemon.RequestShutdown()
	resp.Stopping = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	st := s.daemon.Status(s.ctx)
	*resp = StatusResponse{
		Running:          st.Running,
		PID:              st.PID,
		Online:           st.Queue.Online,
		PendingCount:     st.Queue.PendingCount,
		PendingKnown:     st.Queue.PendingKnown,
		Syncing:          st.Queue.Syncing,
		LastSweep:        st.Queue.LastSweep,
		QueueDBPath:      st.QueueDBPath,
		LockPath:         st.LockFilePath,
		Endpoint:         st.Endpoint,
		RemoteConfigured: st.RemoteConfigured,
		ConnectivityMode: st.ConnectivityMode,
		APIAddress:       st.APIAddress,
	}
	return nil
}

func (s *service) Record(req RecordRequest, resp *RecordResponse) error {
	entry, err := s.daemon.Record(s.ctx, req.Record)
	if err != nil {
		return err
	}
	resp.Entry = *entry
	return nil
}

func (s *service) ListEntries(req ListEntriesRequest, resp *ListEntriesResponse) error {
	states := make([]queue.SyncState, 0, len(req.States))
	for _, name := range req.States {
		state, ok := queue.ParseSyncState(name)
		if !ok {
			return fmt.Errorf("unknown sync state %q", name)
		}
		states = append(states, state)
	}
	entries, err := s.daemon.ListEntries(s.ctx, states...)
	if err != nil {
		return err
	}
	resp.Entries = flattenEntries(entries)
	return nil
}

func (s *service) ListPending(_ ListPendingRequest, resp *ListEntriesResponse) error {
	entries, err := s.daemon.ListPending(s.ctx)
	if err != nil {
		return err
	}
	resp.Entries = flattenEntries(entries)
	return nil
}

func flattenEntries(entries []*queue.Entry) []queue.Entry {
	out := make([]queue.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry != nil {
			out = append(out, *entry)
		}
	}
	return out
}

func (s *service) SyncNow(_ SyncNowRequest, resp *SyncNowResponse) error {
	s.logger.Debug("sync requested via IPC")
	resp.Result = s.daemon.SyncNow(s.ctx)
	snap := s.daemon.Snapshot()
	resp.PendingCount = snap.PendingCount
	resp.PendingKnown = snap.PendingKnown
	return nil
}

func (s *service) Compact(_ CompactRequest, resp *CompactResponse) error {
	removed, err := s.daemon.Compact(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("synced entries compacted via IPC",
		logging.String(logging.FieldEventType, "queue_compact"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.Health = health
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", message, err)
	}
	resp.Sent = sent
	resp.Message = message
	return nil
}
