package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"thermolog/internal/connectivity"
	"thermolog/internal/daemon"
	"thermolog/internal/ipc"
	"thermolog/internal/logging"
	"thermolog/internal/testsupport"
)

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	deliverer := testsupport.NewRecordingDeliverer()
	d, err := daemon.New(cfg, store, logger, daemon.Dependencies{
		Observer:  connectivity.NewManual(true),
		Deliverer: deliverer,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	socket := filepath.Join(testsupport.BaseDir(cfg), "thermolog.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || !status.Online || !status.RemoteConfigured {
		t.Fatalf("unexpected status: %+v", status)
	}

	for _, subject := range []string{"fridge-a", "fridge-b"} {
		if _, err := client.Record(ipc.RecordRequest{Record: testsupport.Record(subject, 2.5)}); err != nil {
			t.Fatalf("Record RPC failed: %v", err)
		}
	}
	if _, err := client.Record(ipc.RecordRequest{}); err == nil || !strings.Contains(err.Error(), "invalid") {
		t.Fatalf("expected invalid record error, got %v", err)
	}

	pending, err := client.ListPending()
	if err != nil {
		t.Fatalf("ListPending RPC failed: %v", err)
	}
	if len(pending.Entries) != 2 || pending.Entries[0].Record.SubjectID != "fridge-a" {
		t.Fatalf("unexpected pending entries: %+v", pending.Entries)
	}
	if _, err := client.ListEntries([]string{"lost"}); err == nil {
		t.Fatal("expected unknown state to be rejected")
	}

	synced, err := client.SyncNow()
	if err != nil {
		t.Fatalf("SyncNow RPC failed: %v", err)
	}
	if synced.Result.Synced != 2 || synced.PendingCount != 0 {
		t.Fatalf("unexpected sync response: %+v", synced)
	}
	if len(deliverer.Delivered()) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(deliverer.Delivered()))
	}

	compact, err := client.Compact()
	if err != nil {
		t.Fatalf("Compact RPC failed: %v", err)
	}
	if compact.Removed != 0 {
		t.Fatalf("expected sweep to have compacted already, removed %d", compact.Removed)
	}

	health, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth RPC failed: %v", err)
	}
	if !health.Health.DatabaseReadable || !health.Health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health.Health)
	}

	notify, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification RPC failed: %v", err)
	}
	if notify.Sent {
		t.Fatal("expected no notification without a topic")
	}

	stop, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stop.Stopping {
		t.Fatal("expected stop acknowledgement")
	}
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("expected shutdown to be requested")
	}
}
