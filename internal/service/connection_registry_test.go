package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/util"
)

func TestConnectFailingProbeInsertsNothing(t *testing.T) {
	e := newTestEngine(t)
	e.prober.setAlways(true)

	_, err := e.Connections.Connect(context.Background(), "user-1", cexRequest())
	if !util.IsConnectionError(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if got := e.Connections.List(context.Background()); len(got) != 0 {
		t.Fatalf("expected no connections, got %d", len(got))
	}
	if stored, _ := e.conns.ListAll(context.Background()); len(stored) != 0 {
		t.Fatalf("nothing should be persisted, got %d", len(stored))
	}
}

func TestConnectStoresEncryptedCredentials(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	conn := e.connect(t)
	if conn.Status != model.ConnectionStatusConnected {
		t.Fatalf("expected connected, got %s", conn.Status)
	}
	if conn.Balance != 2500 || conn.LastSyncAt == nil {
		t.Fatalf("probe result not applied: %+v", conn)
	}
	if conn.EncryptedCredentials != "" {
		t.Fatal("returned snapshot must not carry credentials")
	}

	body, _ := json.Marshal(conn)
	if strings.Contains(string(body), "secret-abcdef") || strings.Contains(string(body), "key-1234567890") {
		t.Fatalf("credentials leaked into JSON: %s", body)
	}

	stored, err := e.conns.GetByID(ctx, conn.ID)
	if err != nil {
		t.Fatalf("stored connection: %v", err)
	}
	if stored.EncryptedCredentials == "" || strings.Contains(stored.EncryptedCredentials, "secret-abcdef") {
		t.Fatalf("stored credentials should be sealed, got %q", stored.EncryptedCredentials)
	}

	creds, err := e.Connections.Credentials(ctx, conn.ID, "user-1")
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if creds.APISecret != "secret-abcdef" {
		t.Fatalf("credentials did not round trip")
	}
}

func TestConnectValidation(t *testing.T) {
	e := newTestEngine(t)

	cases := []struct {
		name string
		req  *model.ConnectionRequest
	}{
		{"missing name", &model.ConnectionRequest{Exchange: "x", Kind: model.ConnectionKindCEX, APIKey: "k", APISecret: "s"}},
		{"cex without secret", &model.ConnectionRequest{Name: "n", Exchange: "x", Kind: model.ConnectionKindCEX, APIKey: "k"}},
		{"dex without wallet", &model.ConnectionRequest{Name: "n", Exchange: "x", Kind: model.ConnectionKindDEX}},
		{"unknown kind", &model.ConnectionRequest{Name: "n", Exchange: "x", Kind: "otc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.Connections.Connect(context.Background(), "u", tc.req); !util.IsValidationError(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if e.prober.callCount() != 0 {
		t.Fatal("invalid requests must not be probed")
	}
}

func TestConnectRetriesProbe(t *testing.T) {
	e := newTestEngine(t)
	e.Connections.opts.ProbeMaxAttempts = 3
	e.prober.failures = 2

	if _, err := e.Connections.Connect(context.Background(), "user-1", cexRequest()); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if e.prober.callCount() != 3 {
		t.Fatalf("expected 3 probe calls, got %d", e.prober.callCount())
	}
}

func TestDisconnectAndReconnect(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	conn := e.connect(t)

	if _, err := e.Connections.Disconnect(ctx, "missing"); !util.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	got, err := e.Connections.Disconnect(ctx, conn.ID)
	if err != nil || got.Status != model.ConnectionStatusDisconnected {
		t.Fatalf("disconnect: %+v %v", got, err)
	}
	if _, err := e.Connections.Credentials(ctx, conn.ID, "user-1"); !util.IsPreconditionError(err) {
		t.Fatalf("disconnected credentials should be unavailable, got %v", err)
	}

	e.prober.setAlways(true)
	if _, err := e.Connections.Reconnect(ctx, conn.ID); !util.IsConnectionError(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
	status, _ := e.Connections.Status(conn.ID)
	if status != model.ConnectionStatusError {
		t.Fatalf("failed reconnect should leave error status, got %s", status)
	}

	e.prober.setAlways(false)
	got, err = e.Connections.Reconnect(ctx, conn.ID)
	if err != nil || got.Status != model.ConnectionStatusConnected {
		t.Fatalf("reconnect: %+v %v", got, err)
	}
	if e.prober.lastKey != "key-1234567890" {
		t.Fatalf("reconnect should probe with stored credentials")
	}
}

func TestSyncAllSkipsDisconnected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	healthy := e.connect(t)
	parked := e.connect(t)
	e.Connections.Disconnect(ctx, parked.ID)

	e.prober.setAlways(true)
	calls := e.prober.callCount()
	if err := e.Connections.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if e.prober.callCount()-calls != 1 {
		t.Fatalf("expected one probe, got %d", e.prober.callCount()-calls)
	}

	if s, _ := e.Connections.Status(healthy.ID); s != model.ConnectionStatusError {
		t.Fatalf("failed sync should mark error, got %s", s)
	}
	if s, _ := e.Connections.Status(parked.ID); s != model.ConnectionStatusDisconnected {
		t.Fatalf("disconnected connection should be left alone, got %s", s)
	}
}

func TestListByOwner(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.connect(t)
	if _, err := e.Connections.Connect(ctx, "user-2", cexRequest()); err != nil {
		t.Fatal(err)
	}

	if got := e.Connections.ListByOwner(ctx, "user-2"); len(got) != 1 || got[0].OwnerID != "user-2" {
		t.Fatalf("unexpected owner listing %+v", got)
	}
	if got := e.Connections.List(ctx); len(got) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(got))
	}
}
