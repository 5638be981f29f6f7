package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"botdeck/backend/internal/metrics"
	"botdeck/backend/internal/model"
	"botdeck/backend/internal/repository"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/crypto"
	"botdeck/backend/pkg/gateway"
	"botdeck/backend/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ProbeResult is what a successful connectivity probe learns about the account
type ProbeResult struct {
	Balance float64
}

// Prober checks that a venue accepts a set of credentials
type Prober interface {
	Probe(ctx context.Context, exchange string, creds model.Credentials) (*ProbeResult, error)
}

// GatewayProber probes accounts through the trading gateway's getInfo call
type GatewayProber struct {
	client *gateway.Client
}

func NewGatewayProber(client *gateway.Client) *GatewayProber {
	return &GatewayProber{client: client}
}

func (p *GatewayProber) Probe(ctx context.Context, exchange string, creds model.Credentials) (*ProbeResult, error) {
	info, err := p.client.GetInfo(ctx, gatewayCredentials(creds))
	if err != nil {
		return nil, err
	}
	return &ProbeResult{Balance: info.EstimatedValue}, nil
}

// ConnectionOptions tunes probing and sync
type ConnectionOptions struct {
	ProbeTimeout     time.Duration
	ProbeMaxAttempts int
	SyncConcurrency  int
}

// ConnectionRegistry is the single owner of exchange connection records
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*model.ExchangeConnection

	prober   Prober
	cipher   *crypto.Cipher
	store    repository.ConnectionStore
	notifier Notifier
	opts     ConnectionOptions
	log      *logger.Logger
	now      func() time.Time
}

func NewConnectionRegistry(prober Prober, cipher *crypto.Cipher, store repository.ConnectionStore, notifier Notifier, opts ConnectionOptions) *ConnectionRegistry {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	if opts.ProbeMaxAttempts < 1 {
		opts.ProbeMaxAttempts = 1
	}
	if opts.SyncConcurrency < 1 {
		opts.SyncConcurrency = 1
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ConnectionRegistry{
		conns:    make(map[string]*model.ExchangeConnection),
		prober:   prober,
		cipher:   cipher,
		store:    store,
		notifier: notifier,
		opts:     opts,
		log:      logger.GetLogger().WithComponent("connections"),
		now:      time.Now,
	}
}

// Connect probes the venue and, only on success, admits the connection as connected
func (r *ConnectionRegistry) Connect(ctx context.Context, ownerID string, req *model.ConnectionRequest) (*model.ExchangeConnection, error) {
	if err := validateConnectionRequest(req); err != nil {
		return nil, err
	}
	creds := req.Credentials()

	result, err := r.probe(ctx, req.Exchange, creds)
	if err != nil {
		r.log.Warnf("Connectivity probe to %s failed for key %s: %v", req.Exchange, creds.Masked(), err)
		return nil, util.ErrConnection("Failed to connect to exchange", err)
	}

	sealed, err := r.seal(creds)
	if err != nil {
		r.log.Error("Failed to encrypt exchange credentials", err)
		return nil, util.ErrInternalServer("Failed to store credentials")
	}

	now := r.now()
	conn := &model.ExchangeConnection{
		ID:                   uuid.NewString(),
		OwnerID:              ownerID,
		Name:                 strings.TrimSpace(req.Name),
		Exchange:             strings.ToLower(strings.TrimSpace(req.Exchange)),
		Kind:                 req.Kind,
		Status:               model.ConnectionStatusConnected,
		Balance:              result.Balance,
		LastSyncAt:           &now,
		EncryptedCredentials: sealed,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	r.mu.Lock()
	r.conns[conn.ID] = conn
	snapshot := conn.Clone()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	r.publish(ctx, snapshot)
	r.log.Infof("Exchange %s connected as %s (%s)", conn.Exchange, conn.ID, creds.Masked())
	return snapshot.Public(), nil
}

// Disconnect marks a connection disconnected. The record is kept; running bots are not stopped.
func (r *ConnectionRegistry) Disconnect(ctx context.Context, id string) (*model.ExchangeConnection, error) {
	r.mu.Lock()
	conn, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return nil, util.ErrNotFound("Exchange connection not found")
	}
	conn.Status = model.ConnectionStatusDisconnected
	conn.UpdatedAt = r.now()
	snapshot := conn.Clone()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	r.publish(ctx, snapshot)
	r.log.Infof("Exchange connection %s disconnected", id)
	return snapshot.Public(), nil
}

// Reconnect probes a stored connection again with its saved credentials
func (r *ConnectionRegistry) Reconnect(ctx context.Context, id string) (*model.ExchangeConnection, error) {
	r.mu.RLock()
	conn, ok := r.conns[id]
	var snapshot *model.ExchangeConnection
	if ok {
		snapshot = conn.Clone()
	}
	r.mu.RUnlock()
	if !ok {
		return nil, util.ErrNotFound("Exchange connection not found")
	}

	creds, err := r.open(snapshot.EncryptedCredentials)
	if err != nil {
		r.log.Error("Failed to decrypt exchange credentials", err)
		return nil, util.ErrInternalServer("Stored credentials are unreadable")
	}

	result, probeErr := r.probe(ctx, snapshot.Exchange, creds)
	updated, found := r.applyProbe(id, result, probeErr, true)
	if !found {
		return nil, util.ErrNotFound("Exchange connection not found")
	}

	r.persist(ctx, updated)
	r.publish(ctx, updated)
	if probeErr != nil {
		return nil, util.ErrConnection("Failed to reconnect to exchange", probeErr)
	}
	return updated.Public(), nil
}

// SyncAll re-probes every connection that is not explicitly disconnected,
// refreshing its health and balance. Probes run concurrently up to SyncConcurrency.
func (r *ConnectionRegistry) SyncAll(ctx context.Context) error {
	r.mu.RLock()
	targets := make([]*model.ExchangeConnection, 0, len(r.conns))
	for _, c := range r.conns {
		if c.Status != model.ConnectionStatusDisconnected {
			targets = append(targets, c.Clone())
		}
	}
	r.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.SyncConcurrency)
	for _, conn := range targets {
		conn := conn
		g.Go(func() error {
			creds, err := r.open(conn.EncryptedCredentials)
			if err != nil {
				r.log.Warnf("Skipping sync of %s: unreadable credentials", conn.ID)
				return nil
			}
			result, probeErr := r.probe(gctx, conn.Exchange, creds)
			updated, found := r.applyProbe(conn.ID, result, probeErr, false)
			if found {
				r.persist(gctx, updated)
				r.publish(gctx, updated)
			}
			return nil
		})
	}
	return g.Wait()
}

// RunSync calls SyncAll every interval until ctx is done
func (r *ConnectionRegistry) RunSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.SyncAll(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("Connection sync failed", err)
			}
		}
	}
}

// applyProbe folds a probe outcome into the stored record. Unless force is set,
// a connection disconnected in the meantime is left alone.
func (r *ConnectionRegistry) applyProbe(id string, result *ProbeResult, probeErr error, force bool) (*model.ExchangeConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	if !force && conn.Status == model.ConnectionStatusDisconnected {
		return nil, false
	}

	now := r.now()
	conn.UpdatedAt = now
	if probeErr != nil {
		conn.Status = model.ConnectionStatusError
		conn.LastError = probeErr.Error()
	} else {
		conn.Status = model.ConnectionStatusConnected
		conn.Balance = result.Balance
		conn.LastError = ""
		conn.LastSyncAt = &now
	}
	return conn.Clone(), true
}

// List returns snapshots of every connection, without credentials
func (r *ConnectionRegistry) List(ctx context.Context) []*model.ExchangeConnection {
	return r.filter(func(*model.ExchangeConnection) bool { return true })
}

// ListByOwner returns the connections created by ownerID
func (r *ConnectionRegistry) ListByOwner(ctx context.Context, ownerID string) []*model.ExchangeConnection {
	return r.filter(func(c *model.ExchangeConnection) bool { return c.OwnerID == ownerID })
}

func (r *ConnectionRegistry) filter(keep func(*model.ExchangeConnection) bool) []*model.ExchangeConnection {
	r.mu.RLock()
	out := make([]*model.ExchangeConnection, 0, len(r.conns))
	for _, c := range r.conns {
		if keep(c) {
			out = append(out, c.Public())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Get returns one connection without credentials
func (r *ConnectionRegistry) Get(ctx context.Context, id string) (*model.ExchangeConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	if !ok {
		return nil, util.ErrNotFound("Exchange connection not found")
	}
	return conn.Public(), nil
}

// Status reports a connection's health, and whether it exists
func (r *ConnectionRegistry) Status(id string) (model.ConnectionStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	if !ok {
		return "", false
	}
	return conn.Status, true
}

// Owner returns the id of the user a connection belongs to
func (r *ConnectionRegistry) Owner(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	if !ok {
		return "", false
	}
	return conn.OwnerID, true
}

// Credentials returns the decrypted credentials of a connected connection.
// Only the connection's owner may read them.
func (r *ConnectionRegistry) Credentials(ctx context.Context, id, ownerID string) (model.Credentials, error) {
	r.mu.RLock()
	conn, ok := r.conns[id]
	var sealed, owner string
	var status model.ConnectionStatus
	if ok {
		sealed, owner, status = conn.EncryptedCredentials, conn.OwnerID, conn.Status
	}
	r.mu.RUnlock()

	if !ok {
		return model.Credentials{}, util.ErrNotFound("Exchange connection not found")
	}
	if owner != ownerID {
		return model.Credentials{}, util.ErrForbidden("Exchange connection belongs to another user")
	}
	if status != model.ConnectionStatusConnected {
		return model.Credentials{}, util.ErrPrecondition("Exchange connection is not connected", "Reconnect the exchange first")
	}
	return r.open(sealed)
}

// Load inserts connections read back from the store
func (r *ConnectionRegistry) Load(conns []*model.ExchangeConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range conns {
		r.conns[c.ID] = c.Clone()
	}
}

func (r *ConnectionRegistry) probe(ctx context.Context, exchange string, creds model.Credentials) (*ProbeResult, error) {
	var result *ProbeResult
	op := func() error {
		pctx, cancel := context.WithTimeout(ctx, r.opts.ProbeTimeout)
		defer cancel()
		res, err := r.prober.Probe(pctx, exchange, creds)
		if err != nil {
			return err
		}
		result = res
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.opts.ProbeMaxAttempts-1)), ctx)

	if err := backoff.Retry(op, retry); err != nil {
		metrics.ConnectionProbes.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}
	if result == nil {
		result = &ProbeResult{}
	}
	metrics.ConnectionProbes.WithLabelValues(metrics.ResultOK).Inc()
	return result, nil
}

func (r *ConnectionRegistry) seal(creds model.Credentials) (string, error) {
	raw, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	return r.cipher.Encrypt(raw)
}

func (r *ConnectionRegistry) open(sealed string) (model.Credentials, error) {
	var creds model.Credentials
	raw, err := r.cipher.Decrypt(sealed)
	if err != nil {
		return creds, err
	}
	err = json.Unmarshal(raw, &creds)
	return creds, err
}

func (r *ConnectionRegistry) persist(ctx context.Context, conn *model.ExchangeConnection) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, conn); err != nil {
		metrics.PersistenceErrors.WithLabelValues("connection").Inc()
		r.log.Warnf("Failed to persist connection %s: %v", conn.ID, err)
	}
}

func (r *ConnectionRegistry) publish(ctx context.Context, conn *model.ExchangeConnection) {
	r.notifier.NotifyConnectionUpdate(ctx, conn.OwnerID, model.WSConnectionUpdatePayload{
		ConnectionID: conn.ID,
		Status:       conn.Status,
		Balance:      conn.Balance,
		At:           conn.UpdatedAt,
	})
}

func validateConnectionRequest(req *model.ConnectionRequest) error {
	if req == nil {
		return util.ErrValidation("Connection request is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return util.ErrValidation("Connection name is required")
	}
	if strings.TrimSpace(req.Exchange) == "" {
		return util.ErrValidation("Exchange is required")
	}
	switch req.Kind {
	case model.ConnectionKindCEX:
		if req.APIKey == "" || req.APISecret == "" {
			return util.ErrValidation("API key and secret are required for a centralized exchange")
		}
	case model.ConnectionKindDEX:
		if req.WalletAddress == "" {
			return util.ErrValidation("Wallet address is required for a decentralized exchange")
		}
	default:
		return util.ErrValidationf("Unknown connection kind %q", req.Kind)
	}
	return nil
}
