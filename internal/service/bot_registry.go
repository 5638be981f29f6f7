package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"botdeck/backend/internal/metrics"
	"botdeck/backend/internal/model"
	"botdeck/backend/internal/repository"
	"botdeck/backend/internal/strategy"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/logger"

	"github.com/google/uuid"
)

// ConnectionHealth reports whether a bot's exchange connection may be traded on
type ConnectionHealth interface {
	Status(connectionID string) (model.ConnectionStatus, bool)
	Owner(connectionID string) (string, bool)
}

// botEntry is the registry's record of one bot. mu guards bot and state;
// guard admits at most one in-flight dispatch.
type botEntry struct {
	mu    sync.Mutex
	bot   *model.Bot
	state *strategy.State
	guard chan struct{}
}

func newBotEntry(bot *model.Bot) *botEntry {
	return &botEntry{
		bot:   bot,
		state: strategy.NewState(),
		guard: make(chan struct{}, 1),
	}
}

// BotRegistry owns every bot's configuration and lifecycle state
type BotRegistry struct {
	mu   sync.RWMutex
	bots map[string]*botEntry

	conns    ConnectionHealth
	ledger   *TradeLedger
	store    repository.BotStore
	notifier Notifier
	trigger  func(botID string)
	log      *logger.Logger
	now      func() time.Time
}

func NewBotRegistry(conns ConnectionHealth, ledger *TradeLedger, store repository.BotStore, notifier Notifier) *BotRegistry {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &BotRegistry{
		bots:     make(map[string]*botEntry),
		conns:    conns,
		ledger:   ledger,
		store:    store,
		notifier: notifier,
		log:      logger.GetLogger().WithComponent("bots"),
		now:      time.Now,
	}
}

// SetTrigger installs the callback fired after a bot starts or resumes
func (r *BotRegistry) SetTrigger(fn func(botID string)) {
	r.trigger = fn
}

// Create validates req and registers a new stopped bot
func (r *BotRegistry) Create(ctx context.Context, ownerID string, req *model.BotRequest) (*model.Bot, error) {
	if err := validateBotRequest(req); err != nil {
		return nil, err
	}
	if err := r.checkOwnership(ownerID, strings.TrimSpace(req.ExchangeID)); err != nil {
		return nil, err
	}

	paper := true
	if req.IsPaperTrading != nil {
		paper = *req.IsPaperTrading
	}

	now := r.now()
	bot := &model.Bot{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Name:           strings.TrimSpace(req.Name),
		Strategy:       req.Strategy,
		ExchangeID:     strings.TrimSpace(req.ExchangeID),
		Pair:           normalizePair(req.Pair),
		Investment:     req.Investment,
		Config:         req.Config.Clone(),
		IsPaperTrading: paper,
		Status:         model.BotStatusStopped,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	r.ledger.Open(bot.ID, bot.Investment)

	entry := newBotEntry(bot)
	r.mu.Lock()
	r.bots[bot.ID] = entry
	r.mu.Unlock()

	metrics.BotsByStatus.WithLabelValues(string(bot.Status)).Inc()
	snapshot := r.snapshot(entry)
	r.persist(ctx, snapshot)
	r.log.Infof("Bot %s created (%s on %s)", bot.ID, bot.Strategy, bot.Pair)
	return snapshot, nil
}

// Start moves a bot to running and triggers one immediate dispatch.
// The bot's connection must exist and be connected.
func (r *BotRegistry) Start(ctx context.Context, id string) (*model.Bot, error) {
	return r.run(ctx, id, "start")
}

// Resume restarts a paused bot, re-checking its connection
func (r *BotRegistry) Resume(ctx context.Context, id string) (*model.Bot, error) {
	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	status := entry.bot.Status
	entry.mu.Unlock()
	if status != model.BotStatusPaused && status != model.BotStatusRunning {
		return nil, util.ErrPrecondition("Bot is not paused", fmt.Sprintf("current status: %s", status))
	}
	return r.run(ctx, id, "resume")
}

func (r *BotRegistry) run(ctx context.Context, id, action string) (*model.Bot, error) {
	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	if entry.bot.Status == model.BotStatusRunning {
		entry.mu.Unlock()
		return r.snapshot(entry), nil
	}
	if err := r.checkConnection(entry.bot); err != nil {
		entry.mu.Unlock()
		return nil, err
	}
	if !model.CanTransition(entry.bot.Status, model.BotStatusRunning) {
		status := entry.bot.Status
		entry.mu.Unlock()
		return nil, util.ErrPrecondition("Bot cannot be started", fmt.Sprintf("current status: %s", status))
	}
	r.setStatus(entry, model.BotStatusRunning)
	entry.bot.ErrorMessage = nil
	entry.mu.Unlock()

	snapshot := r.snapshot(entry)
	r.persist(ctx, snapshot)
	r.publish(ctx, snapshot)
	r.log.Infof("Bot %s running (%s)", id, action)

	if r.trigger != nil {
		r.trigger(id)
	}
	return snapshot, nil
}

func (r *BotRegistry) checkConnection(bot *model.Bot) error {
	if r.conns == nil {
		return util.ErrPrecondition("Exchange connection not available", bot.ExchangeID)
	}
	status, ok := r.conns.Status(bot.ExchangeID)
	if !ok {
		return util.ErrPrecondition("Exchange connection not found", fmt.Sprintf("connection %s does not exist", bot.ExchangeID))
	}
	if err := r.checkOwnership(bot.OwnerID, bot.ExchangeID); err != nil {
		return err
	}
	if status != model.ConnectionStatusConnected {
		return util.ErrPrecondition("Exchange connection is not connected", fmt.Sprintf("connection %s is %s", bot.ExchangeID, status))
	}
	return nil
}

// checkOwnership rejects a connection that exists but belongs to another user.
// Unknown ids pass here; starting the bot fails until the connection exists.
func (r *BotRegistry) checkOwnership(ownerID, connectionID string) error {
	if r.conns == nil {
		return nil
	}
	if owner, ok := r.conns.Owner(connectionID); ok && owner != ownerID {
		return util.ErrForbidden("Exchange connection belongs to another user")
	}
	return nil
}

// Stop moves a bot to stopped. Stopping a stopped bot is a no-op.
func (r *BotRegistry) Stop(ctx context.Context, id string) (*model.Bot, error) {
	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	if entry.bot.Status == model.BotStatusStopped {
		entry.mu.Unlock()
		return r.snapshot(entry), nil
	}
	r.setStatus(entry, model.BotStatusStopped)
	entry.bot.ErrorMessage = nil
	entry.mu.Unlock()

	snapshot := r.snapshot(entry)
	r.persist(ctx, snapshot)
	r.publish(ctx, snapshot)
	r.log.Infof("Bot %s stopped", id)
	return snapshot, nil
}

// Pause suspends a running bot without clearing its runtime state
func (r *BotRegistry) Pause(ctx context.Context, id string) (*model.Bot, error) {
	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	switch entry.bot.Status {
	case model.BotStatusPaused:
		entry.mu.Unlock()
		return r.snapshot(entry), nil
	case model.BotStatusRunning:
		r.setStatus(entry, model.BotStatusPaused)
		entry.mu.Unlock()
	default:
		status := entry.bot.Status
		entry.mu.Unlock()
		return nil, util.ErrPrecondition("Only a running bot can be paused", fmt.Sprintf("current status: %s", status))
	}

	snapshot := r.snapshot(entry)
	r.persist(ctx, snapshot)
	r.publish(ctx, snapshot)
	r.log.Infof("Bot %s paused", id)
	return snapshot, nil
}

// MarkError moves a running bot to error with cause as its message. It
// reports false when the bot is gone or no longer running.
func (r *BotRegistry) MarkError(ctx context.Context, id string, cause error) (*model.Bot, bool) {
	entry, err := r.entry(id)
	if err != nil {
		return nil, false
	}

	entry.mu.Lock()
	if entry.bot.Status != model.BotStatusRunning {
		entry.mu.Unlock()
		return nil, false
	}
	msg := cause.Error()
	r.setStatus(entry, model.BotStatusError)
	entry.bot.ErrorMessage = &msg
	entry.mu.Unlock()

	snapshot := r.snapshot(entry)
	r.persist(ctx, snapshot)
	r.publish(ctx, snapshot)
	return snapshot, true
}

// Update edits a bot that is not running or paused. Empty fields keep their value.
func (r *BotRegistry) Update(ctx context.Context, id string, req *model.BotRequest) (*model.Bot, error) {
	if req == nil {
		return nil, util.ErrValidation("Bot update is required")
	}
	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	bot := entry.bot
	if bot.Status == model.BotStatusRunning || bot.Status == model.BotStatusPaused {
		status := bot.Status
		entry.mu.Unlock()
		return nil, util.ErrPrecondition("Stop the bot before editing it", fmt.Sprintf("current status: %s", status))
	}

	merged := model.BotRequest{
		Name:       bot.Name,
		Strategy:   bot.Strategy,
		ExchangeID: bot.ExchangeID,
		Pair:       bot.Pair,
		Investment: bot.Investment,
		Config:     bot.Config.Clone(),
	}
	if req.Name != "" {
		merged.Name = req.Name
	}
	if req.Strategy != "" {
		merged.Strategy = req.Strategy
		merged.Config = req.Config.Clone()
	} else if !req.Config.IsZero() {
		merged.Config = req.Config.Clone()
	}
	if req.ExchangeID != "" {
		merged.ExchangeID = req.ExchangeID
	}
	if req.Pair != "" {
		merged.Pair = req.Pair
	}
	if req.Investment != 0 {
		merged.Investment = req.Investment
	}
	if err := validateBotRequest(&merged); err != nil {
		entry.mu.Unlock()
		return nil, err
	}
	if err := r.checkOwnership(bot.OwnerID, strings.TrimSpace(merged.ExchangeID)); err != nil {
		entry.mu.Unlock()
		return nil, err
	}

	if merged.Strategy != bot.Strategy {
		entry.state = strategy.NewState()
	}
	if delta := merged.Investment - bot.Investment; delta != 0 {
		r.ledger.AdjustCapital(id, delta)
	}
	bot.Name = strings.TrimSpace(merged.Name)
	bot.Strategy = merged.Strategy
	bot.ExchangeID = strings.TrimSpace(merged.ExchangeID)
	bot.Pair = normalizePair(merged.Pair)
	bot.Investment = merged.Investment
	bot.Config = merged.Config
	if req.IsPaperTrading != nil {
		bot.IsPaperTrading = *req.IsPaperTrading
	}
	bot.UpdatedAt = r.now()
	entry.mu.Unlock()

	snapshot := r.snapshot(entry)
	r.persist(ctx, snapshot)
	r.log.Infof("Bot %s updated", id)
	return snapshot, nil
}

// Delete stops the bot, waits for any in-flight dispatch and removes the
// bot together with its trade history and runtime state.
func (r *BotRegistry) Delete(ctx context.Context, id string) error {
	if _, err := r.Stop(ctx, id); err != nil {
		return err
	}
	entry, err := r.entry(id)
	if err != nil {
		return err
	}

	select {
	case entry.guard <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-entry.guard }()

	r.mu.Lock()
	if r.bots[id] != entry {
		r.mu.Unlock()
		return util.ErrNotFound("Bot not found")
	}
	delete(r.bots, id)
	r.mu.Unlock()

	entry.mu.Lock()
	metrics.BotsByStatus.WithLabelValues(string(entry.bot.Status)).Dec()
	entry.state = nil
	entry.mu.Unlock()

	r.ledger.Drop(ctx, id)
	if r.store != nil {
		if err := r.store.Delete(ctx, id); err != nil {
			metrics.PersistenceErrors.WithLabelValues("bot").Inc()
			r.log.Warnf("Failed to delete bot %s from store: %v", id, err)
		}
	}
	r.log.Infof("Bot %s deleted", id)
	return nil
}

// Get returns a snapshot of one bot with its performance merged in
func (r *BotRegistry) Get(ctx context.Context, id string) (*model.Bot, error) {
	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	return r.snapshot(entry), nil
}

// List returns snapshots of every bot, oldest first
func (r *BotRegistry) List(ctx context.Context) []*model.Bot {
	return r.filter(func(*model.Bot) bool { return true })
}

// ListByOwner returns the bots created by ownerID
func (r *BotRegistry) ListByOwner(ctx context.Context, ownerID string) []*model.Bot {
	return r.filter(func(b *model.Bot) bool { return b.OwnerID == ownerID })
}

func (r *BotRegistry) filter(keep func(*model.Bot) bool) []*model.Bot {
	r.mu.RLock()
	entries := make([]*botEntry, 0, len(r.bots))
	for _, e := range r.bots {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]*model.Bot, 0, len(entries))
	for _, e := range entries {
		if snap := r.snapshot(e); keep(snap) {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Summary returns the performance summary of one bot
func (r *BotRegistry) Summary(ctx context.Context, id string) (*model.BotSummary, error) {
	bot, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	perf, _ := r.ledger.Performance(id)
	summary := model.NewBotSummary(bot, perf)
	return &summary, nil
}

// Trades returns the bot's trade history in submission order
func (r *BotRegistry) Trades(ctx context.Context, id string) ([]*model.Trade, error) {
	if _, err := r.entry(id); err != nil {
		return nil, err
	}
	return r.ledger.Trades(id)
}

// Load inserts a bot read back from the store. Bots persisted as running or
// paused come back stopped.
func (r *BotRegistry) Load(bot *model.Bot) {
	b := bot.Clone()
	if b.Status == model.BotStatusRunning || b.Status == model.BotStatusPaused {
		b.Status = model.BotStatusStopped
	}
	b.ApplyPerformance(model.Performance{})

	r.mu.Lock()
	r.bots[b.ID] = newBotEntry(b)
	r.mu.Unlock()
	metrics.BotsByStatus.WithLabelValues(string(b.Status)).Inc()
}

// RunningIDs returns the ids of every running bot
func (r *BotRegistry) RunningIDs() []string {
	r.mu.RLock()
	entries := make([]*botEntry, 0, len(r.bots))
	for _, e := range r.bots {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.bot.Status == model.BotStatusRunning {
			ids = append(ids, e.bot.ID)
		}
		e.mu.Unlock()
	}
	return ids
}

// tryAcquire takes the bot's dispatch guard without blocking
func (r *BotRegistry) tryAcquire(id string) (*botEntry, bool) {
	entry, err := r.entry(id)
	if err != nil {
		return nil, false
	}
	select {
	case entry.guard <- struct{}{}:
		return entry, true
	default:
		return nil, false
	}
}

func (e *botEntry) release() {
	<-e.guard
}

// dispatchTarget returns a snapshot and runtime state for a running bot
func (r *BotRegistry) dispatchTarget(entry *botEntry) (*model.Bot, *strategy.State, bool) {
	entry.mu.Lock()
	running := entry.bot.Status == model.BotStatusRunning
	state := entry.state
	entry.mu.Unlock()
	if !running || state == nil {
		return nil, nil, false
	}
	return r.snapshot(entry), state, true
}

func (r *BotRegistry) entry(id string) (*botEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.bots[id]
	if !ok {
		return nil, util.ErrNotFound("Bot not found")
	}
	return e, nil
}

// snapshot copies the bot and merges its ledger performance
func (r *BotRegistry) snapshot(entry *botEntry) *model.Bot {
	entry.mu.Lock()
	b := entry.bot.Clone()
	entry.mu.Unlock()

	if perf, ok := r.ledger.Performance(b.ID); ok {
		b.ApplyPerformance(perf)
	}
	return b
}

// setStatus changes the status and keeps the status gauge in step. Caller holds entry.mu.
func (r *BotRegistry) setStatus(entry *botEntry, status model.BotStatus) {
	metrics.BotsByStatus.WithLabelValues(string(entry.bot.Status)).Dec()
	metrics.BotsByStatus.WithLabelValues(string(status)).Inc()
	entry.bot.Status = status
	entry.bot.UpdatedAt = r.now()
}

func (r *BotRegistry) persist(ctx context.Context, bot *model.Bot) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, bot); err != nil {
		metrics.PersistenceErrors.WithLabelValues("bot").Inc()
		r.log.Warnf("Failed to persist bot %s: %v", bot.ID, err)
	}
}

func (r *BotRegistry) publish(ctx context.Context, bot *model.Bot) {
	r.notifier.NotifyBotUpdate(ctx, bot.OwnerID, model.NewBotUpdatePayload(bot))
}

func validateBotRequest(req *model.BotRequest) error {
	if req == nil {
		return util.ErrValidation("Bot request is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return util.ErrValidation("Bot name is required")
	}
	if !req.Strategy.Valid() {
		return util.ErrValidationf("Unknown strategy %q", req.Strategy)
	}
	if strings.TrimSpace(req.ExchangeID) == "" {
		return util.ErrValidation("Exchange connection id is required")
	}
	if strings.TrimSpace(req.Pair) == "" {
		return util.ErrValidation("Trading pair is required")
	}
	if !util.IsFinite(req.Investment) || req.Investment <= 0 {
		return util.ErrValidation("Investment must be a positive number")
	}
	if req.Investment > util.MaxReasonableInvestment {
		return util.ErrValidationf("Investment must not exceed %g", float64(util.MaxReasonableInvestment))
	}
	return strategy.Validate(req.Strategy, req.Config)
}

func normalizePair(pair string) string {
	return strings.ToLower(strings.TrimSpace(pair))
}
