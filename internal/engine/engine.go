package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vault-rebalancer/internal/chain"
	"vault-rebalancer/internal/config"
	"vault-rebalancer/internal/metrics"
	"vault-rebalancer/internal/route"
	"vault-rebalancer/internal/storage"
)

var (
	// ErrRunInFlight indicates an analysis run is already executing.
	// Overlapping runs against the same log could write duplicate rows
	// for one time window, so the newer run is skipped.
	ErrRunInFlight = errors.New("engine: analysis already in flight")
	// ErrPersistence marks a failed read or write against the log
	// store. Fatal: the run's outputs are lost and a re-run is needed.
	ErrPersistence = errors.New("engine: persistence failure")
)

// Options carry the engine's decision parameters.
type Options struct {
	ChainA    config.ChainConfig
	ChainB    config.ChainConfig
	Rebalance config.RebalanceConfig
	// LockKey selects the advisory lock guarding against concurrent
	// runs across processes. Zero disables the database lock.
	LockKey int64
}

// Deps are the engine's collaborators. All external calls go through
// these seams so tests can substitute doubles.
type Deps struct {
	Reader      chain.ReserveReader
	Snapshots   storage.SnapshotStore
	Events      storage.EventStore
	Obligations ObligationSource
	Reasoning   storage.ReasoningStore
	Actions     storage.ActionStore
	Quoter      route.Quoter
	Locker      storage.AdvisoryLocker
}

// Outcome is the result of one completed analysis run.
type Outcome struct {
	Record         storage.ReasoningRecord
	Action         *storage.RebalanceAction
	NeedsRebalance bool
}

// Engine periodically inspects the reserves of the two vaults, decides
// whether a cross-chain rebalance is warranted, and persists an
// auditable reasoning record.
type Engine struct {
	opts   Options
	deps   Deps
	logger zerolog.Logger
	now    func() time.Time

	runMux sync.Mutex
}

// New constructs an engine instance with explicit collaborators.
func New(opts Options, deps Deps, logger zerolog.Logger) *Engine {
	return &Engine{
		opts:   opts,
		deps:   deps,
		logger: logger.With().Str("component", "engine").Logger(),
		now:    time.Now,
	}
}

// Run executes one full analysis: capture, aggregate, project, decide,
// optionally seek a route, compose, persist. Idempotent trigger: a run
// already in flight returns ErrRunInFlight.
func (e *Engine) Run(ctx context.Context) (*Outcome, error) {
	if !e.runMux.TryLock() {
		return nil, ErrRunInFlight
	}
	defer e.runMux.Unlock()

	if e.deps.Locker != nil && e.opts.LockKey != 0 {
		unlock, acquired, err := e.deps.Locker.TryAdvisoryLock(ctx, e.opts.LockKey)
		if err != nil {
			return nil, fmt.Errorf("%w: acquire run lock: %v", ErrPersistence, err)
		}
		if !acquired {
			return nil, ErrRunInFlight
		}
		defer unlock()
	}

	outcome, err := e.analyze(ctx)
	if err != nil {
		metrics.AnalysisRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.AnalysisRunsTotal.WithLabelValues("ok").Inc()
	metrics.ConfidenceScore.Set(outcome.Record.ConfidenceScore)
	if outcome.Action != nil {
		metrics.SuggestionsTotal.Inc()
	}
	return outcome, nil
}

func (e *Engine) analyze(ctx context.Context) (*Outcome, error) {
	analysisAt := e.now().UTC()
	e.logger.Info().Time("analysis_at", analysisAt).Msg("starting analysis run")

	snapA, snapB, err := e.captureSnapshots(ctx, analysisAt)
	if err != nil {
		return nil, err
	}

	windowStart, err := e.windowStart(ctx, analysisAt)
	if err != nil {
		return nil, err
	}

	events, err := e.deps.Events.ListEventsSince(ctx, windowStart)
	if err != nil {
		return nil, fmt.Errorf("%w: list bridge events: %v", ErrPersistence, err)
	}

	reserves := map[int64]int64{
		snapA.ChainID: snapA.TotalReserveMicro,
		snapB.ChainID: snapB.TotalReserveMicro,
	}
	flow := AggregateFlow(events, reserves, e.opts.ChainA.ChainID, e.opts.ChainB.ChainID)

	horizon := e.opts.Rebalance.DemandHorizon
	obligations, err := e.deps.Obligations.ObligationsDue(ctx, analysisAt, analysisAt.Add(horizon))
	if err != nil {
		return nil, fmt.Errorf("%w: list obligations: %v", ErrPersistence, err)
	}

	demandA := ProjectDemand(obligations, e.opts.ChainA.ChainID)
	demandB := ProjectDemand(obligations, e.opts.ChainB.ChainID)

	debt := ComputeDebt(
		e.opts.ChainA.ChainID, e.opts.ChainB.ChainID,
		snapA.AvailableMicro, snapB.AvailableMicro,
		demandA, demandB,
		e.opts.Rebalance.BufferPct,
	)

	needsRebalance := debt.AmountMicro > e.opts.Rebalance.ThresholdMicro

	e.logger.Info().
		Str("debt", FormatMicro(debt.AmountMicro)).
		Int64("source_chain", debt.SourceChainID).
		Int64("destination_chain", debt.DestinationChainID).
		Str("net_flow", FormatMicro(flow.NetFlowMicro)).
		Bool("needs_rebalance", needsRebalance).
		Msg("debt computed")

	var quote *route.Quote
	if needsRebalance {
		quote = e.findRoute(ctx, debt)
	}

	thoughts, factors := Compose(ComposeInput{
		ChainA:         e.opts.ChainA,
		ChainB:         e.opts.ChainB,
		SnapA:          snapA,
		SnapB:          snapB,
		Flow:           flow,
		Obligations:    obligations,
		Debt:           debt,
		NeedsRebalance: needsRebalance,
		Quote:          quote,
		AnalysisAt:     analysisAt,
		Freshness:      e.opts.Rebalance.FreshnessThreshold,
	})

	rec := storage.ReasoningRecord{
		AnalysisAt:          analysisAt,
		InterestAMicro:      flow.InterestMicro[e.opts.ChainA.ChainID],
		InterestBMicro:      flow.InterestMicro[e.opts.ChainB.ChainID],
		NetFlowMicro:        flow.NetFlowMicro,
		DebtMicro:           debt.AmountMicro,
		SourceChainID:       debt.SourceChainID,
		DestinationChainID:  debt.DestinationChainID,
		NeedsRebalance:      needsRebalance,
		DataFreshness:       factors.DataFreshness,
		SufficientLiquidity: factors.SufficientLiquidity,
		CostEfficiency:      factors.CostEfficiency,
		ConfidenceScore:     factors.Score(),
		Thoughts:            thoughts,
		SnapshotAID:         snapA.ID,
		SnapshotBID:         snapB.ID,
		EventIDs:            eventIDs(events),
	}
	if needsRebalance {
		rec.SuggestedAmountMicro = debt.AmountMicro
	}
	if quote != nil {
		rec.SuggestedRoute = quote.Raw
	}

	var action *storage.RebalanceAction
	if needsRebalance && quote != nil {
		action = &storage.RebalanceAction{
			ActionAt:           analysisAt,
			SourceChainID:      debt.SourceChainID,
			DestinationChainID: debt.DestinationChainID,
			AmountMicro:        debt.AmountMicro,
			NetDebtMicro:       debt.AmountMicro,
			Route:              quote.Raw,
		}
	}

	rec, action, err = e.deps.Reasoning.InsertAnalysis(ctx, rec, action)
	if err != nil {
		return nil, fmt.Errorf("%w: persist analysis: %v", ErrPersistence, err)
	}

	e.logger.Info().
		Int64("record_id", rec.ID).
		Float64("confidence", rec.ConfidenceScore).
		Bool("action_suggested", action != nil).
		Msg("analysis persisted")

	return &Outcome{Record: rec, Action: action, NeedsRebalance: needsRebalance}, nil
}

// captureSnapshots reads both vaults concurrently. Each snapshot is
// persisted before use so the audit trail exists even if a later step
// fails; any read failure aborts the run.
func (e *Engine) captureSnapshots(ctx context.Context, at time.Time) (storage.ChainSnapshot, storage.ChainSnapshot, error) {
	type result struct {
		snap storage.ChainSnapshot
		err  error
	}

	capture := func(cc config.ChainConfig, out chan<- result) {
		snap, err := e.captureSnapshot(ctx, cc, at)
		out <- result{snap: snap, err: err}
	}

	chA := make(chan result, 1)
	chB := make(chan result, 1)
	go capture(e.opts.ChainA, chA)
	go capture(e.opts.ChainB, chB)

	resA, resB := <-chA, <-chB
	if resA.err != nil {
		return storage.ChainSnapshot{}, storage.ChainSnapshot{}, resA.err
	}
	if resB.err != nil {
		return storage.ChainSnapshot{}, storage.ChainSnapshot{}, resB.err
	}
	return resA.snap, resB.snap, nil
}

func (e *Engine) captureSnapshot(ctx context.Context, cc config.ChainConfig, at time.Time) (storage.ChainSnapshot, error) {
	reserve, err := e.deps.Reader.ReadReserve(ctx, cc.ChainID)
	if err != nil {
		return storage.ChainSnapshot{}, fmt.Errorf("capture snapshot for chain %d: %w", cc.ChainID, err)
	}

	// Per-user lock accounting is not wired in; the whole reserve is
	// treated as available. LockedMicro keeps the column honest.
	snap := storage.ChainSnapshot{
		ChainID:           cc.ChainID,
		TotalReserveMicro: reserve.TotalMicro,
		LockedMicro:       0,
		AvailableMicro:    reserve.TotalMicro,
		CapturedAt:        at,
		BlockNumber:       int64(reserve.BlockNumber),
	}

	stored, err := e.deps.Snapshots.InsertSnapshot(ctx, snap)
	if err != nil {
		return storage.ChainSnapshot{}, fmt.Errorf("%w: persist snapshot for chain %d: %v", ErrPersistence, cc.ChainID, err)
	}

	metrics.ReserveMicro.WithLabelValues(strconv.FormatInt(cc.ChainID, 10)).Set(float64(stored.TotalReserveMicro))
	return stored, nil
}

// windowStart anchors flow aggregation at the last rebalance action,
// falling back to a fixed lookback when none exists.
func (e *Engine) windowStart(ctx context.Context, at time.Time) (time.Time, error) {
	last, err := e.deps.Actions.LatestAction(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: latest action: %v", ErrPersistence, err)
	}
	if last != nil {
		return last.ActionAt, nil
	}
	return at.Add(-e.opts.Rebalance.FallbackWindow), nil
}

// findRoute asks the quoting collaborator for candidates and takes the
// first one. Quote failures are not fatal; the run continues with no
// suggested route.
func (e *Engine) findRoute(ctx context.Context, debt DebtResult) *route.Quote {
	req := route.Request{
		FromChainID: debt.SourceChainID,
		ToChainID:   debt.DestinationChainID,
		AmountMicro: debt.AmountMicro,
	}
	for _, cc := range []config.ChainConfig{e.opts.ChainA, e.opts.ChainB} {
		if cc.ChainID == debt.SourceChainID {
			req.FromToken = cc.USDCAddress
			req.FromAddress = cc.VaultAddress
		}
		if cc.ChainID == debt.DestinationChainID {
			req.ToToken = cc.USDCAddress
			req.ToAddress = cc.VaultAddress
		}
	}

	quotes, err := e.deps.Quoter.Routes(ctx, req)
	if err != nil {
		metrics.RouteLookupsTotal.WithLabelValues("unavailable").Inc()
		e.logger.Warn().Err(err).Msg("route lookup failed; continuing without a route")
		return nil
	}
	if len(quotes) == 0 {
		metrics.RouteLookupsTotal.WithLabelValues("empty").Inc()
		return nil
	}

	metrics.RouteLookupsTotal.WithLabelValues("ok").Inc()
	// Candidates arrive ranked by the aggregator; the first one wins.
	return &quotes[0]
}

func eventIDs(events []storage.BridgeEvent) []int64 {
	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	return ids
}
