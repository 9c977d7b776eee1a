package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrActionNotPending indicates a status update targeted an action
	// that is not in the suggested state. Status never moves backward.
	ErrActionNotPending = errors.New("storage: action is not pending")
)

const (
	insertSnapshotSQL = `INSERT INTO chain_snapshots (
        chain_id, total_reserve_micro, locked_micro, available_micro, captured_at, block_number
    ) VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id, created_at;`

	listSnapshotsBetweenSQL = `SELECT
        id, chain_id, total_reserve_micro, locked_micro, available_micro, captured_at, block_number, created_at
    FROM chain_snapshots
    WHERE chain_id = $1 AND captured_at >= $2 AND captured_at < $3
    ORDER BY captured_at;`

	listRecentSnapshotsSQL = `SELECT
        id, chain_id, total_reserve_micro, locked_micro, available_micro, captured_at, block_number, created_at
    FROM chain_snapshots
    WHERE chain_id = $1
    ORDER BY captured_at DESC
    LIMIT $2;`

	listEventsSinceSQL = `SELECT
        id, tx_hash, user_address, amount_micro, source_chain_id, destination_chain_id, block_number, occurred_at, status
    FROM bridge_events
    WHERE occurred_at >= $1
    ORDER BY occurred_at DESC;`

	listUnlocksDueSQL = `SELECT
        id, chain_id, lp_address, amount_micro, unlock_at, processed
    FROM lp_unlocks
    WHERE NOT processed AND unlock_at >= $1 AND unlock_at < $2
    ORDER BY unlock_at;`

	insertReasoningSQL = `INSERT INTO reasoning_records (
        analysis_at, interest_a_micro, interest_b_micro, net_flow_micro, debt_micro,
        source_chain_id, destination_chain_id, needs_rebalance, suggested_amount_micro,
        suggested_route, thoughts, data_freshness, sufficient_liquidity, cost_efficiency,
        confidence_score, snapshot_a_id, snapshot_b_id, event_ids
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
    RETURNING id, created_at;`

	insertActionSQL = `INSERT INTO rebalance_actions (
        action_at, source_chain_id, destination_chain_id, amount_micro, net_debt_micro,
        route, status, reasoning_id
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING id, created_at;`

	listRecentReasoningSQL = `SELECT
        id, analysis_at, interest_a_micro, interest_b_micro, net_flow_micro, debt_micro,
        source_chain_id, destination_chain_id, needs_rebalance, suggested_amount_micro,
        suggested_route, thoughts, data_freshness, sufficient_liquidity, cost_efficiency,
        confidence_score, snapshot_a_id, snapshot_b_id, event_ids, created_at
    FROM reasoning_records
    ORDER BY analysis_at DESC
    LIMIT $1;`

	actionColumns = `id, action_at, source_chain_id, destination_chain_id, amount_micro,
        net_debt_micro, route, status, tx_hash, reasoning_id, created_at`

	latestActionSQL = `SELECT ` + actionColumns + `
    FROM rebalance_actions
    ORDER BY action_at DESC
    LIMIT 1;`

	getActionSQL = `SELECT ` + actionColumns + `
    FROM rebalance_actions
    WHERE id = $1;`

	listRecentActionsSQL = `SELECT ` + actionColumns + `
    FROM rebalance_actions
    ORDER BY action_at DESC
    LIMIT $1;`

	updateActionStatusSQL = `UPDATE rebalance_actions
    SET status = $2, tx_hash = $3
    WHERE id = $1 AND status = 'suggested';`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore persists and queries vault reserve observations.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, snap ChainSnapshot) (ChainSnapshot, error)
	ListSnapshotsBetween(ctx context.Context, chainID int64, from, to time.Time) ([]ChainSnapshot, error)
	ListRecentSnapshots(ctx context.Context, chainID int64, limit int) ([]ChainSnapshot, error)
}

// EventStore reads externally produced bridge transfer events.
type EventStore interface {
	ListEventsSince(ctx context.Context, since time.Time) ([]BridgeEvent, error)
}

// ObligationStore reads upcoming liquidity obligations.
type ObligationStore interface {
	ListUnlocksDue(ctx context.Context, from, to time.Time) ([]LPUnlock, error)
}

// ReasoningStore persists analysis outcomes.
type ReasoningStore interface {
	// InsertAnalysis writes the reasoning record and, when present, the
	// suggested action in a single transaction.
	InsertAnalysis(ctx context.Context, rec ReasoningRecord, action *RebalanceAction) (ReasoningRecord, *RebalanceAction, error)
	ListRecentReasoning(ctx context.Context, limit int) ([]ReasoningRecord, error)
}

// ActionStore queries and updates rebalance actions.
type ActionStore interface {
	LatestAction(ctx context.Context) (*RebalanceAction, error)
	GetAction(ctx context.Context, id int64) (RebalanceAction, error)
	ListRecentActions(ctx context.Context, limit int) ([]RebalanceAction, error)
	UpdateActionStatus(ctx context.Context, id int64, status string, txHash *string) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to the rebalancer tables.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; the connection release drops it anyway
		}
		conn.Release()
	}
	return unlock, true, nil
}

// InsertSnapshot persists a reserve observation.
func (s *Store) InsertSnapshot(ctx context.Context, snap ChainSnapshot) (ChainSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return ChainSnapshot{}, err
	}

	row := pool.QueryRow(ctx, insertSnapshotSQL,
		snap.ChainID,
		snap.TotalReserveMicro,
		snap.LockedMicro,
		snap.AvailableMicro,
		snap.CapturedAt,
		snap.BlockNumber,
	)
	if err := row.Scan(&snap.ID, &snap.CreatedAt); err != nil {
		return ChainSnapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshotsBetween lists snapshots for a chain within a time window.
func (s *Store) ListSnapshotsBetween(ctx context.Context, chainID int64, from, to time.Time) ([]ChainSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsBetweenSQL, chainID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

// ListRecentSnapshots lists the most recent snapshots for a chain.
func (s *Store) ListRecentSnapshots(ctx context.Context, chainID int64, limit int) ([]ChainSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, chainID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

func collectSnapshots(rows pgx.Rows) ([]ChainSnapshot, error) {
	snaps := make([]ChainSnapshot, 0)
	for rows.Next() {
		var snap ChainSnapshot
		if err := rows.Scan(
			&snap.ID,
			&snap.ChainID,
			&snap.TotalReserveMicro,
			&snap.LockedMicro,
			&snap.AvailableMicro,
			&snap.CapturedAt,
			&snap.BlockNumber,
			&snap.CreatedAt,
		); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

// ListEventsSince lists bridge events at or after the given time.
func (s *Store) ListEventsSince(ctx context.Context, since time.Time) ([]BridgeEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEventsSinceSQL, since)
	if queryErr != nil {
		return nil, fmt.Errorf("list events since: %w", queryErr)
	}
	defer rows.Close()

	events := make([]BridgeEvent, 0)
	for rows.Next() {
		var ev BridgeEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.TxHash,
			&ev.UserAddress,
			&ev.AmountMicro,
			&ev.SourceChainID,
			&ev.DestinationChainID,
			&ev.BlockNumber,
			&ev.OccurredAt,
			&ev.Status,
		); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

// ListUnlocksDue lists unprocessed unlocks due within [from, to).
func (s *Store) ListUnlocksDue(ctx context.Context, from, to time.Time) ([]LPUnlock, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listUnlocksDueSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list unlocks due: %w", queryErr)
	}
	defer rows.Close()

	unlocks := make([]LPUnlock, 0)
	for rows.Next() {
		var u LPUnlock
		if err := rows.Scan(
			&u.ID,
			&u.ChainID,
			&u.LPAddress,
			&u.AmountMicro,
			&u.UnlockAt,
			&u.Processed,
		); err != nil {
			return nil, err
		}
		unlocks = append(unlocks, u)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return unlocks, nil
}

// InsertAnalysis writes a reasoning record plus optional suggested action atomically.
func (s *Store) InsertAnalysis(ctx context.Context, rec ReasoningRecord, action *RebalanceAction) (ReasoningRecord, *RebalanceAction, error) {
	pool, err := s.getPool()
	if err != nil {
		return ReasoningRecord{}, nil, err
	}

	thoughts, err := json.Marshal(rec.Thoughts)
	if err != nil {
		return ReasoningRecord{}, nil, fmt.Errorf("marshal thoughts: %w", err)
	}
	eventIDs, err := json.Marshal(rec.EventIDs)
	if err != nil {
		return ReasoningRecord{}, nil, fmt.Errorf("marshal event ids: %w", err)
	}

	var route interface{}
	if len(rec.SuggestedRoute) > 0 {
		route = []byte(rec.SuggestedRoute)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return ReasoningRecord{}, nil, fmt.Errorf("begin analysis tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, insertReasoningSQL,
		rec.AnalysisAt,
		rec.InterestAMicro,
		rec.InterestBMicro,
		rec.NetFlowMicro,
		rec.DebtMicro,
		rec.SourceChainID,
		rec.DestinationChainID,
		rec.NeedsRebalance,
		rec.SuggestedAmountMicro,
		route,
		thoughts,
		rec.DataFreshness,
		rec.SufficientLiquidity,
		rec.CostEfficiency,
		rec.ConfidenceScore,
		rec.SnapshotAID,
		rec.SnapshotBID,
		eventIDs,
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return ReasoningRecord{}, nil, fmt.Errorf("insert reasoning record: %w", err)
	}

	if action != nil {
		action.ReasoningID = rec.ID
		action.Status = ActionSuggested

		var actionRoute interface{}
		if len(action.Route) > 0 {
			actionRoute = []byte(action.Route)
		}

		row := tx.QueryRow(ctx, insertActionSQL,
			action.ActionAt,
			action.SourceChainID,
			action.DestinationChainID,
			action.AmountMicro,
			action.NetDebtMicro,
			actionRoute,
			action.Status,
			action.ReasoningID,
		)
		if err := row.Scan(&action.ID, &action.CreatedAt); err != nil {
			return ReasoningRecord{}, nil, fmt.Errorf("insert rebalance action: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ReasoningRecord{}, nil, fmt.Errorf("commit analysis tx: %w", err)
	}
	return rec, action, nil
}

// ListRecentReasoning lists the most recent reasoning records.
func (s *Store) ListRecentReasoning(ctx context.Context, limit int) ([]ReasoningRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentReasoningSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent reasoning: %w", queryErr)
	}
	defer rows.Close()

	records := make([]ReasoningRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanReasoning(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanReasoning(rows pgx.Rows) (ReasoningRecord, error) {
	var (
		rec      ReasoningRecord
		route    []byte
		thoughts []byte
		eventIDs []byte
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.AnalysisAt,
		&rec.InterestAMicro,
		&rec.InterestBMicro,
		&rec.NetFlowMicro,
		&rec.DebtMicro,
		&rec.SourceChainID,
		&rec.DestinationChainID,
		&rec.NeedsRebalance,
		&rec.SuggestedAmountMicro,
		&route,
		&thoughts,
		&rec.DataFreshness,
		&rec.SufficientLiquidity,
		&rec.CostEfficiency,
		&rec.ConfidenceScore,
		&rec.SnapshotAID,
		&rec.SnapshotBID,
		&eventIDs,
		&rec.CreatedAt,
	); err != nil {
		return ReasoningRecord{}, err
	}

	if len(route) > 0 {
		rec.SuggestedRoute = json.RawMessage(route)
	}
	if err := json.Unmarshal(thoughts, &rec.Thoughts); err != nil {
		return ReasoningRecord{}, fmt.Errorf("parse thoughts: %w", err)
	}
	if err := json.Unmarshal(eventIDs, &rec.EventIDs); err != nil {
		return ReasoningRecord{}, fmt.Errorf("parse event ids: %w", err)
	}
	return rec, nil
}

// LatestAction returns the most recent rebalance action, or nil when none exist.
func (s *Store) LatestAction(ctx context.Context) (*RebalanceAction, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, latestActionSQL)
	action, scanErr := scanAction(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest action: %w", scanErr)
	}
	return &action, nil
}

// GetAction fetches one rebalance action by id.
func (s *Store) GetAction(ctx context.Context, id int64) (RebalanceAction, error) {
	pool, err := s.getPool()
	if err != nil {
		return RebalanceAction{}, err
	}

	row := pool.QueryRow(ctx, getActionSQL, id)
	action, scanErr := scanAction(row)
	if scanErr != nil {
		return RebalanceAction{}, fmt.Errorf("get action %d: %w", id, scanErr)
	}
	return action, nil
}

// ListRecentActions lists the most recent rebalance actions.
func (s *Store) ListRecentActions(ctx context.Context, limit int) ([]RebalanceAction, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentActionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent actions: %w", queryErr)
	}
	defer rows.Close()

	actions := make([]RebalanceAction, 0, limit)
	for rows.Next() {
		action, scanErr := scanAction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		actions = append(actions, action)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return actions, nil
}

// UpdateActionStatus moves a suggested action to executed or failed.
func (s *Store) UpdateActionStatus(ctx context.Context, id int64, status string, txHash *string) error {
	if status != ActionExecuted && status != ActionFailed {
		return fmt.Errorf("invalid target status %q", status)
	}

	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var hash interface{}
	if txHash != nil {
		hash = *txHash
	}

	tag, execErr := pool.Exec(ctx, updateActionStatusSQL, id, status, hash)
	if execErr != nil {
		return fmt.Errorf("update action status: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return ErrActionNotPending
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (RebalanceAction, error) {
	var (
		action RebalanceAction
		route  []byte
		hash   *string
	)

	if err := row.Scan(
		&action.ID,
		&action.ActionAt,
		&action.SourceChainID,
		&action.DestinationChainID,
		&action.AmountMicro,
		&action.NetDebtMicro,
		&route,
		&action.Status,
		&hash,
		&action.ReasoningID,
		&action.CreatedAt,
	); err != nil {
		return RebalanceAction{}, err
	}

	if len(route) > 0 {
		action.Route = json.RawMessage(route)
	}
	action.TxHash = hash
	return action, nil
}
