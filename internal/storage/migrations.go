package storage

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS chain_snapshots (
    id BIGSERIAL PRIMARY KEY,
    chain_id BIGINT NOT NULL,
    total_reserve_micro BIGINT NOT NULL,
    locked_micro BIGINT NOT NULL DEFAULT 0,
    available_micro BIGINT NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL,
    block_number BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_chain_snapshots_chain_captured
    ON chain_snapshots (chain_id, captured_at DESC);

CREATE TABLE IF NOT EXISTS bridge_events (
    id BIGSERIAL PRIMARY KEY,
    tx_hash TEXT NOT NULL,
    user_address TEXT NOT NULL DEFAULT '',
    amount_micro BIGINT NOT NULL CHECK (amount_micro > 0),
    source_chain_id BIGINT NOT NULL,
    destination_chain_id BIGINT NOT NULL,
    block_number BIGINT NOT NULL DEFAULT 0,
    occurred_at TIMESTAMPTZ NOT NULL,
    status TEXT NOT NULL DEFAULT 'completed',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_bridge_events_occurred
    ON bridge_events (occurred_at DESC);

CREATE TABLE IF NOT EXISTS lp_unlocks (
    id BIGSERIAL PRIMARY KEY,
    chain_id BIGINT NOT NULL,
    lp_address TEXT NOT NULL DEFAULT '',
    amount_micro BIGINT NOT NULL CHECK (amount_micro >= 0),
    unlock_at TIMESTAMPTZ NOT NULL,
    processed BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_lp_unlocks_due
    ON lp_unlocks (unlock_at) WHERE NOT processed;

CREATE TABLE IF NOT EXISTS reasoning_records (
    id BIGSERIAL PRIMARY KEY,
    analysis_at TIMESTAMPTZ NOT NULL,
    interest_a_micro BIGINT NOT NULL,
    interest_b_micro BIGINT NOT NULL,
    net_flow_micro BIGINT NOT NULL,
    debt_micro BIGINT NOT NULL CHECK (debt_micro >= 0),
    source_chain_id BIGINT NOT NULL,
    destination_chain_id BIGINT NOT NULL,
    needs_rebalance BOOLEAN NOT NULL,
    suggested_amount_micro BIGINT NOT NULL,
    suggested_route JSONB,
    thoughts JSONB NOT NULL,
    data_freshness BOOLEAN NOT NULL,
    sufficient_liquidity BOOLEAN NOT NULL,
    cost_efficiency BOOLEAN NOT NULL,
    confidence_score DOUBLE PRECISION NOT NULL,
    snapshot_a_id BIGINT NOT NULL,
    snapshot_b_id BIGINT NOT NULL,
    event_ids JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_reasoning_records_analysis
    ON reasoning_records (analysis_at DESC);

CREATE TABLE IF NOT EXISTS rebalance_actions (
    id BIGSERIAL PRIMARY KEY,
    action_at TIMESTAMPTZ NOT NULL,
    source_chain_id BIGINT NOT NULL,
    destination_chain_id BIGINT NOT NULL,
    amount_micro BIGINT NOT NULL CHECK (amount_micro > 0),
    net_debt_micro BIGINT NOT NULL,
    route JSONB,
    status TEXT NOT NULL CHECK (status IN ('suggested', 'executed', 'failed')),
    tx_hash TEXT,
    reasoning_id BIGINT NOT NULL REFERENCES reasoning_records(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_rebalance_actions_action_at
    ON rebalance_actions (action_at DESC);
`

// Migrate applies the schema. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, migrationSQL)
	return err
}
