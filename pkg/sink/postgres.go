package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/VrindaBansal/mevscope/pkg/types"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink appends emitted opportunities to a history table for later
// analysis. Steps are stored as a JSON document; the scalar columns carry
// everything the usual queries filter on.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// EnsureSchema creates the history table when it does not exist yet.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS opportunity_history (
			id                  TEXT PRIMARY KEY,
			type                TEXT NOT NULL,
			protocols           TEXT[] NOT NULL,
			involved_ids        TEXT[] NOT NULL,
			steps               JSONB,
			gross_profit_usd    DOUBLE PRECISION NOT NULL,
			gas_cost_usd        DOUBLE PRECISION NOT NULL,
			net_profit_usd      DOUBLE PRECISION NOT NULL,
			confidence          DOUBLE PRECISION NOT NULL,
			detected_at         TIMESTAMPTZ NOT NULL,
			source_block_height BIGINT NOT NULL,
			source_block_hash   TEXT NOT NULL,
			dedup_key           TEXT NOT NULL
		)`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres sink: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Publish(ctx context.Context, opp *types.MEVOpportunity) error {
	const query = `
		INSERT INTO opportunity_history (
			id, type, protocols, involved_ids, steps,
			gross_profit_usd, gas_cost_usd, net_profit_usd, confidence,
			detected_at, source_block_height, source_block_hash, dedup_key
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13
		) ON CONFLICT (id) DO UPDATE SET
			net_profit_usd = EXCLUDED.net_profit_usd,
			confidence = EXCLUDED.confidence`

	steps, err := json.Marshal(opp.Steps)
	if err != nil {
		return fmt.Errorf("postgres sink: encode steps %s: %w", opp.ID, err)
	}
	_, err = s.pool.Exec(ctx, query,
		opp.ID, string(opp.Type), opp.Protocols, opp.InvolvedIDs, steps,
		opp.GrossProfitUSD, opp.GasCostUSD, opp.NetProfitUSD, opp.Confidence,
		opp.DetectedAt, int64(opp.SourceBlockHeight), opp.SourceBlockHash.Hex(), opp.DedupKey,
	)
	if err != nil {
		return fmt.Errorf("postgres sink: insert %s: %w", opp.ID, err)
	}
	return nil
}
