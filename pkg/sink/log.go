package sink

import (
	"context"

	"github.com/VrindaBansal/mevscope/pkg/types"
	"go.uber.org/zap"
)

// LogSink writes every emitted opportunity to the structured log. Always
// enabled; it is the sink of last resort when no external surface is
// configured.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(_ context.Context, opp *types.MEVOpportunity) error {
	s.log.Info("mev opportunity",
		zap.String("id", opp.ID),
		zap.String("type", string(opp.Type)),
		zap.Strings("protocols", opp.Protocols),
		zap.Float64("gross_usd", opp.GrossProfitUSD),
		zap.Float64("gas_usd", opp.GasCostUSD),
		zap.Float64("net_usd", opp.NetProfitUSD),
		zap.Float64("confidence", opp.Confidence),
		zap.Uint64("height", opp.SourceBlockHeight),
		zap.Int("steps", len(opp.Steps)))
	return nil
}
