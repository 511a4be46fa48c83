// Package sink holds the boundary adapters that receive emitted
// opportunities: structured log output, the Redis signal channel, the
// Postgres history table, and the dashboard push. Sinks never fail the
// pipeline; failures are logged and the remaining sinks still run.
package sink

import "errors"

// joinPublishErrors collapses per-sink failures into one error so the
// caller sees every sink that failed, not just the first.
func joinPublishErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
