package journal

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/oscar1457/Industrial-Sentinel/internal/ports"
)

// commitEvery bounds how many delivered records can be replayed twice after
// a crash in the middle of Replay.
const commitEvery = 256

// ReplayResult summarizes one Replay call.
type ReplayResult struct {
	Delivered int
	From      EntryID
	LastID    EntryID
}

// Replay delivers every uncommitted record to dst in order, commits as it
// goes and compacts the journal when everything was delivered. It stops at
// the first sink error; records from that one on stay uncommitted.
func Replay(ctx context.Context, j *Journal, dst ports.PersistenceSink, log *zap.Logger) (ReplayResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	stats := j.Stats()
	res := ReplayResult{From: stats.OldestUncommitted}
	if stats.LatestAppended < stats.OldestUncommitted {
		return res, nil
	}

	var pending int
	err := j.Iterate(stats.OldestUncommitted, func(id EntryID, rec Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := deliver(ctx, dst, rec); err != nil {
			return fmt.Errorf("deliver entry %d to %s: %w", id, dst.Name(), err)
		}
		res.Delivered++
		res.LastID = id
		pending++
		if pending >= commitEvery {
			pending = 0
			return j.Commit(id)
		}
		return nil
	})

	if res.LastID > 0 {
		if cerr := j.Commit(res.LastID); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	if err != nil {
		log.Error("journal_replay_stopped", zap.Error(err), zap.Int("delivered", res.Delivered))
		return res, err
	}

	if err := j.TruncateCommitted(); err != nil {
		return res, err
	}
	log.Info("journal_replay_complete",
		zap.Int("delivered", res.Delivered),
		zap.Uint64("from_id", uint64(res.From)),
		zap.String("sink", dst.Name()))
	return res, nil
}

func deliver(ctx context.Context, dst ports.PersistenceSink, rec Record) error {
	switch rec.Kind {
	case KindTelemetry:
		if rec.Frame == nil {
			return fmt.Errorf("%w: telemetry record without frame", ErrCorrupt)
		}
		return dst.SaveTelemetry(ctx, *rec.Frame)
	case KindAlert:
		if rec.Alert == nil {
			return fmt.Errorf("%w: alert record without alert", ErrCorrupt)
		}
		return dst.SaveAlert(ctx, *rec.Alert)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrCorrupt, rec.Kind)
	}
}
