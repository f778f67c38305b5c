package harvest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrascope/terrascope/internal/model"
	"github.com/terrascope/terrascope/internal/store"
)

// DefaultSeedThreshold is the row count below which the store is refilled.
const DefaultSeedThreshold = 1000

// SeedOptions controls Seed.
type SeedOptions struct {
	// Threshold skips seeding when the store already holds at least this many
	// rows. Zero uses DefaultSeedThreshold.
	Threshold int64
	// Force seeds regardless of the current count.
	Force bool
	// Reset deletes every stored property before inserting.
	Reset bool
}

// SeedResult reports what Seed did.
type SeedResult struct {
	Skipped  bool  `json:"skipped"`
	Existing int64 `json:"existing"`
	Deleted  int64 `json:"deleted"`
	Inserted int64 `json:"inserted"`
}

// Seed inserts features into s unless the store is already populated.
func Seed(ctx context.Context, s store.Store, features []model.Feature, opts SeedOptions) (*SeedResult, error) {
	log := zap.L().With(zap.String("component", "harvest.seed"))
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultSeedThreshold
	}

	existing, err := s.Count(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "harvest: count properties")
	}
	res := &SeedResult{Existing: existing}

	if !opts.Force && existing >= threshold {
		log.Info("store already populated, skipping seed",
			zap.Int64("existing", existing),
			zap.Int64("threshold", threshold),
		)
		res.Skipped = true
		return res, nil
	}

	if opts.Reset {
		if res.Deleted, err = s.DeleteAll(ctx); err != nil {
			return nil, eris.Wrap(err, "harvest: reset properties")
		}
	}

	if res.Inserted, err = s.InsertMany(ctx, features); err != nil {
		return nil, eris.Wrap(err, "harvest: insert seed properties")
	}

	log.Info("seed complete",
		zap.Int64("deleted", res.Deleted),
		zap.Int64("inserted", res.Inserted),
	)
	return res, nil
}
