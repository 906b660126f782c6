package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/campavatars/avatar"
)

// LoaderFactory returns a fresh loader; each task behaves like one page load
type LoaderFactory func() *avatar.Loader

// WarmSummary counts the outcomes of one warm-up task
type WarmSummary struct {
	Armed  int
	Cached int
	Found  int
	Missed int
}

// Warm resolves identities with a fresh loader and waits for every outcome
func Warm(ctx context.Context, newLoader LoaderFactory, identities []string) (WarmSummary, error) {
	cards := make([]avatar.Card, 0, len(identities))
	for _, id := range identities {
		cards = append(cards, avatar.Card{Identity: id})
	}

	l := newLoader()
	sum := WarmSummary{Armed: l.Arm(ctx, cards)}
	if err := l.Wait(ctx); err != nil {
		return sum, err
	}

	for _, res := range l.Results() {
		switch {
		case res.Cached:
			sum.Cached++
		case res.Found:
			sum.Found++
		default:
			sum.Missed++
		}
	}
	return sum, nil
}

// HandleWarmAvatars processes TaskWarmAvatars
func HandleWarmAvatars(newLoader LoaderFactory, log zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p WarmAvatarsPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			log.Error().Err(err).Msg("bad warm payload")
			return fmt.Errorf("bad payload: %v: %w", err, asynq.SkipRetry)
		}

		start := time.Now()
		sum, err := Warm(ctx, newLoader, p.Identities)
		if err != nil {
			log.Warn().Err(err).Int("armed", sum.Armed).Dur("duration", time.Since(start)).Msg("warm avatars interrupted")
			return err
		}

		log.Info().
			Int("armed", sum.Armed).
			Int("cached", sum.Cached).
			Int("found", sum.Found).
			Int("missed", sum.Missed).
			Dur("duration", time.Since(start)).
			Msg("warm avatars done")
		return nil
	}
}
