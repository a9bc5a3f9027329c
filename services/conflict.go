package services

import (
	"context"
	"errors"

	"github.com/Dosada05/darts-tournament-system/repositories"
)

var errDryRun = errors.New("dry run")

// replayConflict runs check against fresh state in a transaction that is
// always rolled back. It returns check's error when the operation would now
// fail for a domain reason, and conflict otherwise. Writes are never retried.
func replayConflict(ctx context.Context, store repositories.Transactor, conflict error, check func(ctx context.Context, repos repositories.Repos) error) error {
	err := store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repos) error {
		if err := check(ctx, repos); err != nil {
			return err
		}
		return errDryRun
	})
	if err == nil || errors.Is(err, errDryRun) || errors.Is(err, conflict) {
		return conflict
	}
	return err
}
