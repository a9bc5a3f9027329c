package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/Dosada05/darts-tournament-system/services"
)

// ResultsArchive keeps a JSON snapshot of every finished tournament in the
// object store, one object per tournament under
// <prefix>/<club id>/<tournament id>.json.
type ResultsArchive struct {
	store  ObjectStore
	prefix string
	logger *slog.Logger
}

func NewResultsArchive(store ObjectStore, prefix string, logger *slog.Logger) *ResultsArchive {
	if prefix == "" {
		prefix = "results"
	}
	return &ResultsArchive{store: store, prefix: prefix, logger: logger}
}

func (a *ResultsArchive) Key(clubID, tournamentID string) string {
	return path.Join(a.prefix, clubID, tournamentID+".json")
}

func (a *ResultsArchive) ArchiveResults(ctx context.Context, results services.TournamentResults) error {
	if results.Tournament == nil {
		return fmt.Errorf("archive results: tournament is missing")
	}
	body, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode results of tournament %s: %w", results.Tournament.ID, err)
	}
	key := a.Key(results.Tournament.ClubID, results.Tournament.ID)
	stored, err := a.store.Put(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "tournament results archived",
		slog.String("tournament_id", results.Tournament.ID),
		slog.String("key", stored.Key),
		slog.String("location", stored.Location))
	return nil
}
