package ledger

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/mmogame/backend/internal/models"
)

// ExternalKey returns the value stored in players.external_id. Device ids are
// fingerprinted so the raw identifier never reaches the database.
func ExternalKey(kind models.PlayerKind, externalID string) string {
	if kind != models.PlayerDevice {
		return externalID
	}
	sum := blake2b.Sum256([]byte(externalID))
	return hex.EncodeToString(sum[:])
}

// GetOrCreatePlayer returns the player identified by (kind, externalID),
// creating it on first contact.
func (s *Store) GetOrCreatePlayer(ctx context.Context, kind models.PlayerKind, externalID string) (*models.Player, error) {
	key := ExternalKey(kind, externalID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (kind, external_id, time_created) VALUES ($1, $2, $3)
		 ON CONFLICT (kind, external_id) DO NOTHING`,
		string(kind), key, time.Now().Unix(),
	)
	if err != nil {
		return nil, models.NewStorageError("create player", err)
	}

	var p models.Player
	err = s.db.QueryRowContext(ctx,
		`SELECT id, kind, external_id, time_created FROM players WHERE kind = $1 AND external_id = $2`,
		string(kind), key,
	).Scan(&p.ID, &p.Kind, &p.ExternalID, &p.TimeCreated)
	if err != nil {
		return nil, models.NewStorageError("get player", err)
	}
	return &p, nil
}

func (s *Store) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	var p models.Player
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, external_id, time_created FROM players WHERE id = $1`, id,
	).Scan(&p.ID, &p.Kind, &p.ExternalID, &p.TimeCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, models.NewStorageError("get player", err)
	}
	return &p, nil
}
