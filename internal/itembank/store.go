package itembank

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmogame/backend/internal/database"
	"github.com/mmogame/backend/internal/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InsertItem(ctx context.Context, item *models.Item) error {
	if !models.ValidBankKinds[item.BankKind] {
		return fmt.Errorf("insert item: invalid bank kind %q", item.BankKind)
	}
	choices, err := json.Marshal(item.Choices)
	if err != nil {
		return fmt.Errorf("marshal choices: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO items (bank_kind, category, prompt, choices, answer, time_created)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		string(item.BankKind), item.Category, item.Prompt, string(choices), item.Answer, time.Now().Unix(),
	).Scan(&item.ID)
	return models.NewStorageError("insert item", err)
}

// ItemIDs lists candidate ids for a bank kind. An empty category selects all.
func (s *Store) ItemIDs(ctx context.Context, kind models.BankKind, category string) ([]int64, error) {
	query := `SELECT id FROM items WHERE bank_kind = $1`
	args := []any{string(kind)}
	if category != "" {
		query += ` AND category = $2`
		args = append(args, category)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.NewStorageError("item ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, models.NewStorageError("scan item id", err)
		}
		ids = append(ids, id)
	}
	return ids, models.NewStorageError("item ids", rows.Err())
}

// Items loads the given ids in id order. Unknown ids are skipped.
func (s *Store) Items(ctx context.Context, ids []int64) ([]models.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	inClause, args := database.InClause(ids, 1)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bank_kind, category, prompt, choices, answer FROM items
		 WHERE id IN (`+inClause+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, models.NewStorageError("items", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var it models.Item
		var choices string
		if err := rows.Scan(&it.ID, &it.BankKind, &it.Category, &it.Prompt, &choices, &it.Answer); err != nil {
			return nil, models.NewStorageError("scan item", err)
		}
		if err := json.Unmarshal([]byte(choices), &it.Choices); err != nil {
			return nil, fmt.Errorf("item %d choices: %w", it.ID, err)
		}
		items = append(items, it)
	}
	return items, models.NewStorageError("items", rows.Err())
}

func (s *Store) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	items, err := s.Items(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, models.ErrNotFound
	}
	return &items[0], nil
}
