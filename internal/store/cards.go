package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetCard returns the card bound to userID. ok is false when the user has
// not stored one yet.
func (d *DB) GetCard(ctx context.Context, userID int64) (card string, ok bool, err error) {
	err = d.QueryRowContext(ctx,
		"SELECT card_number FROM user_cards WHERE user_id = ?", userID,
	).Scan(&card)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("%w: get card for %d: %v", ErrUnavailable, userID, err)
	}
	return card, card != "", nil
}

// SetCard stores card for userID, replacing any previous value.
func (d *DB) SetCard(ctx context.Context, userID int64, card string) error {
	_, err := d.ExecContext(ctx, `
		INSERT INTO user_cards (user_id, card_number)
		VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			card_number = excluded.card_number,
			updated_at  = CURRENT_TIMESTAMP`,
		userID, card,
	)
	if err != nil {
		return fmt.Errorf("%w: set card for %d: %v", ErrUnavailable, userID, err)
	}
	return nil
}
