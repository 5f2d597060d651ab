package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"trend_bot/internal/models"
)

// AddOpenPosition записывает результат успешного ордера.
func (s *Store) AddOpenPosition(ctx context.Context, pos models.OpenPosition) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.AddOpenPosition")
		}
	}()

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO open_positions
			        (user_id, exchange_name, symbol, side, entry_price, quantity, tp_price, sl_price, order_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			pos.UserID, pos.ExchangeName, pos.Symbol, string(pos.Side),
			pos.EntryPrice, pos.Quantity, pos.TPPrice, pos.SLPrice, pos.OrderID)
		return err
	})
}

// GetOpenPositions: userID = 0 — позиции всех пользователей.
func (s *Store) GetOpenPositions(ctx context.Context, userID int64) (positions []models.OpenPosition, err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.GetOpenPositions")
		}
	}()

	query := `SELECT id, user_id, exchange_name, symbol, side, entry_price, quantity, tp_price, sl_price, order_id
	            FROM open_positions`
	args := []any{}
	if userID != 0 {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.OpenPosition
		var side string
		if err = rows.Scan(&p.ID, &p.UserID, &p.ExchangeName, &p.Symbol, &side,
			&p.EntryPrice, &p.Quantity, &p.TPPrice, &p.SLPrice, &p.OrderID); err != nil {
			return nil, err
		}
		p.Side = models.Signal(side)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// RemoveOpenPosition in db
func (s *Store) RemoveOpenPosition(ctx context.Context, id int64) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.RemoveOpenPosition")
		}
	}()

	_, err = s.db.Conn().Exec(ctx, `DELETE FROM open_positions WHERE id = $1`, id)
	return err
}
