package pg

import (
	"context"

	"github.com/pkg/errors"

	"trend_bot/internal/models"
)

// GetAllWatchedPairs возвращает все отслеживаемые пары всех пользователей.
// Порядок стабильный: по пользователю, потом по символу и таймфрейму —
// сканер обходит пары юзера в фиксированном порядке.
func (s *Store) GetAllWatchedPairs(ctx context.Context) (pairs []models.WatchedPair, err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.GetAllWatchedPairs")
		}
	}()

	rows, err := s.db.Conn().Query(ctx,
		`SELECT user_id, symbol, timeframe
		   FROM watched_pairs
		  ORDER BY user_id, symbol, timeframe`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.WatchedPair
		if err = rows.Scan(&p.UserID, &p.Symbol, &p.Timeframe); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// AddWatchedPair in db
func (s *Store) AddWatchedPair(ctx context.Context, pair models.WatchedPair) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.AddWatchedPair")
		}
	}()

	_, err = s.db.Conn().Exec(ctx,
		`INSERT INTO watched_pairs (user_id, symbol, timeframe)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		pair.UserID, pair.Symbol, pair.Timeframe)
	return err
}

// RemoveWatchedPair in db
func (s *Store) RemoveWatchedPair(ctx context.Context, pair models.WatchedPair) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.RemoveWatchedPair")
		}
	}()

	_, err = s.db.Conn().Exec(ctx,
		`DELETE FROM watched_pairs
		  WHERE user_id = $1 AND symbol = $2 AND timeframe = $3`,
		pair.UserID, pair.Symbol, pair.Timeframe)
	return err
}
