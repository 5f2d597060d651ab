package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"trend_bot/internal/models"
)

// GetExchangeAPIs возвращает все ключи пользователя, включая выключенные —
// фильтрация по is_enabled остаётся за вызывающим.
func (s *Store) GetExchangeAPIs(ctx context.Context, userID int64) (apis []models.ExchangeAPI, err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.GetExchangeAPIs")
		}
	}()

	rows, err := s.db.Conn().Query(ctx,
		`SELECT user_id, exchange_name, api_key, api_secret, COALESCE(passphrase, ''), is_enabled
		   FROM exchange_apis
		  WHERE user_id = $1
		  ORDER BY exchange_name`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a models.ExchangeAPI
		if err = rows.Scan(&a.UserID, &a.ExchangeName, &a.APIKey, &a.APISecret, &a.Passphrase, &a.IsEnabled); err != nil {
			return nil, err
		}
		apis = append(apis, a)
	}
	return apis, rows.Err()
}

// SaveExchangeAPI in db
func (s *Store) SaveExchangeAPI(ctx context.Context, api models.ExchangeAPI) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.SaveExchangeAPI")
		}
	}()

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO exchange_apis (user_id, exchange_name, api_key, api_secret, passphrase, is_enabled)
			 VALUES ($1, $2, $3, $4, $5, TRUE)
			 ON CONFLICT (user_id, exchange_name) DO UPDATE
			    SET api_key = EXCLUDED.api_key,
			        api_secret = EXCLUDED.api_secret,
			        passphrase = EXCLUDED.passphrase,
			        is_enabled = TRUE`,
			api.UserID, api.ExchangeName, api.APIKey, api.APISecret, api.Passphrase)
		return err
	})
}

// ToggleExchangeAPI in db
func (s *Store) ToggleExchangeAPI(ctx context.Context, userID int64, exchangeName string, enabled bool) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.ToggleExchangeAPI")
		}
	}()

	_, err = s.db.Conn().Exec(ctx,
		`UPDATE exchange_apis SET is_enabled = $3
		  WHERE user_id = $1 AND exchange_name = $2`,
		userID, exchangeName, enabled)
	return err
}
