package pg

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"trend_bot/internal/models"
)

// GetTradingConfig возвращает торговые настройки пользователя.
// Если настроек нет — (nil, nil): сканер просто пропускает юзера.
func (s *Store) GetTradingConfig(ctx context.Context, userID int64) (cfg *models.TradingConfig, err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.GetTradingConfig")
		}
	}()

	var data []byte
	err = s.db.Conn().QueryRow(ctx,
		`SELECT settings FROM user_settings WHERE user_id = $1`,
		userID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var t models.TradingConfig
	if err = sonic.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertTradingConfig in db
func (s *Store) UpsertTradingConfig(ctx context.Context, userID int64, cfg *models.TradingConfig) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.UpsertTradingConfig")
		}
	}()

	var data []byte
	data, err = sonic.Marshal(cfg)
	if err != nil {
		return err
	}

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO user_settings (user_id, settings)
			 VALUES ($1, $2)
			 ON CONFLICT (user_id) DO UPDATE SET settings = EXCLUDED.settings`,
			userID, data)
		return err
	})
}
