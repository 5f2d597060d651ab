package pg

import (
	"trend_bot/pkg/db"
)

// Store — постоянное хранилище бота: вотчлисты, торговые настройки,
// биржевые ключи и открытые позиции.
type Store struct {
	db *db.PgTxManager
}

// NewStore instance
func NewStore(manager *db.PgTxManager) *Store {
	return &Store{db: manager}
}
