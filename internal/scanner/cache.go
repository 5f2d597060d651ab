package scanner

import (
	"sync"

	"trend_bot/internal/models"
)

// Key — пара в кэше дедупликации: пользователь + символ + таймфрейм.
type Key struct {
	UserID    int64
	Symbol    string
	Timeframe string
}

// SignalCache помнит последнее отправленное направление по каждой паре
// и гасит повторные алерты, пока направление не сменилось. HOLD в кэш
// не попадает никогда. Живёт столько же, сколько процесс, если его
// явно не сбросить.
type SignalCache struct {
	mu   sync.Mutex
	last map[Key]models.Signal
}

func NewSignalCache() *SignalCache {
	return &SignalCache{
		last: make(map[Key]models.Signal),
	}
}

// ShouldEmit решает, надо ли отправлять сигнал, и при отправке сразу
// обновляет кэш. Незнакомый ключ считается сменой направления.
func (c *SignalCache) ShouldEmit(k Key, sig models.Signal) bool {
	if sig == models.SignalHold {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last[k] == sig {
		return false
	}
	c.last[k] = sig
	return true
}

// Last возвращает закэшированное направление по ключу.
func (c *SignalCache) Last(k Key) (models.Signal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sig, ok := c.last[k]
	return sig, ok
}

// Reset очищает кэш целиком.
func (c *SignalCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = make(map[Key]models.Signal)
}
