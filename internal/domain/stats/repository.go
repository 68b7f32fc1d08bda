package stats

import (
	"context"
	"time"

	"github.com/gamilit/rewards-engine/internal/domain/ledger"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранения игровой статистики.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт запись статистики нового пользователя.
	// Возвращает shared.ErrAlreadyExists, если запись уже существует.
	Create(ctx context.Context, stats *UserStats) error

	// GetByUserID возвращает статистику пользователя.
	// Возвращает shared.ErrNotFound, если записи нет.
	GetByUserID(ctx context.Context, userID shared.UserID) (*UserStats, error)

	// Save сохраняет изменения с проверкой версии.
	// Возвращает shared.ErrConcurrentModification при конфликте версий;
	// при успехе инкрементирует Version сохранённой записи.
	Save(ctx context.Context, stats *UserStats) error

	// ─────────────────────────────────────────────────────────────────────────
	// Bulk Operations
	// ─────────────────────────────────────────────────────────────────────────

	// GetAll возвращает статистику всех пользователей с пагинацией.
	GetAll(ctx context.Context, opts ListOptions) ([]*UserStats, error)

	// GetByUserIDs возвращает статистику по списку пользователей.
	GetByUserIDs(ctx context.Context, userIDs []shared.UserID) ([]*UserStats, error)

	// Sample возвращает случайную выборку для симуляции изменений рангов.
	Sample(ctx context.Context, size int) ([]*UserStats, error)

	// Count возвращает общее количество записей.
	Count(ctx context.Context) (int, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Maintenance
	// ─────────────────────────────────────────────────────────────────────────

	// FindStaleDailyCounters находит пользователей, у которых суточный
	// счётчик монет не сбрасывался с начала текущего дня.
	FindStaleDailyCounters(ctx context.Context, now time.Time, limit int) ([]*UserStats, error)

	// Exists проверяет существование записи.
	Exists(ctx context.Context, userID shared.UserID) (bool, error)
}

// ListOptions содержит параметры для пагинации и сортировки.
type ListOptions struct {
	// Offset - смещение (для пагинации).
	Offset int

	// Limit - максимальное количество записей.
	Limit int

	// SortBy - поле для сортировки.
	SortBy string

	// SortDesc - сортировка по убыванию.
	SortDesc bool
}

// DefaultListOptions возвращает параметры по умолчанию.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset:   0,
		Limit:    50,
		SortBy:   "total_xp",
		SortDesc: true,
	}
}

// WithOffset устанавливает смещение.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit устанавливает лимит.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// WithSort устанавливает сортировку.
func (o ListOptions) WithSort(field string, desc bool) ListOptions {
	o.SortBy = field
	o.SortDesc = desc
	return o
}

// ══════════════════════════════════════════════════════════════════════════════
// ATOMIC STORE
// Баланс и журнал транзакций должны меняться вместе: либо сохраняется
// всё, либо ничего.
// ══════════════════════════════════════════════════════════════════════════════

// AtomicStore расширяет Repository атомарным сохранением статистики
// вместе с записями журнала монет в одной транзакции базы данных.
type AtomicStore interface {
	Repository

	// SaveWithLedger сохраняет статистику (с проверкой версии) и
	// добавляет записи журнала в рамках одной транзакции.
	// Возвращает shared.ErrConcurrentModification при конфликте версий.
	SaveWithLedger(ctx context.Context, stats *UserStats, entries []*ledger.Transaction) error
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INTERFACE
// Для кеширования часто запрашиваемых данных (обычно Redis).
// ══════════════════════════════════════════════════════════════════════════════

// Cache определяет операции кеширования статистики.
type Cache interface {
	// Get получает статистику из кеша.
	Get(ctx context.Context, userID shared.UserID) (*UserStats, error)

	// Set сохраняет статистику в кеш.
	Set(ctx context.Context, stats *UserStats, ttl time.Duration) error

	// Invalidate удаляет запись пользователя из кеша.
	Invalidate(ctx context.Context, userID shared.UserID) error

	// InvalidateAll очищает весь кеш статистики.
	InvalidateAll(ctx context.Context) error
}
