package domain

import "errors"

var (
	// ErrKeyNotFound возвращается хранилищем, если значения по ключу нет.
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyRequired — пустой ключ хранилища.
	ErrKeyRequired = errors.New("storage key is required")
	// ErrStoreClosed — обращение к закрытому хранилищу.
	ErrStoreClosed = errors.New("storage is closed")

	// ErrCatalogStatus — каталог ответил неуспешным HTTP-статусом.
	ErrCatalogStatus = errors.New("catalog returned non-success status")
	// ErrCatalogTimeout — запрос к каталогу не уложился в таймаут.
	ErrCatalogTimeout = errors.New("catalog request timed out")
	// ErrCatalogUnavailable — каталог недоступен по сети (или открыт circuit breaker).
	ErrCatalogUnavailable = errors.New("catalog is unreachable")
	// ErrProductIDInvalid — идентификатор товара должен быть положительным.
	ErrProductIDInvalid = errors.New("product id must be positive")
)

// IsKeyNotFound проверяет, является ли ошибка отсутствием ключа.
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
