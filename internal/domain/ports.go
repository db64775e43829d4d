package domain

import "context"

// KeyValueStore — долговременное key-value хранилище, привязанное к устройству/установке.
type KeyValueStore interface {
	// Get возвращает значение или ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set перезаписывает значение по ключу.
	Set(ctx context.Context, key, value string) error
}

// Catalog — read-only доступ к каталогу товаров.
type Catalog interface {
	ListProducts(ctx context.Context, limit, skip int) (ProductsPage, error)
	SearchProducts(ctx context.Context, query string, limit, skip int) (ProductsPage, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
}
