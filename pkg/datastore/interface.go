package datastore

import (
	"context"

	"github.com/mlindgren/callbridge/pkg/model"
)

type DataProviderFactory interface {
	NonTx() DataStore
	Tx(context.Context) (DataStoreTx, error)
}

type DataStoreTx interface {
	DataStore
	Rollback() error
	Commit() error
}

// DataStore defines the persistence interface for CallBridge credentials.
// The default implementation is SQLite; in-memory or PostgreSQL backends
// can be substituted for testing or scale.
type DataStore interface {
	UserReadProvider
	UserWriteProvider

	Close() error
}

// Compile-time check: *ProviderFactory implements DataProviderFactory.
var _ DataProviderFactory = (*ProviderFactory)(nil)

type UserReadProvider interface {
	GetUserByUsername(username string) (*model.User, error)
	GetUserByID(id int64) (*model.User, error)
	ListUsers() ([]model.User, error)
	CountUsers() (int64, error)
}

type UserWriteProvider interface {
	CreateUser(username, passwordHash string) (*model.User, error)
}
