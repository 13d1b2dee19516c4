package unitofwork

import (
	"context"

	"euno-analytics-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	DataSourceRepository() contract.DataSourceRepository
	ConversationRepository() contract.ConversationRepository
	MessageRepository() contract.MessageRepository
}
