// Package repository declares the storage contracts the service layer
// depends on. Implementations live in the sqlite and postgres subpackages.
//
// Lookups that match nothing return an error wrapping apperror.ErrNotFound;
// a duplicate email on CreateUser wraps apperror.ErrConflict. Anything else is
// a store failure.
package repository

import (
	"context"

	"github.com/sakif/courier/internal/model"
)

// UserRepository persists accounts.
type UserRepository interface {
	// CreateUser assigns user.ID and user.CreatedAt and inserts the row.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// DeleteUser removes the user and, through the foreign key, its profile.
	// Deleting a missing user is not an error.
	DeleteUser(ctx context.Context, id string) error
}

// UserInfoRepository persists public profiles, one per user.
type UserInfoRepository interface {
	CreateUserInfo(ctx context.Context, info *model.UserInfo) error
	GetUserInfoByID(ctx context.Context, id string) (*model.UserInfo, error)
}

// OrphanRepository tracks users left behind by a failed account creation.
type OrphanRepository interface {
	RecordOrphan(ctx context.Context, orphan *model.OrphanedUser) error
	ListOrphans(ctx context.Context, limit int) ([]model.OrphanedUser, error)
	DeleteOrphan(ctx context.Context, userID string) error
}

// Store is everything the account service needs from persistence.
type Store interface {
	UserRepository
	UserInfoRepository
	OrphanRepository
	Close() error
}
