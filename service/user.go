package service

import (
	"errors"

	"go.notebook.dev/notebook/core"
	"go.notebook.dev/notebook/db"
	"go.notebook.dev/notebook/db/models"
	"gorm.io/gorm"
)

var _ core.UserService = (*UserServiceDefault)(nil)

var ErrInvalidSession = errors.New("invalid session token")

func init() {
	core.RegisterService(core.ServiceInfo{
		ID: core.USER_SERVICE,
		Factory: func() (core.Service, []core.ContextBuilderOption, error) {
			return NewUserService()
		},
	})
}

type UserServiceDefault struct {
	ctx core.Context
	db  *gorm.DB
}

func NewUserService() (*UserServiceDefault, []core.ContextBuilderOption, error) {
	user := &UserServiceDefault{}

	opts := core.ContextOptions(
		core.ContextWithStartupFunc(func(ctx core.Context) error {
			user.ctx = ctx
			user.db = ctx.DB()
			return nil
		}),
	)

	return user, opts, nil
}

func (u UserServiceDefault) UserBySessionToken(token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	var user models.User
	err := db.RetryOnLock(u.db, func(db *gorm.DB) *gorm.DB {
		return db.Where(&models.User{SessionToken: token}).First(&user)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	return &user, nil
}
