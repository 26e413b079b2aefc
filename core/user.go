package core

import "go.notebook.dev/notebook/db/models"

const USER_SERVICE = "user"

type UserService interface {
	// UserBySessionToken resolves the identity cookie value to a user.
	UserBySessionToken(token string) (*models.User, error)

	Service
}
