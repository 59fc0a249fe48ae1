package mysql

import (
	"database/sql"

	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository"
	"github.com/gitter-badger/pithos/app/gw/usecase/auth"
)

type authRepository struct {
	s *Store
}

// NewAuthRepository returns a new instance of a mysql auth repository.
func NewAuthRepository(s *Store) auth.Repository {
	return &authRepository{
		s: s,
	}
}

func (r *authRepository) FindSecretKey(accessKey string) (string, error) {
	q := `
		SELECT user_secret_key
		FROM user
		WHERE user_access_key = ?
	`

	var secretKey string
	err := r.s.QueryRow(q, accessKey).Scan(&secretKey)
	if err == sql.ErrNoRows {
		return "", repository.ErrNotExist
	} else if err != nil {
		return "", err
	}

	return secretKey, nil
}
