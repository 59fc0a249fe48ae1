package mysql

import (
	"database/sql"

	"github.com/gitter-badger/pithos/app/gw/domain/model/user"
)

type userRepository struct {
	s *Store
}

// NewUserRepository returns a new instance of a mysql user repository.
func NewUserRepository(s *Store) user.Repository {
	return &userRepository{
		s: s,
	}
}

func (r *userRepository) FindByAccessKey(access user.Key) (*user.User, error) {
	q := `
		SELECT user_id, user_name, user_access_key, user_secret_key
		FROM user
		WHERE user_access_key = ?
	`

	u := &user.User{}
	err := r.s.QueryRow(q, access.String()).Scan(&u.ID, &u.Name, &u.Access, &u.Secret)
	if err == sql.ErrNoRows {
		return nil, user.ErrNotExist
	} else if err != nil {
		return nil, err
	}

	return u, nil
}

func (r *userRepository) Save(u *user.User) error {
	if u.ID == 0 {
		return r.create(u)
	}
	return r.update(u)
}

func (r *userRepository) create(u *user.User) error {
	q := `
		INSERT INTO user (user_name, user_access_key, user_secret_key)
		VALUES (?, ?, ?)
	`

	result, err := r.s.Execute(q, u.Name.String(), u.Access.String(), u.Secret.String())
	if err != nil {
		return classify(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = user.ID(id)

	return nil
}

func (r *userRepository) update(u *user.User) error {
	q := `
		UPDATE user
		SET user_name = ?, user_secret_key = ?
		WHERE user_id = ?
	`

	_, err := r.s.Execute(q, u.Name.String(), u.Secret.String(), int64(u.ID))
	return err
}
