package user

import (
	"errors"
	"strconv"
)

var (
	// ErrNotExist is used when there is no matched user with the search condition.
	ErrNotExist = errors.New("no users match with the given condition")
)

// User is an entity of user information. Each user owns one pair of
// api keys which s3 requests are signed with.
type User struct {
	ID     ID
	Name   Name
	Access Key
	Secret Key
}

// ID is the ID of user.
type ID int64

func (i ID) String() string {
	return strconv.FormatInt(int64(i), 10)
}

// Name is the name of user.
type Name string

func (n Name) String() string {
	return string(n)
}

// Key is the type of access or secret key.
type Key string

func (k Key) String() string {
	return string(k)
}

// Repository provides to access user database.
type Repository interface {
	FindByAccessKey(access Key) (*User, error)
	Save(*User) error
}
