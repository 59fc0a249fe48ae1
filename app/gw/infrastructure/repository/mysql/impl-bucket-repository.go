package mysql

import (
	"database/sql"

	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository"
	"github.com/gitter-badger/pithos/app/gw/usecase/bucket"
	"github.com/go-sql-driver/mysql"
)

type bucketRepository struct {
	s *Store
}

// NewBucketRepository returns a new instance of a mysql bucket repository.
func NewBucketRepository(s *Store) bucket.Repository {
	return &bucketRepository{
		s: s,
	}
}

func (r *bucketRepository) MakeBucket(bucketName, accessKey, region string) error {
	q := `
		INSERT INTO bucket (bk_name, bk_user, bk_region, bk_created)
		SELECT ?, u.user_id, ?, UTC_TIMESTAMP()
		FROM user u
		WHERE u.user_access_key = ?
	`

	result, err := r.s.Execute(q, bucketName, region, accessKey)
	if err != nil {
		return classify(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// No user row matched the access key.
		return repository.ErrNotExist
	}

	return nil
}

func (r *bucketRepository) RemoveBucket(bucketName, accessKey string) error {
	q := `
		DELETE b
		FROM bucket b
		JOIN user u ON b.bk_user = u.user_id
		WHERE b.bk_name = ? AND u.user_access_key = ?
	`

	result, err := r.s.Execute(q, bucketName, accessKey)
	if err != nil {
		return classify(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotExist
	}

	return nil
}

func (r *bucketRepository) FindBucket(bucketName string) (*bucket.Info, error) {
	q := `
		SELECT bk_name, bk_created
		FROM bucket
		WHERE bk_name = ?
	`

	info := &bucket.Info{}
	err := r.s.QueryRow(q, bucketName).Scan(&info.Name, &info.Created)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotExist
	} else if err != nil {
		return nil, err
	}

	return info, nil
}

func (r *bucketRepository) ListBuckets(accessKey string) ([]bucket.Info, error) {
	q := `
		SELECT b.bk_name, b.bk_created
		FROM bucket b
		JOIN user u ON b.bk_user = u.user_id
		WHERE u.user_access_key = ?
		ORDER BY b.bk_name
	`

	rows, err := r.s.Query(q, accessKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []bucket.Info
	for rows.Next() {
		var info bucket.Info
		if err := rows.Scan(&info.Name, &info.Created); err != nil {
			return nil, err
		}
		buckets = append(buckets, info)
	}

	return buckets, rows.Err()
}

func (r *bucketRepository) CountObjects(bucketName string) (int64, error) {
	id, err := bucketID(r.s, bucketName)
	if err != nil {
		return 0, err
	}

	q := `
		SELECT COUNT(*)
		FROM object
		WHERE ob_bucket = ?
	`

	var count int64
	if err := r.s.QueryRow(q, id).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (r *bucketRepository) ListObjects(bucketName, from string, limit int) ([]bucket.Entry, error) {
	q := `
		SELECT o.ob_key, o.ob_size, o.ob_etag, o.ob_modified
		FROM object o
		JOIN bucket b ON o.ob_bucket = b.bk_id
		WHERE b.bk_name = ? AND o.ob_key >= ?
		ORDER BY o.ob_key
		LIMIT ?
	`

	rows, err := r.s.Query(q, bucketName, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []bucket.Entry
	for rows.Next() {
		var e bucket.Entry
		if err := rows.Scan(&e.Key, &e.Size, &e.ETag, &e.Modified); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// bucketID resolves a bucket name to its row id.
func bucketID(s *Store, bucketName string) (int64, error) {
	q := `
		SELECT bk_id
		FROM bucket
		WHERE bk_name = ?
	`

	var id int64
	err := s.QueryRow(q, bucketName).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, repository.ErrNotExist
	} else if err != nil {
		return 0, err
	}

	return id, nil
}

// classify maps well known mysql error numbers onto the repository
// error values.
func classify(err error) error {
	if err == nil {
		return nil
	}

	mysqlError, ok := err.(*mysql.MySQLError)
	if ok == false {
		return err
	}

	switch mysqlError.Number {
	case 1062:
		return repository.ErrDuplicateEntry
	case 1451:
		return repository.ErrNotEmpty
	case 1452:
		return repository.ErrNotExist
	default:
		return err
	}
}
