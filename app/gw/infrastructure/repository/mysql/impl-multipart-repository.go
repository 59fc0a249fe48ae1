package mysql

import (
	"database/sql"

	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository"
	"github.com/gitter-badger/pithos/app/gw/usecase/multipart"
)

type multipartRepository struct {
	s *Store
}

// NewMultipartRepository returns a new instance of a mysql multipart repository.
func NewMultipartRepository(s *Store) multipart.Repository {
	return &multipartRepository{
		s: s,
	}
}

func (r *multipartRepository) BucketExists(bucketName string) (bool, error) {
	_, err := bucketID(r.s, bucketName)
	if err == repository.ErrNotExist {
		return false, nil
	} else if err != nil {
		return false, err
	}

	return true, nil
}

func (r *multipartRepository) AddUpload(uploadID, bucketName, objectKey, accessKey string) error {
	q := `
		INSERT INTO upload (up_id, up_bucket, up_key, up_user, up_created)
		SELECT ?, b.bk_id, ?, u.user_id, UTC_TIMESTAMP()
		FROM bucket b, user u
		WHERE b.bk_name = ? AND u.user_access_key = ?
	`

	result, err := r.s.Execute(q, uploadID, objectKey, bucketName, accessKey)
	if err != nil {
		return classify(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// No bucket or user row matched.
		return repository.ErrNotExist
	}

	return nil
}

func (r *multipartRepository) FindUpload(uploadID string) (*multipart.Upload, error) {
	q := `
		SELECT u.up_id, b.bk_name, u.up_key, u.up_created
		FROM upload u
		JOIN bucket b ON u.up_bucket = b.bk_id
		WHERE u.up_id = ?
	`

	up := &multipart.Upload{}
	err := r.s.QueryRow(q, uploadID).Scan(&up.ID, &up.Bucket, &up.Key, &up.Created)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotExist
	} else if err != nil {
		return nil, err
	}

	return up, nil
}

func (r *multipartRepository) AddPart(uploadID string, number int, size int64, etag string) error {
	q := `
		INSERT INTO upload_part (pt_upload, pt_number, pt_size, pt_etag, pt_modified)
		VALUES (?, ?, ?, ?, UTC_TIMESTAMP())
		ON DUPLICATE KEY UPDATE
			pt_size = VALUES(pt_size),
			pt_etag = VALUES(pt_etag),
			pt_modified = VALUES(pt_modified)
	`

	_, err := r.s.Execute(q, uploadID, number, size, etag)
	return classify(err)
}

func (r *multipartRepository) ListParts(uploadID string, from, limit int) ([]multipart.Part, error) {
	q := `
		SELECT pt_number, pt_size, pt_etag, pt_modified
		FROM upload_part
		WHERE pt_upload = ? AND pt_number >= ?
		ORDER BY pt_number
		LIMIT ?
	`

	rows, err := r.s.Query(q, uploadID, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []multipart.Part
	for rows.Next() {
		var p multipart.Part
		if err := rows.Scan(&p.Number, &p.Size, &p.ETag, &p.Modified); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}

	return parts, rows.Err()
}

func (r *multipartRepository) CompleteUpload(uploadID string, size int64, etag string) error {
	tx, err := r.s.Begin()
	if err != nil {
		return err
	}

	// The upload row names the destination; deriving it here keeps
	// the whole swap on one snapshot.
	insert := `
		INSERT INTO object (ob_bucket, ob_key, ob_size, ob_etag, ob_modified)
		SELECT up_bucket, up_key, ?, ?, UTC_TIMESTAMP()
		FROM upload
		WHERE up_id = ?
		ON DUPLICATE KEY UPDATE
			ob_size = VALUES(ob_size),
			ob_etag = VALUES(ob_etag),
			ob_modified = VALUES(ob_modified)
	`
	if _, err := tx.Exec(insert, size, etag, uploadID); err != nil {
		tx.Rollback()
		return classify(err)
	}

	deleteParts := `
		DELETE FROM upload_part
		WHERE pt_upload = ?
	`
	if _, err := tx.Exec(deleteParts, uploadID); err != nil {
		tx.Rollback()
		return err
	}

	deleteUpload := `
		DELETE FROM upload
		WHERE up_id = ?
	`
	result, err := tx.Exec(deleteUpload, uploadID)
	if err != nil {
		tx.Rollback()
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}
	if affected == 0 {
		tx.Rollback()
		return repository.ErrNotExist
	}

	return tx.Commit()
}

func (r *multipartRepository) AbortUpload(uploadID string) error {
	tx, err := r.s.Begin()
	if err != nil {
		return err
	}

	deleteParts := `
		DELETE FROM upload_part
		WHERE pt_upload = ?
	`
	if _, err := tx.Exec(deleteParts, uploadID); err != nil {
		tx.Rollback()
		return err
	}

	deleteUpload := `
		DELETE FROM upload
		WHERE up_id = ?
	`
	result, err := tx.Exec(deleteUpload, uploadID)
	if err != nil {
		tx.Rollback()
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}
	if affected == 0 {
		tx.Rollback()
		return repository.ErrNotExist
	}

	return tx.Commit()
}
