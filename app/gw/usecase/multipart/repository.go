package multipart

import "time"

// Upload is the catalog record of one multipart upload in flight.
type Upload struct {
	ID      string
	Bucket  string
	Key     string
	Created time.Time
}

// Part is the catalog record of one uploaded part.
type Part struct {
	Number   int
	Size     int64
	ETag     string
	Modified time.Time
}

// Repository provides access to the multipart upload catalog.
type Repository interface {
	BucketExists(bucketName string) (bool, error)
	AddUpload(uploadID, bucketName, objectKey, accessKey string) error
	FindUpload(uploadID string) (*Upload, error)
	// AddPart records an uploaded part, replacing any previous record
	// under the same part number.
	AddPart(uploadID string, number int, size int64, etag string) error
	// ListParts returns recorded parts with numbers at or after from,
	// ascending, up to limit entries.
	ListParts(uploadID string, from, limit int) ([]Part, error)
	// CompleteUpload replaces the upload and its part rows with the
	// object catalog row, all inside one transaction.
	CompleteUpload(uploadID string, size int64, etag string) error
	// AbortUpload removes the upload row and its part rows.
	AbortUpload(uploadID string) error
}
