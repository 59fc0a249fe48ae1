package object

import "time"

// Info is the catalog record of one object.
type Info struct {
	Key      string
	Size     int64
	ETag     string
	Modified time.Time
}

// Repository provides access to the object catalog.
type Repository interface {
	BucketExists(bucketName string) (bool, error)
	// PutObject inserts the catalog row of an object, replacing any
	// previous row under the same key.
	PutObject(bucketName, objectKey string, size int64, etag string) error
	FindObject(bucketName, objectKey string) (*Info, error)
	RemoveObject(bucketName, objectKey string) error
}
