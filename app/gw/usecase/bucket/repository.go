package bucket

import "time"

// Info is the catalog record of one bucket.
type Info struct {
	Name    string
	Created time.Time
}

// Entry is the catalog record of one object in a bucket listing.
type Entry struct {
	Key      string
	Size     int64
	ETag     string
	Modified time.Time
}

// Repository provides access to the bucket catalog.
type Repository interface {
	MakeBucket(bucketName, accessKey, region string) error
	RemoveBucket(bucketName, accessKey string) error
	FindBucket(bucketName string) (*Info, error)
	ListBuckets(accessKey string) ([]Info, error)
	CountObjects(bucketName string) (int64, error)
	// ListObjects returns the next run of object entries with keys at
	// or after from, ascending, up to limit entries.
	ListObjects(bucketName, from string, limit int) ([]Entry, error)
}
