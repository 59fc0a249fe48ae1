package s3

import "encoding/xml"

// See https://docs.aws.amazon.com/AmazonS3/latest/API/Welcome.html

// Xmlns is the namespace of the s3 response documents.
const Xmlns = "http://s3.amazonaws.com/doc/2006-03-01/"

// TimeFormat is the timestamp layout of the s3 response documents.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Owner describes the owner of a bucket or an object.
type Owner struct {
	ID          string
	DisplayName string
}

// BucketEntry is one bucket of the service listing.
type BucketEntry struct {
	Name         string
	CreationDate string
}

// ListAllMyBucketsResult is the response body of the service GET
// operation.
type ListAllMyBucketsResult struct {
	XMLName xml.Name `xml:"ListAllMyBucketsResult"`
	Xmlns   string   `xml:"xmlns,attr"`
	Owner   Owner
	Buckets struct {
		Bucket []BucketEntry
	}
}

// ObjectEntry is one object of a bucket listing.
type ObjectEntry struct {
	Key          string
	LastModified string
	ETag         string
	Size         int64
	StorageClass string
}

// CommonPrefix is one rolled up key group of a bucket listing.
type CommonPrefix struct {
	Prefix string
}

// ListBucketResult is the response body of the bucket GET operation.
type ListBucketResult struct {
	XMLName     xml.Name `xml:"ListBucketResult"`
	Xmlns       string   `xml:"xmlns,attr"`
	Name        string
	Prefix      string
	Marker      string
	NextMarker  string `xml:",omitempty"`
	MaxKeys     int
	Delimiter   string `xml:",omitempty"`
	IsTruncated bool

	Contents       []ObjectEntry  `xml:",omitempty"`
	CommonPrefixes []CommonPrefix `xml:",omitempty"`
}

// CopyObjectResult is the response body of the object COPY operation.
type CopyObjectResult struct {
	XMLName      xml.Name `xml:"CopyObjectResult"`
	Xmlns        string   `xml:"xmlns,attr"`
	LastModified string
	ETag         string
}

// InitiateMultipartUploadResult is the response body of the multipart
// upload POST operation.
type InitiateMultipartUploadResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Xmlns    string   `xml:"xmlns,attr"`
	Bucket   string
	Key      string
	UploadId string
}

// CompletePart is one entry of the part manifest which the client
// sends to complete a multipart upload.
type CompletePart struct {
	PartNumber int
	ETag       string
}

// CompleteMultipartUpload is the request body of the multipart upload
// complete operation.
type CompleteMultipartUpload struct {
	XMLName xml.Name `xml:"CompleteMultipartUpload"`
	Part    []CompletePart
}

// CompleteMultipartUploadResult is the response body of the multipart
// upload complete operation.
type CompleteMultipartUploadResult struct {
	XMLName  xml.Name `xml:"CompleteMultipartUploadResult"`
	Xmlns    string   `xml:"xmlns,attr"`
	Location string
	Bucket   string
	Key      string
	ETag     string
}

// PartEntry is one uploaded part of a parts listing.
type PartEntry struct {
	PartNumber   int
	LastModified string
	ETag         string
	Size         int64
}

// ListPartsResult is the response body of the parts GET operation.
type ListPartsResult struct {
	XMLName              xml.Name `xml:"ListPartsResult"`
	Xmlns                string   `xml:"xmlns,attr"`
	Bucket               string
	Key                  string
	UploadId             string
	PartNumberMarker     int
	NextPartNumberMarker int `xml:",omitempty"`
	MaxParts             int
	IsTruncated          bool

	Part []PartEntry `xml:",omitempty"`
}
