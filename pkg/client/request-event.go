package client

import "net/http"

// RequestEvent is one authenticated-protocol view of an incoming
// request. It exposes the request coordinates and sends protocol
// shaped responses.
type RequestEvent interface {
	// Getter
	Protocol() Protocol
	ResponseWriter() http.ResponseWriter
	Request() *http.Request
	AccessKey() string
	Region() string
	Bucket() string
	Key() string

	// ContentMD5 returns the Content-MD5 header as a hex digest.
	// The second return reports whether the header was well formed.
	// A missing header returns an empty digest and true.
	ContentMD5() (string, bool)

	// Auth checks the request signature against the given secret key.
	Auth(secretKey string) bool

	// Methods for sending responses.
	SendSuccess()
	SendNoContent()
	SendInternalError()
	SendIncorrectKey()
	SendNoSuchKey()
	SendInvalidURI()
}
