package s3

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gitter-badger/pithos/pkg/client"
	s3lib "github.com/gitter-badger/pithos/pkg/s3"
)

// timeFormat is the basic ISO8601 layout of the X-Amz-Date value.
const timeFormat = "20060102T150405Z"

// S3RequestEvent is used to handling s3 type of requests.
type S3RequestEvent struct {
	protocol client.Protocol

	httpWriter  http.ResponseWriter
	httpRequest *http.Request

	authArgs  *s3lib.SignV4
	presigned bool
}

// NewS3RequestEvent creates a new s3 request event.
func NewS3RequestEvent(w http.ResponseWriter, r *http.Request) (client.RequestEvent, error) {
	e := &S3RequestEvent{
		protocol:    client.S3,
		httpWriter:  w,
		httpRequest: r,
	}

	// Presigned requests carry their signature in the query.
	if r.URL.Query().Get("X-Amz-Algorithm") != "" {
		authArgs, s3err := s3lib.ParseSignV4FromQuery(r.URL.Query())
		if s3err != s3lib.ErrNone {
			return nil, client.ErrInvalidProtocol
		}
		e.authArgs = authArgs
		e.presigned = true
		return e, nil
	}

	authStr := r.Header.Get("Authorization")
	switch s3lib.SignatureVersion(authStr) {
	case s3lib.V4:
		authArgs, s3err := s3lib.ParseSignV4(authStr)
		if s3err != s3lib.ErrNone {
			return nil, client.ErrInvalidProtocol
		}
		e.authArgs = authArgs

	case s3lib.V2:
		// Old style signatures are classified but not served.
		return nil, client.ErrCredentialsNotSupported

	default:
		return nil, client.ErrInvalidProtocol
	}

	return e, nil
}

// Protocol is a getter of protocol type.
func (r *S3RequestEvent) Protocol() client.Protocol {
	return r.protocol
}

// ResponseWriter is a getter of http response writer.
func (r *S3RequestEvent) ResponseWriter() http.ResponseWriter {
	return r.httpWriter
}

// Request is a getter of http request.
func (r *S3RequestEvent) Request() *http.Request {
	return r.httpRequest
}

// AccessKey is a getter of access key.
func (r *S3RequestEvent) AccessKey() string {
	return r.authArgs.Credential.AccessKey
}

// Region is a getter of region.
func (r *S3RequestEvent) Region() string {
	return r.authArgs.Credential.Region
}

// Bucket returns the bucket name of the request path.
func (r *S3RequestEvent) Bucket() string {
	path := strings.Trim(r.httpRequest.URL.Path, "/")
	return strings.SplitN(path, "/", 2)[0]
}

// Key returns the object key of the request path, or an empty string
// for bucket and service level requests.
func (r *S3RequestEvent) Key() string {
	path := strings.Trim(r.httpRequest.URL.Path, "/")
	fields := strings.SplitN(path, "/", 2)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

// ContentMD5 returns the Content-MD5 header as a hex digest.
func (r *S3RequestEvent) ContentMD5() (string, bool) {
	value := r.httpRequest.Header.Get("Content-MD5")
	if value == "" {
		return "", true
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(decoded) != 16 {
		return "", false
	}
	return hex.EncodeToString(decoded), true
}

// Auth checks the given secret key is same with the encoded secret key in the http request.
func (r *S3RequestEvent) Auth(secretKey string) bool {
	if r.presigned && r.expired() {
		return false
	}
	return r.authV4(secretKey)
}

func (r *S3RequestEvent) authV4(secretKey string) bool {
	// Task 1: Create a Canonical Request for Signature Version 4.
	// https://docs.aws.amazon.com/general/latest/gr/sigv4-create-canonical-request.html
	query := r.httpRequest.URL.Query()
	if r.presigned {
		query.Del("X-Amz-Signature")
	}
	canonicalRequest := s3lib.GenCanonicalRequest(
		r.httpRequest.Method,
		r.httpRequest.URL.EscapedPath(),
		s3lib.GenCanonicalQuery(query),
		s3lib.GenCanonicalHeaders(r.httpRequest, r.authArgs.SignedHeaders),
		s3lib.GenSignedHeadersString(r.authArgs.SignedHeaders),
		r.hashedPayload(),
	)

	// Task 2: Create a String to Sign for Signature Version 4.
	// https://docs.aws.amazon.com/general/latest/gr/sigv4-create-string-to-sign.html
	sha256CanonicalRequest := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := s3lib.GenStringToSign(
		"AWS4-HMAC-SHA256",
		r.requestDate(),
		r.authArgs.Credential.Scope(),
		hex.EncodeToString(sha256CanonicalRequest[:]),
	)

	// Task 3: Calculate the Signature for AWS Signature Version 4.
	// https://docs.aws.amazon.com/general/latest/gr/sigv4-calculate-signature.html
	signatureKey := s3lib.GenSignatureKey(
		secretKey,
		r.authArgs.Credential.Date,
		r.authArgs.Credential.Region,
		r.authArgs.Credential.Service,
	)

	derivedSignature := s3lib.GenSignature(signatureKey, stringToSign)
	return r.authArgs.Signature == derivedSignature
}

// hashedPayload returns the content hash the client signed with.
// Presigned requests never sign their payload.
func (r *S3RequestEvent) hashedPayload() string {
	if r.presigned {
		return s3lib.UnsignedPayload
	}
	if hash := r.httpRequest.Header.Get("X-Amz-Content-Sha256"); hash != "" {
		return hash
	}
	return s3lib.UnsignedPayload
}

// requestDate returns the timestamp the client signed with.
func (r *S3RequestEvent) requestDate() string {
	if r.presigned {
		return r.httpRequest.URL.Query().Get("X-Amz-Date")
	}
	return r.httpRequest.Header.Get("X-Amz-Date")
}

// expired reports whether a presigned request has outlived the
// X-Amz-Expires window.
func (r *S3RequestEvent) expired() bool {
	query := r.httpRequest.URL.Query()

	signed, err := time.Parse(timeFormat, query.Get("X-Amz-Date"))
	if err != nil {
		return true
	}

	expires, err := strconv.ParseInt(query.Get("X-Amz-Expires"), 10, 64)
	if err != nil || expires <= 0 {
		return true
	}

	return time.Now().UTC().After(signed.Add(time.Duration(expires) * time.Second))
}

// SendSuccess sends success message to the client.
func (r *S3RequestEvent) SendSuccess() {
	s3lib.SendSuccess(r.httpWriter)
}

// SendNoContent sends an empty no content response to the client.
func (r *S3RequestEvent) SendNoContent() {
	s3lib.SendNoContent(r.httpWriter)
}

// SendInternalError sends s3 internal error to the client.
func (r *S3RequestEvent) SendInternalError() {
	s3lib.SendError(r.httpWriter, s3lib.ErrInternalError, r.httpRequest.URL.Path, "")
}

// SendIncorrectKey sends s3 signature mismatch error to the client.
func (r *S3RequestEvent) SendIncorrectKey() {
	s3lib.SendError(r.httpWriter, s3lib.ErrSignatureDoesNotMatch, r.httpRequest.URL.Path, "")
}

// SendNoSuchKey sends s3 no such key error to the client.
func (r *S3RequestEvent) SendNoSuchKey() {
	s3lib.SendError(r.httpWriter, s3lib.ErrInvalidAccessKeyId, r.httpRequest.URL.Path, "")
}

// SendInvalidURI sends s3 invalid uri error to the client.
func (r *S3RequestEvent) SendInvalidURI() {
	s3lib.SendError(r.httpWriter, s3lib.ErrInvalidURI, r.httpRequest.URL.Path, "")
}
