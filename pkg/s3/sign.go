package s3

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const (
	// Identifies signature version 2.
	v2Identifier = "AWS"
	// Identifies signature version 4.
	v4Identifier = "AWS4-HMAC-SHA256"

	// V2 is the enum of the signature version 2.
	V2 = 2
	// V4 is the enum of the signature version 4.
	V4 = 4
)

// UnsignedPayload is the content hash value of requests which leave
// their payload out of the signature.
const UnsignedPayload = "UNSIGNED-PAYLOAD"

// SignatureVersion classifies the version of the authorization string.
// Returns -1 for unknown identifiers.
func SignatureVersion(authString string) int {
	if strings.HasPrefix(authString, v4Identifier) {
		return V4
	} else if strings.HasPrefix(authString, v2Identifier) {
		return V2
	}

	return -1
}

// CredV4 is the credential scope of a v4 signature.
// https://docs.aws.amazon.com/general/latest/gr/sigv4-create-string-to-sign.html
type CredV4 struct {
	AccessKey   string
	Date        string
	Region      string
	Service     string
	Termination string
}

// Scope returns the scope string of the credential: the credential
// fields without the access key, joined by slashes.
func (c *CredV4) Scope() string {
	return strings.Join([]string{c.Date, c.Region, c.Service, c.Termination}, "/")
}

// ParseCredV4 parses a credential string of the form
// access-key/date/region/service/termination.
func ParseCredV4(credential string) (*CredV4, ErrorCode) {
	args := strings.Split(credential, "/")
	if len(args) != 5 {
		return nil, ErrMissingSecurityHeader
	}

	return &CredV4{
		AccessKey:   args[0],
		Date:        args[1],
		Region:      args[2],
		Service:     args[3],
		Termination: args[4],
	}, ErrNone
}

// SignV4 contains the parsed fields of a v4 authorization.
type SignV4 struct {
	Credential    CredV4
	SignedHeaders []string
	Signature     string
}

// ParseSignV4 parses the v4 authorization header string.
func ParseSignV4(authString string) (*SignV4, ErrorCode) {
	// Remove sign algorithm identifier.
	authString = strings.TrimPrefix(authString, v4Identifier)
	fields := strings.Split(strings.TrimSpace(authString), ",")
	if len(fields) < 3 {
		return nil, ErrMissingSecurityHeader
	}

	sign := &SignV4{}
	for _, field := range fields {
		kv := strings.SplitN(strings.TrimSpace(field), "=", 2)
		if len(kv) != 2 {
			return nil, ErrMissingSecurityHeader
		}

		switch kv[0] {
		case "Credential":
			cred, s3err := ParseCredV4(kv[1])
			if s3err != ErrNone {
				return nil, s3err
			}
			sign.Credential = *cred
		case "SignedHeaders":
			sign.SignedHeaders = strings.Split(kv[1], ";")
		case "Signature":
			sign.Signature = kv[1]
		}
	}

	if sign.Credential.AccessKey == "" || len(sign.SignedHeaders) == 0 || sign.Signature == "" {
		return nil, ErrMissingSecurityHeader
	}

	return sign, ErrNone
}

// ParseSignV4FromQuery parses the v4 presigned fields of a query.
// https://docs.aws.amazon.com/AmazonS3/latest/API/sigv4-query-string-auth.html
func ParseSignV4FromQuery(query url.Values) (*SignV4, ErrorCode) {
	if query.Get("X-Amz-Algorithm") != v4Identifier {
		return nil, ErrMissingSecurityHeader
	}

	cred, s3err := ParseCredV4(query.Get("X-Amz-Credential"))
	if s3err != ErrNone {
		return nil, s3err
	}

	sign := &SignV4{
		Credential:    *cred,
		SignedHeaders: strings.Split(query.Get("X-Amz-SignedHeaders"), ";"),
		Signature:     query.Get("X-Amz-Signature"),
	}
	if len(sign.SignedHeaders) == 0 || sign.Signature == "" {
		return nil, ErrMissingSecurityHeader
	}

	return sign, ErrNone
}

// GenCanonicalRequest builds the task 1 canonical request string.
// https://docs.aws.amazon.com/general/latest/gr/sigv4-create-canonical-request.html
func GenCanonicalRequest(method, uri, query, canonicalHeaders, signedHeaders, hashedPayload string) string {
	return strings.Join([]string{
		method,
		uri,
		query,
		canonicalHeaders,
		signedHeaders,
		hashedPayload,
	}, "\n")
}

// GenCanonicalHeaders builds the canonical headers string of the given
// signed header names: lower-cased names in ascending order, each with
// its trimmed value and a trailing newline.
func GenCanonicalHeaders(r *http.Request, signedHeaders []string) string {
	sorted := lowerSorted(signedHeaders)

	var buf bytes.Buffer
	for _, h := range sorted {
		value := strings.TrimSpace(r.Header.Get(h))
		if h == "host" {
			value = r.Host
		}

		buf.WriteString(h)
		buf.WriteString(":")
		buf.WriteString(value)
		buf.WriteString("\n")
	}

	return buf.String()
}

// GenSignedHeadersString joins the signed header names in their
// canonical form.
func GenSignedHeadersString(signedHeaders []string) string {
	return strings.Join(lowerSorted(signedHeaders), ";")
}

// GenCanonicalQuery builds the canonical query string: keys in
// ascending order with percent-encoded keys and values.
func GenCanonicalQuery(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		for _, v := range query[k] {
			if buf.Len() > 0 {
				buf.WriteString("&")
			}
			buf.WriteString(uriEncode(k))
			buf.WriteString("=")
			buf.WriteString(uriEncode(v))
		}
	}

	return buf.String()
}

// GenStringToSign builds the task 2 string to sign.
// https://docs.aws.amazon.com/general/latest/gr/sigv4-create-string-to-sign.html
func GenStringToSign(algorithm, requestDate, credentialScope, hashedCanonicalRequest string) string {
	return strings.Join([]string{
		algorithm,
		requestDate,
		credentialScope,
		hashedCanonicalRequest,
	}, "\n")
}

// GenSignatureKey derives the task 3 signing key from the secret key
// and the credential scope fields.
// https://docs.aws.amazon.com/general/latest/gr/sigv4-calculate-signature.html
func GenSignatureKey(secretKey, date, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(date))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte("aws4_request"))
}

// GenSignature calculates the final signature with the derived key.
func GenSignature(signatureKey []byte, stringToSign string) string {
	return hex.EncodeToString(hmacSHA256(signatureKey, []byte(stringToSign)))
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func lowerSorted(headers []string) []string {
	sorted := make([]string, len(headers))
	for i, h := range headers {
		sorted[i] = strings.ToLower(h)
	}
	sort.Strings(sorted)
	return sorted
}

// uriEncode percent-encodes everything but the unreserved characters,
// as the v4 canonicalization rules expect.
func uriEncode(s string) string {
	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z',
			c >= 'a' && c <= 'z',
			c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			buf.WriteByte(c)
		default:
			fmt.Fprintf(&buf, "%%%02X", c)
		}
	}
	return buf.String()
}
