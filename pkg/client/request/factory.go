package request

import (
	"net/http"

	"github.com/gitter-badger/pithos/pkg/client"
	"github.com/gitter-badger/pithos/pkg/client/s3"
)

// NewRequestEventFactory returns a new request event factory.
func NewRequestEventFactory(opts ...Option) *RequestEventFactory {
	f := &RequestEventFactory{
		o: defaultOptions,
	}

	for _, opt := range opts {
		opt(&f.o)
	}

	return f
}

// RequestEventFactory creates handles for request event.
type RequestEventFactory struct {
	o options
}

// CreateRequestEvent creates a validated request event.
func (f *RequestEventFactory) CreateRequestEvent(w http.ResponseWriter, r *http.Request) (client.RequestEvent, error) {
	switch classifyProtocol(r) {
	case client.S3:
		if f.o.useS3 == false {
			return nil, client.ErrInvalidProtocol
		}
		return s3.NewS3RequestEvent(w, r)
	default:
		return nil, client.ErrInvalidProtocol
	}
}

func classifyProtocol(r *http.Request) client.Protocol {
	if ok := r.Header.Get("X-Amz-Date"); ok != "" {
		return client.S3
	}
	// Presigned requests carry their date in the query instead.
	if ok := r.URL.Query().Get("X-Amz-Date"); ok != "" {
		return client.S3
	}

	return client.Unknown
}
