package client

import "errors"

// ErrInvalidProtocol means that there is no matched protocol.
var ErrInvalidProtocol = errors.New("invalid protocol")

// ErrCredentialsNotSupported means the protocol matched but the
// credential scheme is one this server does not serve.
var ErrCredentialsNotSupported = errors.New("credentials not supported")
