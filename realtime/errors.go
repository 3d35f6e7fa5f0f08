package realtime

import "errors"

// ErrSessionClosed is returned by session operations after Close
var ErrSessionClosed = errors.New("realtime session is closed")
