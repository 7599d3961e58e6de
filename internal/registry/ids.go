package registry

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/coldbrewlabs/pairhub/internal/iphash"
)

// NewSessionID returns a fresh opaque session id.
func NewSessionID() string {
	return "ses_" + uuid.New().String()
}

// NewSocketID returns a fresh opaque socket id.
func NewSocketID() string {
	return "sock_" + uuid.New().String()
}

// NewRequestID returns a fresh opaque connection-request id: a base36
// timestamp followed by a random suffix, so ids sort roughly by creation
// time without leaking a sequential counter.
func NewRequestID(now time.Time) string {
	suffix, err := iphash.RandomSuffix(4)
	if err != nil {
		suffix = "0000"
	}
	return "req_" + strconv.FormatInt(now.UnixNano(), 36) + "_" + suffix
}
