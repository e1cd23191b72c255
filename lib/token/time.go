package token

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// TimeSource is a function that returns the current time.
type TimeSource func() time.Time

// TimeEncoder prepends the time the data was encoded.
//
// On Decode, data older than the configured validity is rejected with
// ExpiredError. The validity is not encoded in the data, it is enforced
// by whoever decodes it.
type TimeEncoder struct {
	validity time.Duration
	now      TimeSource
}

// NewTimeEncoder creates a new TimeEncoder. A nil source means time.Now.
func NewTimeEncoder(source TimeSource, validity time.Duration) *TimeEncoder {
	if source == nil {
		source = time.Now
	}

	return &TimeEncoder{
		validity: validity,
		now:      source,
	}
}

func (t *TimeEncoder) Encode(data []byte) ([]byte, error) {
	timedata := make([]byte, binary.MaxVarintLen64)
	written := binary.PutVarint(timedata, t.now().Unix())
	return append(timedata[:written], data...), nil
}

// ExpiredError is returned if the data is considered expired.
var ExpiredError = errors.New("token expired")

// IssuedTimeKey allows to access the time encoded by TimeEncoder.Encode from
// the context returned by Decode:
//
//	ctx, data, err := te.Decode(context.Background(), original)
//	issued, ok := ctx.Value(token.IssuedTimeKey).(time.Time)
var IssuedTimeKey = contextKey("issued")

// Decode returns ExpiredError together with the data if the data was issued
// more than validity ago, a generic error if the data is corrupted.
func (t *TimeEncoder) Decode(ctx context.Context, data []byte) (context.Context, []byte, error) {
	issued, parsed := binary.Varint(data)
	if parsed <= 0 {
		return ctx, nil, fmt.Errorf("invalid timestamp in buffer")
	}

	itime := time.Unix(issued, 0)
	ctx = context.WithValue(ctx, IssuedTimeKey, itime)
	if issued <= 0 || itime.Add(t.validity).Before(t.now()) {
		return ctx, data[parsed:], ExpiredError
	}
	return ctx, data[parsed:], nil
}
