package store

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Cursors are record ULIDs. ULIDs sort by creation time, so a cursor
// marks a position in newest-first order.

func encodeCursor(id ulid.ULID) string {
	return id.String()
}

func decodeCursor(s string) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return id, nil
}
