package utils

import (
	"fmt"
	"io"
)

var ErrIOLimitReached = fmt.Errorf("read size limit reached")

func ReadAllLimit(r io.Reader, n int) ([]byte, error) {
	limit := int(n + 1)
	buf, err := io.ReadAll(io.LimitReader(r, int64(limit)))
	if err != nil {
		return buf, err
	}
	if len(buf) >= limit {
		return buf[:limit-1], ErrIOLimitReached
	}
	return buf, nil
}
