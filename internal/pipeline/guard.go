package pipeline

import (
	"context"
	"fmt"

	"alcyxob/imagegate/internal/domain"
)

// SizeGuard rejects requests whose declared Content-Length is below minSize.
// The header is client controlled, so this only filters out trivially empty
// requests before any parsing; the decoder enforces the real ceiling.
func SizeGuard(minSize int64) Stage {
	return Stage{
		Name: "size_guard",
		Run: func(_ context.Context, req *Request) error {
			if req.ContentLength >= 0 && req.ContentLength < minSize {
				return domain.Reject(domain.ReasonTooSmall,
					fmt.Errorf("declared content length %d is below %d bytes", req.ContentLength, minSize))
			}
			return nil
		},
	}
}
