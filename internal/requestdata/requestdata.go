package requestdata

import (
	"context"

	"github.com/google/uuid"

	types "github.com/teamonboard/flowline-backend/internal/domain"
)

var requestDataKey = struct{}{}

// RequestData is the per-request identity carried through context after the
// auth middleware validated the token.
type RequestData struct {
	UserID       uuid.UUID
	Role         types.Role
	TokenString  string
	RefreshToken string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey).(*RequestData); ok {
		return rd
	}
	return nil
}
