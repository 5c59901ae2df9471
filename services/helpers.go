package services

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/yashrajoria/tomeshelf/common/errors"
	"github.com/yashrajoria/tomeshelf/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Counter is the part of the CloudWatch metrics client services use.
type Counter interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// count records a business metric off the request path.
func count(c Counter, name string, dims map[string]string) {
	if c == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.RecordCount(ctx, name, dims)
	}()
}

// ownerObjectID parses the authenticated user id. A malformed id means the token did not
// come from a real account.
func ownerObjectID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, apperrors.Unauthenticated("User authentication required")
	}
	return id, nil
}

// bookObjectID parses a catalog id. An id that cannot exist is reported as not found.
func bookObjectID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, apperrors.NotFound("Book not found: %s", raw)
	}
	return id, nil
}

func checkQuantity(quantity int) error {
	if quantity < 1 {
		return apperrors.InvalidArgument("Quantity must be at least 1")
	}
	if quantity > models.MaxItemQuantity {
		return apperrors.InvalidArgument("Quantity must be at most %d", models.MaxItemQuantity)
	}
	return nil
}
