package worker

import (
	"context"
	"encoding/json"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/batch"
	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
	"github.com/shubomifashakin/Temp-AWS-Infra/pkg/storage"
)

// UserDeleteExecutor removes objects users asked to delete.
type UserDeleteExecutor struct {
	store  storage.Storage
	bucket string
}

func NewUserDeleteExecutor(store storage.Storage, bucket string) *UserDeleteExecutor {
	return &UserDeleteExecutor{store: store, bucket: bucket}
}

// Handle deletes the requested files of a batch in a single call.
func (e *UserDeleteExecutor) Handle(ctx context.Context, msgs []batch.Message) (batch.Response, error) {
	c := batch.NewCollector()
	reqs := parseEach(ctx, msgs, c, parseUserDelete)
	bulkDelete(ctx, e.store, e.bucket, reqs, c)
	return c.Response(), nil
}

func parseUserDelete(body []byte) (string, error) {
	var req domain.UserDeleteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", err
	}
	if err := req.Validate(); err != nil {
		return "", err
	}
	return req.FileID, nil
}
