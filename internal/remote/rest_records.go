package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"kidpoints/internal/models"
)

var ErrRecordExists = errors.New("family record already exists")

const familiesPath = "/rest/v1/families"

// RESTRecords talks to a PostgREST-compatible families endpoint
type RESTRecords struct {
	client *resty.Client
	logger *zap.Logger
}

// NewRESTRecords creates a client for baseURL. Requests are not retried.
func NewRESTRecords(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *RESTRecords {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("apikey", apiKey).SetAuthToken(apiKey)
	}
	return &RESTRecords{client: client, logger: logger}
}

func (r *RESTRecords) Fetch(ctx context.Context, id string) (*models.FamilyRecord, error) {
	var rows []wireRecord
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("id", "eq."+id).
		SetQueryParam("select", "*").
		SetResult(&rows).
		Get(familiesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch family: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch family: status %d", resp.StatusCode())
	}
	if len(rows) == 0 {
		return nil, nil
	}

	rec, err := fromWire(rows[0])
	if err != nil {
		r.logger.Warn("Ignoring malformed kids payload",
			zap.String("family_id", id),
			zap.Error(err),
		)
	}
	return rec, nil
}

func (r *RESTRecords) Insert(ctx context.Context, rec models.FamilyRecord) error {
	resp, err := r.post(ctx, rec, "return=minimal")
	if err != nil {
		return fmt.Errorf("failed to insert family: %w", err)
	}
	if resp.StatusCode() == http.StatusConflict {
		return ErrRecordExists
	}
	if resp.IsError() {
		return fmt.Errorf("failed to insert family: status %d", resp.StatusCode())
	}
	return nil
}

func (r *RESTRecords) Upsert(ctx context.Context, rec models.FamilyRecord) error {
	resp, err := r.post(ctx, rec, "resolution=merge-duplicates,return=minimal")
	if err != nil {
		return fmt.Errorf("failed to upsert family: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to upsert family: status %d", resp.StatusCode())
	}
	return nil
}

func (r *RESTRecords) post(ctx context.Context, rec models.FamilyRecord, prefer string) (*resty.Response, error) {
	body, err := EncodeRecord(rec)
	if err != nil {
		return nil, err
	}
	return r.client.R().
		SetContext(ctx).
		SetHeader("Prefer", prefer).
		SetBody(body).
		Post(familiesPath)
}
