package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPAdvisor calls the external advisory service. Failures surface to
// the caller; there are no retries, the dashboard simply asks again.
type HTTPAdvisor struct {
	client *resty.Client
}

func NewHTTPAdvisor(baseURL string, timeout time.Duration) *HTTPAdvisor {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &HTTPAdvisor{client: client}
}

func (a *HTTPAdvisor) Forecast(ctx context.Context, req Request) (Result, error) {
	var result Result
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/forecast")
	if err != nil {
		return Result{}, fmt.Errorf("forecast request: %w", err)
	}
	if resp.IsError() {
		return Result{}, fmt.Errorf("forecast service returned %s", resp.Status())
	}
	return result, nil
}
