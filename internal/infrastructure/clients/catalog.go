package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogClient reads class-level configuration (default price, capacity,
// prerequisites, instructor payout accounts) from the catalog service.
type CatalogClient struct {
	baseURL string
	http    *http.Client
}

func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *CatalogClient) DefaultPrice(ctx context.Context, classID uuid.UUID) (decimal.Decimal, string, error) {
	var resp struct {
		Price    decimal.Decimal `json:"price"`
		Currency string          `json:"currency"`
	}
	if err := c.get(ctx, fmt.Sprintf("/v1/classes/%s/price", classID), &resp); err != nil {
		return decimal.Zero, "", err
	}

	return resp.Price, resp.Currency, nil
}

func (c *CatalogClient) CheckPrerequisites(ctx context.Context, classID, studentID uuid.UUID) (bool, error) {
	var resp struct {
		Satisfied bool `json:"satisfied"`
	}
	path := fmt.Sprintf("/v1/classes/%s/prerequisites/%s", classID, studentID)
	if err := c.get(ctx, path, &resp); err != nil {
		return false, err
	}

	return resp.Satisfied, nil
}

// PayoutAccount returns the instructor's linked payout account id, or empty
// when none is linked.
func (c *CatalogClient) PayoutAccount(ctx context.Context, instructorID uuid.UUID) (string, error) {
	var resp struct {
		Account string `json:"account"`
	}
	err := c.get(ctx, fmt.Sprintf("/v1/instructors/%s/payout-account", instructorID), &resp)
	if err != nil {
		return "", err
	}

	return resp.Account, nil
}

func (c *CatalogClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Missing catalog entries behave as zero values.
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog responded %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
