package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotifyBookingReceived  NotificationKind = "booking_received"
	NotifyBookingConfirmed NotificationKind = "booking_confirmed"
	NotifyBookingCancelled NotificationKind = "booking_cancelled"
	NotifyPaymentFailed    NotificationKind = "payment_failed"
	NotifyPaymentRefunded  NotificationKind = "payment_refunded"
	NotifyWaitlistPromoted NotificationKind = "waitlist_promoted"
)

// NotificationClient pushes lifecycle notifications to the delivery
// service. Fire-and-forget from the engine's point of view: failures are
// retried by the message router, never rolled into booking state.
type NotificationClient struct {
	baseURL string
	http    *http.Client
}

func NewNotificationClient(baseURL string) *NotificationClient {
	return &NotificationClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *NotificationClient) Notify(ctx context.Context, kind NotificationKind, bookingID uuid.UUID, extra map[string]string) error {
	body := struct {
		Kind      NotificationKind  `json:"kind"`
		BookingID uuid.UUID         `json:"booking_id"`
		Extra     map[string]string `json:"extra,omitempty"`
	}{Kind: kind, BookingID: bookingID, Extra: extra}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/notifications", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification service responded %s", resp.Status)
	}

	return nil
}
