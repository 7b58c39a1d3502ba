package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	billingdomain "github.com/courtsidehq/courtside/internal/billing/domain"
	"github.com/courtsidehq/courtside/internal/config"
)

// signatureTolerance bounds how far the signed timestamp may drift from the
// local clock. Older headers are treated as replays and rejected.
const signatureTolerance = 5 * time.Minute

// Codec verifies and decodes raw Stripe webhook deliveries into
// subscription facts. Verification always runs over the raw request bytes,
// never a re-serialized form.
type Codec struct {
	webhookSecret string
	now           func() time.Time
}

func NewCodec(cfg config.Config) (*Codec, error) {
	secret := strings.TrimSpace(cfg.BillingWebhookSecret)
	if secret == "" {
		return nil, errors.New("billing webhook secret is required")
	}
	return &Codec{webhookSecret: secret}, nil
}

func (c *Codec) Verify(ctx context.Context, payload []byte, sigHeader string) error {
	sigHeader = strings.TrimSpace(sigHeader)
	if sigHeader == "" {
		return billingdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return billingdomain.ErrInvalidSignature
	}

	signedAt, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return billingdomain.ErrInvalidSignature
	}
	if drift := c.clock().Sub(time.Unix(signedAt, 0)); drift > signatureTolerance || drift < -signatureTolerance {
		return billingdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return billingdomain.ErrInvalidSignature
}

func (c *Codec) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// Parse extracts a subscription fact from a verified payload. Event types
// outside the subscription lifecycle return ErrEventIgnored so the ingress
// can acknowledge them without side effects.
func (c *Codec) Parse(ctx context.Context, payload []byte) (*billingdomain.SubscriptionFact, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	eventType := strings.TrimSpace(event.Type)
	switch eventType {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
	default:
		return nil, billingdomain.ErrEventIgnored
	}

	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" || strings.TrimSpace(sub.Customer) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	priceItemID := ""
	if eventType != "customer.subscription.deleted" && len(sub.Items.Data) > 0 {
		priceItemID = strings.TrimSpace(sub.Items.Data[0].Price.ID)
	}

	return &billingdomain.SubscriptionFact{
		EventID:        event.ID,
		EventType:      eventType,
		CustomerID:     strings.TrimSpace(sub.Customer),
		SubscriptionID: sub.ID,
		PriceItemID:    priceItemID,
		Status:         strings.TrimSpace(sub.Status),
		IdentityUserID: readMetadataValue(sub.Metadata, "identity_user_id"),
		ObservedAt:     timestamp(event.Created, sub.Created),
		RawPayload:     payload,
	}, nil
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeSubscription struct {
	ID       string                  `json:"id"`
	Customer string                  `json:"customer"`
	Status   string                  `json:"status"`
	Created  int64                   `json:"created"`
	Items    stripeSubscriptionItems `json:"items"`
	Metadata map[string]any          `json:"metadata"`
}

type stripeSubscriptionItems struct {
	Data []stripeSubscriptionItem `json:"data"`
}

type stripeSubscriptionItem struct {
	Price stripePrice `json:"price"`
}

type stripePrice struct {
	ID string `json:"id"`
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

// timestamp prefers the event-level creation time, which is the provider's
// ordering authority, over the nested object's.
func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	if cast, ok := value.(string); ok {
		return strings.TrimSpace(cast)
	}
	return ""
}
