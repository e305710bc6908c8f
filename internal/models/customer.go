package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"

	"storefront-api/internal/apperr"
)

// AnonymousBucket is the scored-index bucket that holds rows computed
// for unauthenticated traffic.
const AnonymousBucket = "BLANK"

// CustomerRef identifies the customer a request acts for. The zero
// value is the anonymous customer.
type CustomerRef struct {
	id string
}

// Anonymous returns the anonymous customer reference.
func Anonymous() CustomerRef { return CustomerRef{} }

// Identified returns a reference to a known customer.
func Identified(id string) CustomerRef { return CustomerRef{id: id} }

// IsAnonymous reports whether the reference carries no customer id.
func (c CustomerRef) IsAnonymous() bool { return c.id == "" }

// ID returns the customer id, empty for anonymous.
func (c CustomerRef) ID() string { return c.id }

// Bucket returns the scored-index bucket the reference maps to.
func (c CustomerRef) Bucket() string {
	if c.id == "" {
		return AnonymousBucket
	}
	return c.id
}

// DeliveryAddress is one address in a customer's address book. Hash is
// a stable identifier derived from the address content.
type DeliveryAddress struct {
	Hash            string `json:"hash"`
	Recipient       string `json:"recipient"`
	Street          string `json:"street"`
	Suburb          string `json:"suburb"`
	City            string `json:"city"`
	PostalCode      string `json:"postal_code"`
	Country         string `json:"country"`
	Phone           string `json:"phone"`
	Billing         bool   `json:"billing"`
	ShippingDefault bool   `json:"shipping_default"`
}

// ComputeHash derives the stable address hash from its content fields.
func (a *DeliveryAddress) ComputeHash() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		a.Recipient, a.Street, a.Suburb, a.City, a.PostalCode, a.Country, a.Phone,
	}, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

// Customer is the account record kept in the KV store.
type Customer struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	Gender    string            `json:"gender,omitempty"`
	TierID    string            `json:"tier_id"`
	IsStaff   bool              `json:"is_staff"`
	Addresses []DeliveryAddress `json:"addresses"`
}

// Validate enforces the customer invariants.
func (c *Customer) Validate() error {
	if c.ID == "" {
		return apperr.Incorrect("customer id is required")
	}
	if !ValidEmail(c.Email) {
		return apperr.Incorrect("customer %s email is malformed", c.ID)
	}
	billing, shipping := 0, 0
	for _, a := range c.Addresses {
		if a.Billing {
			billing++
		}
		if a.ShippingDefault {
			shipping++
		}
	}
	if billing > 1 {
		return apperr.Incorrect("customer %s has more than one billing address", c.ID)
	}
	if shipping > 1 {
		return apperr.Incorrect("customer %s has more than one default shipping address", c.ID)
	}
	return nil
}

// ValidEmail is a light well-formedness check: local@domain.tld.
func ValidEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1 && !strings.ContainsAny(email, " \t")
}

// Tier is a customer loyalty band.
type Tier struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	CreditBackPercent int             `json:"credit_back_percent"`
	SpentMin          decimal.Decimal `json:"spent_min"`
	SpentMax          decimal.Decimal `json:"spent_max"`
}

// Validate enforces the tier invariants.
func (t *Tier) Validate() error {
	if t.ID == "" || t.Name == "" {
		return apperr.Incorrect("tier id and name are required")
	}
	if t.CreditBackPercent < 0 || t.CreditBackPercent > 100 {
		return apperr.Incorrect("tier %s credit_back_percent must be within [0,100]", t.ID)
	}
	return nil
}

// IsNeutral reports whether the tier earns no credit back.
func (t *Tier) IsNeutral() bool { return t.CreditBackPercent == 0 }
