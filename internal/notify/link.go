// Package notify builds the "your garment is ready" text message and its deep-links.
package notify

import (
	"errors"
	"net/url"
	"strings"

	"github.com/diewo77/atelier/internal/config"
)

var (
	ErrNoPhone      = errors.New("no_phone")
	ErrInvalidPhone = errors.New("invalid_phone")
)

// Number is a phone number in both dialing formats.
type Number struct {
	International string `json:"international"`
	National      string `json:"national"`
}

// Normalize cleans a raw phone number for the given country calling code ("33").
//
// Non-digits are stripped and a "00" international prefix is dropped. A number starting
// with the country code gets a "+", a single leading trunk zero is replaced by "+<cc>",
// and anything else is passed through unchanged (with its "+" if the raw input had one).
func Normalize(raw, countryCode string) (Number, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Number{}, ErrNoPhone
	}
	var b strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	digits = strings.TrimPrefix(digits, "00")
	if len(digits) < 6 {
		return Number{}, ErrInvalidPhone
	}

	var n Number
	switch {
	case countryCode != "" && strings.HasPrefix(digits, countryCode):
		n.International = "+" + digits
	case strings.HasPrefix(digits, "0"):
		n.International = "+" + countryCode + digits[1:]
	case strings.HasPrefix(trimmed, "+"):
		n.International = "+" + digits
	default:
		n.International = digits
	}

	prefix := "+" + countryCode
	if countryCode != "" && strings.HasPrefix(n.International, prefix) {
		n.National = "0" + strings.TrimPrefix(n.International, prefix)
	} else {
		n.National = n.International
	}
	return n, nil
}

// Link holds the deep-links staff can tap to send the message from a phone.
type Link struct {
	Number      Number `json:"number"`
	Body        string `json:"body"`
	SMS         string `json:"sms"`
	SMSNational string `json:"sms_national"`
	Dial        string `json:"dial"`
}

// Compose normalizes raw and builds the sms: and tel: links for body.
func Compose(raw, countryCode, body string) (*Link, error) {
	n, err := Normalize(raw, countryCode)
	if err != nil {
		return nil, err
	}
	q := escapeBody(body)
	return &Link{
		Number:      n,
		Body:        body,
		SMS:         "sms:" + n.International + "?body=" + q,
		SMSNational: "sms:" + n.National + "?body=" + q,
		Dial:        "tel:" + n.International,
	}, nil
}

// spaces must be %20, several messaging apps show "+" literally.
func escapeBody(body string) string {
	return strings.ReplaceAll(url.QueryEscape(body), "+", "%20")
}

// ReadyMessage is the fixed text sent when a garment is finished.
func ReadyMessage(shop config.ShopConfig) string {
	phone := strings.ReplaceAll(shop.Phone, " ", "")
	return "Bonjour,\n" +
		"Votre vêtement est prêt veuillez confirmer la réception du message\n" +
		"Cordialement,\n" +
		shop.Name + "\n" +
		phone
}
