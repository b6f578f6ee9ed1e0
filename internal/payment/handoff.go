// Package payment builds the post-reservation payment instructions. It does
// not settle anything: payment proof is sent by the customer over chat.
package payment

import (
	"fmt"
	"strings"

	"rungroj/internal/config"
	"rungroj/internal/dates"
	"rungroj/internal/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const defaultVehicleName = "รถเช่า"

type ContactKind string

const (
	ContactLine     ContactKind = "line"
	ContactFacebook ContactKind = "facebook"
	ContactPhone    ContactKind = "phone"
)

type Contact struct {
	Kind  ContactKind `json:"kind"`
	Label string      `json:"label"`
	URL   string      `json:"url"`
}

// Handoff is everything the confirmation screen renders.
type Handoff struct {
	ReservationID string    `json:"reservation_id"`
	VehicleName   string    `json:"vehicle_name"`
	DateRange     string    `json:"date_range"`
	Total         int64     `json:"total"`
	TotalText     string    `json:"total_text"`
	PromptPayID   string    `json:"promptpay_id"`
	QRCodeURL     string    `json:"qr_code_url"`
	Contacts      []Contact `json:"contacts"`
}

// NewHandoff renders the payment view for a reservation whose total has
// already been resolved against the preview.
func NewHandoff(cfg config.PaymentConfig, rec models.ReservationRecord, vehicle *models.Vehicle, total int64) Handoff {
	name := defaultVehicleName
	if vehicle != nil && vehicle.Name != "" {
		name = vehicle.Name
	} else if rec.Vehicle != nil && rec.Vehicle.Name != "" {
		name = rec.Vehicle.Name
	}
	if total < 0 {
		total = 0
	}

	return Handoff{
		ReservationID: rec.ID,
		VehicleName:   name,
		DateRange:     dates.FormatLocalizedRange(rec.PickupDate, rec.DropoffDate),
		Total:         total,
		TotalText:     FormatBaht(total),
		PromptPayID:   cfg.PromptPayID,
		QRCodeURL:     QRCodeURL(cfg.QRBaseURL, cfg.PromptPayID, total),
		Contacts:      Contacts(cfg),
	}
}

// QRCodeURL addresses a PromptPay QR image for id and amount.
func QRCodeURL(baseURL, id string, amount int64) string {
	return fmt.Sprintf("%s/%s/%d.png", strings.TrimRight(baseURL, "/"), id, amount)
}

// Contacts lists the static chat and phone links.
func Contacts(cfg config.PaymentConfig) []Contact {
	contacts := make([]Contact, 0, 2+len(cfg.Phones))
	if cfg.LineURL != "" {
		contacts = append(contacts, Contact{Kind: ContactLine, Label: "LINE", URL: cfg.LineURL})
	}
	if cfg.FacebookURL != "" {
		contacts = append(contacts, Contact{Kind: ContactFacebook, Label: "Messenger", URL: cfg.FacebookURL})
	}
	for _, phone := range cfg.Phones {
		contacts = append(contacts, Contact{Kind: ContactPhone, Label: phone, URL: "tel:" + strings.ReplaceAll(phone, "-", "")})
	}
	return contacts
}

var thai = message.NewPrinter(language.Thai)

// FormatBaht renders an amount with Thai digit grouping, e.g. ฿12,500.
func FormatBaht(amount int64) string {
	if amount < 0 {
		return "-฿" + thai.Sprintf("%d", -amount)
	}
	return "฿" + thai.Sprintf("%d", amount)
}
