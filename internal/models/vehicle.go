package models

import (
	"errors"
	"net/url"
)

// FeatureSet holds the details shown on vehicle cards.
type FeatureSet struct {
	Seats        int    `json:"seats" yaml:"seats"`
	Luggage      int    `json:"luggage" yaml:"luggage"`
	Fuel         string `json:"fuel" yaml:"fuel"`
	Transmission string `json:"transmission" yaml:"transmission"`
}

// RatingSummary is the aggregated customer rating of a vehicle model.
type RatingSummary struct {
	Average float64 `json:"average" yaml:"average"`
	Count   int     `json:"count" yaml:"count"`
}

// Vehicle is a catalog entry. The booking core only ever reads it.
type Vehicle struct {
	ID           string        `json:"id" yaml:"id"`
	ModelID      string        `json:"model_id,omitempty" yaml:"model_id"`
	Name         string        `json:"name" yaml:"name"`
	Brand        string        `json:"brand,omitempty" yaml:"brand"`
	Category     string        `json:"category" yaml:"category"`
	PricePerDay  int64         `json:"price_per_day" yaml:"price_per_day"`
	ImageURL     string        `json:"image_url,omitempty" yaml:"image_url"`
	Rating       RatingSummary `json:"rating" yaml:"rating"`
	Features     FeatureSet    `json:"features" yaml:"features"`
	Status       string        `json:"status" yaml:"status"`
	LicensePlate string        `json:"license_plate,omitempty" yaml:"license_plate"`
}

// Available reports whether the vehicle may be offered for booking.
func (v Vehicle) Available() bool {
	return v.Status == "" || v.Status == VehicleAvailable
}

// VehiclePatch is an admin edit of a catalog entry. Nil fields are left
// unchanged.
type VehiclePatch struct {
	PricePerDay *int64  `json:"price_per_day,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
}

func (p VehiclePatch) Empty() bool {
	return p.PricePerDay == nil && p.ImageURL == nil
}

func (p VehiclePatch) Validate() error {
	if p.Empty() {
		return errors.New("nothing to update")
	}
	if p.PricePerDay != nil && *p.PricePerDay <= 0 {
		return errors.New("price_per_day must be positive")
	}
	if p.ImageURL != nil && *p.ImageURL != "" {
		u, err := url.Parse(*p.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("image_url must be an absolute http(s) URL")
		}
	}
	return nil
}
