package models

import "strings"

const placeholderImage = "https://placehold.co/600x400?text=Car"

var defaultImages = map[string]string{
	"Toyota Yaris Ativ": "https://img.thaibizpost.com/uploads/2023-01/new-toyota-yaris-ativ-2023.jpg",
	"Honda City":        "https://www.honda.co.th/assets/images/city/exterior/exterior-1.jpg",
	"Toyota Fortuner":   "https://www.toyota.co.th/media/product/series/thumbnail/fortuner.png",
	"Toyota Hilux Revo": "https://www.toyota.co.th/media/product/series/thumbnail/hilux-revo.png",
	"Honda HR-V":        "https://www.honda.co.th/assets/images/hrv/exterior/exterior-1.jpg",
	"Nissan Almera":     "https://www-asia.nissan-cdn.net/content/dam/Nissan/th/vehicles/almera/2023/overview/almera-overview-hero.jpg",
	"MG ZS EV":          "https://www.mgcars.com/uploads/model/mg-zs-ev/exterior.jpg",
	"Isuzu D-Max":       "https://www.isuzu-tis.com/storage/products/d-max/gallery/exterior-1.jpg",
}

// DefaultImage returns the stock picture for a model name.
func DefaultImage(name string) string {
	if img, ok := defaultImages[name]; ok {
		return img
	}
	return placeholderImage
}

func fallbackVehicle(id, name, category string, price int64, seats int, fuel string, rating float64, luggage int) Vehicle {
	return Vehicle{
		ID:          id,
		Name:        name,
		Category:    category,
		PricePerDay: price,
		ImageURL:    DefaultImage(name),
		Rating:      RatingSummary{Average: rating},
		Features:    FeatureSet{Seats: seats, Luggage: luggage, Fuel: fuel, Transmission: "Automatic"},
		Status:      VehicleAvailable,
	}
}

// FallbackFleet is served when the catalog backend is empty or unreachable.
func FallbackFleet() []Vehicle {
	return []Vehicle{
		fallbackVehicle("fb-1", "Toyota Yaris Ativ", "เก๋ง", 899, 5, "เบนซิน", 4.9, 3),
		fallbackVehicle("fb-2", "Honda City", "เก๋ง", 999, 5, "เบนซิน", 4.8, 4),
		fallbackVehicle("fb-3", "Toyota Fortuner", "SUV", 2500, 7, "ดีเซล", 4.9, 5),
		fallbackVehicle("fb-4", "Toyota Hilux Revo", "กระบะ", 1500, 5, "ดีเซล", 4.7, 6),
		fallbackVehicle("fb-5", "Honda HR-V", "อีโค", 1800, 5, "ไฮบริด", 4.8, 4),
		fallbackVehicle("fb-6", "Nissan Almera", "เก๋ง", 800, 5, "เบนซิน", 4.6, 3),
		fallbackVehicle("fb-7", "MG ZS EV", "อีโค", 2200, 5, "ไฟฟ้า", 4.7, 4),
		fallbackVehicle("fb-8", "Isuzu D-Max", "กระบะ", 1400, 5, "ดีเซล", 4.8, 6),
	}
}

// FallbackVehicle looks a vehicle up in the fallback fleet.
func FallbackVehicle(id string) (Vehicle, bool) {
	for _, v := range FallbackFleet() {
		if v.ID == id {
			return v, true
		}
	}
	return Vehicle{}, false
}

// AllCategories reports whether category means "no filter".
func AllCategories(category string) bool {
	switch strings.TrimSpace(category) {
	case "", "All", "ทั้งหมด":
		return true
	default:
		return false
	}
}

// FilterByCategory keeps the vehicles in category.
func FilterByCategory(vehicles []Vehicle, category string) []Vehicle {
	if AllCategories(category) {
		return vehicles
	}
	out := make([]Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if v.Category == category {
			out = append(out, v)
		}
	}
	return out
}
