package extract

// Restaurant is a structured entity synthesized from free-form model text.
// Fields are read-only after extraction except DistanceMeters, which the
// session recomputes whenever a new location fix arrives.
type Restaurant struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	Phone          string   `json:"phone,omitempty"`
	Website        string   `json:"website,omitempty"`
	Rating         float64  `json:"rating"`
	PriceLevel     int      `json:"price_level"`
	Cuisines       []string `json:"cuisines"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Hours          []string `json:"hours,omitempty"`
	Description    string   `json:"description,omitempty"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

const maxEntities = 5

// Fixed vocabulary gating extraction: no venue word, no entities.
var venueKeywords = []string{
	"restaurant",
	"café",
	"cafe",
	"bistro",
	"diner",
	"eatery",
	"bar",
	"grill",
	"pizzeria",
	"steakhouse",
	"trattoria",
	"brasserie",
}

// Cuisines are matched case-insensitively in text order; entities are never
// synthesized for a cuisine absent from this list.
var cuisineVocabulary = []string{
	"Italian",
	"Mexican",
	"Chinese",
	"Japanese",
	"Indian",
	"Thai",
	"French",
	"Greek",
	"Korean",
	"Vietnamese",
	"Mediterranean",
	"Spanish",
	"Turkish",
	"Lebanese",
	"American",
	"Ethiopian",
	"Peruvian",
}

var nameDescriptors = []string{
	"Kitchen",
	"Table",
	"House",
	"Corner",
	"Garden",
	"Spot",
}

var streetNames = []string{
	"Main Street",
	"Oak Avenue",
	"Market Street",
	"Elm Street",
	"Harbor Boulevard",
	"College Avenue",
}

var defaultHours = []string{
	"Mon-Thu 11:00-22:00",
	"Fri-Sat 11:00-23:00",
	"Sun 12:00-21:00",
}
