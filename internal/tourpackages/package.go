package tourpackages

import (
	"cmp"
	"slices"

	"github.com/gmbtravels/gmbservice/internal/auth"
	"github.com/gmbtravels/gmbservice/internal/crud"
	"github.com/gmbtravels/gmbservice/internal/docstore"
	"github.com/gmbtravels/gmbservice/internal/telemetry/metrics"
)

const Collection = "packages"

type ItineraryDay struct {
	Day     int    `json:"day" bson:"day" validate:"min=1"`
	Title   string `json:"title" bson:"title" validate:"required,notblank,max=200"`
	Details string `json:"details" bson:"details" validate:"max=5000"`
}

// TourPackage is a bookable multi-day tour.
type TourPackage struct {
	docstore.Meta `bson:",inline"`
	Name          string         `json:"name" bson:"name"`
	Description   string         `json:"description" bson:"description"`
	Price         float64        `json:"price" bson:"price"`
	DurationDays  int            `json:"durationDays" bson:"durationDays"`
	Itinerary     []ItineraryDay `json:"itinerary" bson:"itinerary"`
	Inclusions    []string       `json:"inclusions" bson:"inclusions"`
	Exclusions    []string       `json:"exclusions" bson:"exclusions"`
	Image         string         `json:"image" bson:"image"`
	IsActive      bool           `json:"isActive" bson:"isActive"`
}

type CreatePayload struct {
	Name         string         `json:"name" validate:"required,notblank,max=200"`
	Description  string         `json:"description" validate:"required,notblank,max=10000"`
	Price        *float64       `json:"price" validate:"required,gte=0"`
	DurationDays int            `json:"durationDays" validate:"gte=0,lte=60"`
	Itinerary    []ItineraryDay `json:"itinerary" validate:"omitempty,dive"`
	Inclusions   []string       `json:"inclusions" validate:"omitempty,dive,required,notblank"`
	Exclusions   []string       `json:"exclusions" validate:"omitempty,dive,required,notblank"`
	Image        string         `json:"image"`
	IsActive     *bool          `json:"isActive"`
}

type UpdatePayload struct {
	Name         *string        `json:"name" validate:"omitnil,notblank,max=200"`
	Description  *string        `json:"description" validate:"omitnil,notblank,max=10000"`
	Price        *float64       `json:"price" validate:"omitnil,gte=0"`
	DurationDays *int           `json:"durationDays" validate:"omitnil,gte=0,lte=60"`
	Itinerary    []ItineraryDay `json:"itinerary" validate:"omitempty,dive"`
	Inclusions   []string       `json:"inclusions" validate:"omitempty,dive,required,notblank"`
	Exclusions   []string       `json:"exclusions" validate:"omitempty,dive,required,notblank"`
	Image        *string        `json:"image"`
	IsActive     *bool          `json:"isActive"`
}

var Resource = crud.Resource[TourPackage, CreatePayload, UpdatePayload]{
	Name:        Collection,
	Singular:    "package",
	MutateRoles: auth.AdminOnly,
	Build:       build,
	Public: func(p TourPackage) bool {
		return p.IsActive
	},
	Compare: func(a, b TourPackage) int {
		return cmp.Compare(a.Price, b.Price)
	},
	BeforeUpdate: func(_ TourPackage, fields map[string]any) {
		if itinerary, ok := fields["itinerary"].([]ItineraryDay); ok {
			fields["itinerary"] = sortedItinerary(itinerary)
		}
	},
}

func NewHandler(store *docstore.Collection[TourPackage], metricsManager *metrics.Manager) *crud.Handler[TourPackage, CreatePayload, UpdatePayload] {
	return crud.NewHandler(Resource, store, metricsManager)
}

func build(p CreatePayload) TourPackage {
	isActive := true
	if p.IsActive != nil {
		isActive = *p.IsActive
	}

	itinerary := sortedItinerary(p.Itinerary)
	durationDays := p.DurationDays
	if durationDays == 0 && len(itinerary) > 0 {
		durationDays = itinerary[len(itinerary)-1].Day
	}

	return TourPackage{
		Name:         p.Name,
		Description:  p.Description,
		Price:        *p.Price,
		DurationDays: durationDays,
		Itinerary:    itinerary,
		Inclusions:   orEmpty(p.Inclusions),
		Exclusions:   orEmpty(p.Exclusions),
		Image:        p.Image,
		IsActive:     isActive,
	}
}

func sortedItinerary(days []ItineraryDay) []ItineraryDay {
	if days == nil {
		return []ItineraryDay{}
	}
	sorted := slices.Clone(days)
	slices.SortStableFunc(sorted, func(a, b ItineraryDay) int {
		return cmp.Compare(a.Day, b.Day)
	})
	return sorted
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
