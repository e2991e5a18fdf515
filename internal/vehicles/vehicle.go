package vehicles

import (
	"cmp"

	"github.com/gmbtravels/gmbservice/internal/auth"
	"github.com/gmbtravels/gmbservice/internal/crud"
	"github.com/gmbtravels/gmbservice/internal/docstore"
	"github.com/gmbtravels/gmbservice/internal/telemetry/metrics"
)

const Collection = "vehicles"

type Vehicle struct {
	docstore.Meta  `bson:",inline"`
	Make           string            `json:"make" bson:"make"`
	Model          string            `json:"model" bson:"model"`
	Capacity       int               `json:"capacity" bson:"capacity"`
	VehicleType    string            `json:"vehicleType" bson:"vehicleType"`
	Name           string            `json:"name" bson:"name"`
	Price          float64           `json:"price" bson:"price"`
	PriceUnit      string            `json:"priceUnit" bson:"priceUnit"`
	Features       []string          `json:"features" bson:"features"`
	Specifications map[string]string `json:"specifications" bson:"specifications"`
	Image          string            `json:"image" bson:"image"`
	Badge          string            `json:"badge" bson:"badge"`
	BadgeColor     string            `json:"badgeColor" bson:"badgeColor"`
	IsActive       bool              `json:"isActive" bson:"isActive"`
	IsPopular      bool              `json:"isPopular" bson:"isPopular"`
	SortOrder      int               `json:"sortOrder" bson:"sortOrder"`
	Description    string            `json:"description" bson:"description"`
}

type CreatePayload struct {
	Make           string            `json:"make" validate:"required,notblank,max=100"`
	Model          string            `json:"model" validate:"required,notblank,max=100"`
	Capacity       int               `json:"capacity" validate:"required,min=1,max=100"`
	VehicleType    string            `json:"vehicleType" validate:"max=50"`
	Name           string            `json:"name" validate:"max=200"`
	Price          float64           `json:"price" validate:"gte=0"`
	PriceUnit      string            `json:"priceUnit" validate:"max=50"`
	Features       []string          `json:"features" validate:"omitempty,dive,required,notblank"`
	Specifications map[string]string `json:"specifications"`
	Image          string            `json:"image"`
	Badge          string            `json:"badge" validate:"max=50"`
	BadgeColor     string            `json:"badgeColor" validate:"max=50"`
	IsActive       *bool             `json:"isActive"`
	IsPopular      bool              `json:"isPopular"`
	SortOrder      int               `json:"sortOrder"`
	Description    string            `json:"description" validate:"max=5000"`
}

type UpdatePayload struct {
	Make           *string           `json:"make" validate:"omitnil,notblank,max=100"`
	Model          *string           `json:"model" validate:"omitnil,notblank,max=100"`
	Capacity       *int              `json:"capacity" validate:"omitnil,min=1,max=100"`
	VehicleType    *string           `json:"vehicleType" validate:"omitnil,max=50"`
	Name           *string           `json:"name" validate:"omitnil,max=200"`
	Price          *float64          `json:"price" validate:"omitnil,gte=0"`
	PriceUnit      *string           `json:"priceUnit" validate:"omitnil,max=50"`
	Features       []string          `json:"features" validate:"omitempty,dive,required,notblank"`
	Specifications map[string]string `json:"specifications"`
	Image          *string           `json:"image"`
	Badge          *string           `json:"badge" validate:"omitnil,max=50"`
	BadgeColor     *string           `json:"badgeColor" validate:"omitnil,max=50"`
	IsActive       *bool             `json:"isActive"`
	IsPopular      *bool             `json:"isPopular"`
	SortOrder      *int              `json:"sortOrder"`
	Description    *string           `json:"description" validate:"omitnil,max=5000"`
}

var Resource = crud.Resource[Vehicle, CreatePayload, UpdatePayload]{
	Name:        Collection,
	Singular:    "vehicle",
	MutateRoles: auth.AdminOnly,
	Build:       build,
	Public: func(v Vehicle) bool {
		return v.IsActive
	},
	Compare: func(a, b Vehicle) int {
		return cmp.Compare(a.SortOrder, b.SortOrder)
	},
}

func NewHandler(store *docstore.Collection[Vehicle], metricsManager *metrics.Manager) *crud.Handler[Vehicle, CreatePayload, UpdatePayload] {
	return crud.NewHandler(Resource, store, metricsManager)
}

func build(p CreatePayload) Vehicle {
	isActive := true
	if p.IsActive != nil {
		isActive = *p.IsActive
	}

	features := p.Features
	if features == nil {
		features = []string{}
	}
	specs := p.Specifications
	if specs == nil {
		specs = map[string]string{}
	}

	name := p.Name
	if name == "" {
		name = p.Make + " " + p.Model
	}

	return Vehicle{
		Make:           p.Make,
		Model:          p.Model,
		Capacity:       p.Capacity,
		VehicleType:    p.VehicleType,
		Name:           name,
		Price:          p.Price,
		PriceUnit:      p.PriceUnit,
		Features:       features,
		Specifications: specs,
		Image:          p.Image,
		Badge:          p.Badge,
		BadgeColor:     p.BadgeColor,
		IsActive:       isActive,
		IsPopular:      p.IsPopular,
		SortOrder:      p.SortOrder,
		Description:    p.Description,
	}
}
