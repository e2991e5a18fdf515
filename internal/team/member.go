package team

import (
	"cmp"
	"strings"

	"github.com/gmbtravels/gmbservice/internal/auth"
	"github.com/gmbtravels/gmbservice/internal/crud"
	"github.com/gmbtravels/gmbservice/internal/docstore"
	"github.com/gmbtravels/gmbservice/internal/telemetry/metrics"
)

const Collection = "team"

// Member is a person shown on the "our team" page.
type Member struct {
	docstore.Meta `bson:",inline"`
	Name          string `json:"name" bson:"name"`
	Role          string `json:"role" bson:"role"`
	Bio           string `json:"bio" bson:"bio"`
	Photo         string `json:"photo" bson:"photo"`
	SortOrder     int    `json:"sortOrder" bson:"sortOrder"`
	IsActive      bool   `json:"isActive" bson:"isActive"`
}

type CreatePayload struct {
	Name      string `json:"name" validate:"required,notblank,max=200"`
	Role      string `json:"role" validate:"required,notblank,max=200"`
	Bio       string `json:"bio" validate:"max=5000"`
	Photo     string `json:"photo"`
	SortOrder int    `json:"sortOrder"`
	IsActive  *bool  `json:"isActive"`
}

type UpdatePayload struct {
	Name      *string `json:"name" validate:"omitnil,notblank,max=200"`
	Role      *string `json:"role" validate:"omitnil,notblank,max=200"`
	Bio       *string `json:"bio" validate:"omitnil,max=5000"`
	Photo     *string `json:"photo"`
	SortOrder *int    `json:"sortOrder"`
	IsActive  *bool   `json:"isActive"`
}

var Resource = crud.Resource[Member, CreatePayload, UpdatePayload]{
	Name:        Collection,
	Singular:    "team member",
	MutateRoles: auth.Editors,
	Build: func(p CreatePayload) Member {
		isActive := true
		if p.IsActive != nil {
			isActive = *p.IsActive
		}
		return Member{
			Name:      strings.TrimSpace(p.Name),
			Role:      strings.TrimSpace(p.Role),
			Bio:       p.Bio,
			Photo:     p.Photo,
			SortOrder: p.SortOrder,
			IsActive:  isActive,
		}
	},
	Public: func(m Member) bool {
		return m.IsActive
	},
	Compare: func(a, b Member) int {
		if c := cmp.Compare(a.SortOrder, b.SortOrder); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	},
}

func NewHandler(store *docstore.Collection[Member], metricsManager *metrics.Manager) *crud.Handler[Member, CreatePayload, UpdatePayload] {
	return crud.NewHandler(Resource, store, metricsManager)
}
