package blogs

import (
	"time"

	"github.com/gmbtravels/gmbservice/internal/auth"
	"github.com/gmbtravels/gmbservice/internal/crud"
	"github.com/gmbtravels/gmbservice/internal/docstore"
	"github.com/gmbtravels/gmbservice/internal/telemetry/metrics"
)

const Collection = "blogs"

var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

type Blog struct {
	docstore.Meta `bson:",inline"`
	Title         string     `json:"title" bson:"title"`
	Body          string     `json:"body" bson:"body"`
	Author        string     `json:"author" bson:"author"`
	Excerpt       string     `json:"excerpt" bson:"excerpt"`
	CoverImage    string     `json:"coverImage" bson:"coverImage"`
	Tags          []string   `json:"tags" bson:"tags"`
	IsPublished   bool       `json:"isPublished" bson:"isPublished"`
	PublishedAt   *time.Time `json:"publishedAt" bson:"publishedAt"`
}

type CreatePayload struct {
	Title       string     `json:"title" validate:"required,notblank,max=300"`
	Body        string     `json:"body" validate:"required,notblank"`
	Author      string     `json:"author" validate:"required,notblank,max=200"`
	Excerpt     string     `json:"excerpt" validate:"max=1000"`
	CoverImage  string     `json:"coverImage"`
	Tags        []string   `json:"tags" validate:"omitempty,max=20,dive,required,notblank,max=50"`
	IsPublished bool       `json:"isPublished"`
	PublishedAt *time.Time `json:"publishedAt"`
}

type UpdatePayload struct {
	Title       *string    `json:"title" validate:"omitnil,notblank,max=300"`
	Body        *string    `json:"body" validate:"omitnil,notblank"`
	Author      *string    `json:"author" validate:"omitnil,notblank,max=200"`
	Excerpt     *string    `json:"excerpt" validate:"omitnil,max=1000"`
	CoverImage  *string    `json:"coverImage"`
	Tags        []string   `json:"tags" validate:"omitempty,max=20,dive,required,notblank,max=50"`
	IsPublished *bool      `json:"isPublished"`
	PublishedAt *time.Time `json:"publishedAt"`
}

var Resource = crud.Resource[Blog, CreatePayload, UpdatePayload]{
	Name:         Collection,
	Singular:     "blog",
	MutateRoles:  auth.Editors,
	Build:        build,
	Public:       func(b Blog) bool { return b.IsPublished },
	Compare:      newestFirst,
	BeforeUpdate: stampFirstPublish,
}

func NewHandler(store *docstore.Collection[Blog], metricsManager *metrics.Manager) *crud.Handler[Blog, CreatePayload, UpdatePayload] {
	return crud.NewHandler(Resource, store, metricsManager)
}

func build(p CreatePayload) Blog {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	b := Blog{
		Title:       p.Title,
		Body:        p.Body,
		Author:      p.Author,
		Excerpt:     p.Excerpt,
		CoverImage:  p.CoverImage,
		Tags:        tags,
		IsPublished: p.IsPublished,
		PublishedAt: p.PublishedAt,
	}
	if b.IsPublished && b.PublishedAt == nil {
		t := now()
		b.PublishedAt = &t
	}
	return b
}

// stampFirstPublish sets publishedAt the first time a draft is published.
func stampFirstPublish(current Blog, fields map[string]any) {
	published, ok := fields["isPublished"].(bool)
	if !ok || !published || current.PublishedAt != nil {
		return
	}
	if _, ok := fields["publishedAt"]; ok {
		return
	}
	fields["publishedAt"] = now()
}

// newestFirst orders by publishedAt descending, drafts last.
func newestFirst(a, b Blog) int {
	switch {
	case a.PublishedAt == nil && b.PublishedAt == nil:
		return b.CreatedAt.Compare(a.CreatedAt)
	case a.PublishedAt == nil:
		return 1
	case b.PublishedAt == nil:
		return -1
	default:
		return b.PublishedAt.Compare(*a.PublishedAt)
	}
}
