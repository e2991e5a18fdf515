package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gmbtravels/gmbservice/internal/telemetry/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrDuplicateID = errors.New("document with the same id already exists")
)

// Backend is the raw document storage. Destinations passed to List, Get and Update are pointers
// (to a slice and a struct respectively) which the backend decodes documents into.
type Backend interface {
	List(ctx context.Context, collection string, dst any) error
	Get(ctx context.Context, collection, id string, dst any) error
	Insert(ctx context.Context, collection, id string, doc any) error
	Update(ctx context.Context, collection, id string, fields map[string]any, dst any) error
	Delete(ctx context.Context, collection, id string) error
	Count(ctx context.Context, collection string) (int64, error)
	Close(ctx context.Context) error
}

// Document is implemented by every stored type through an embedded Meta.
type Document interface {
	DocID() string
	SetDocID(id string)
	SetTimestamps(created, updated time.Time)
}

// Meta holds the fields shared by all documents. Embed it with `bson:",inline"`.
type Meta struct {
	ID        string    `json:"id" bson:"_id"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (m *Meta) DocID() string {
	return m.ID
}

func (m *Meta) SetDocID(id string) {
	m.ID = id
}

func (m *Meta) SetTimestamps(created, updated time.Time) {
	m.CreatedAt = created
	m.UpdatedAt = updated
}

// Collection is a typed view over one backend collection.
type Collection[T any] struct {
	backend Backend
	name    string
	nowFunc func() time.Time
}

func NewCollection[T any](backend Backend, name string) *Collection[T] {
	return &Collection[T]{
		backend: backend,
		name:    name,
		nowFunc: time.Now,
	}
}

func (c *Collection[T]) Name() string {
	return c.name
}

// now is truncated to milliseconds, the precision mongo stores.
func (c *Collection[T]) now() time.Time {
	return c.nowFunc().UTC().Truncate(time.Millisecond)
}

func (c *Collection[T]) List(ctx context.Context) (_ []T, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.list")
	span.SetAttributes(attribute.String("collection", c.name))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	docs := []T{}
	if err := c.backend.List(ctx, c.name, &docs); err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	if docs == nil {
		docs = []T{}
	}
	return docs, nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (_ T, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.get")
	span.SetAttributes(attribute.String("collection", c.name), attribute.String("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var doc T
	if err := c.backend.Get(ctx, c.name, id, &doc); err != nil {
		return doc, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	return doc, nil
}

// Insert stores doc, assigning a new id when it has none. Returns the stored document.
func (c *Collection[T]) Insert(ctx context.Context, doc T) (_ T, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.insert")
	span.SetAttributes(attribute.String("collection", c.name))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	d, ok := any(&doc).(Document)
	if !ok {
		return doc, fmt.Errorf("insert %s: %T does not embed docstore.Meta", c.name, doc)
	}

	if d.DocID() == "" {
		d.SetDocID(uuid.NewString())
	}
	now := c.now()
	d.SetTimestamps(now, now)

	if err := c.backend.Insert(ctx, c.name, d.DocID(), &doc); err != nil {
		return doc, fmt.Errorf("insert %s/%s: %w", c.name, d.DocID(), err)
	}
	return doc, nil
}

// Update merges fields (keyed by json name) into the stored document and returns the result.
func (c *Collection[T]) Update(ctx context.Context, id string, fields map[string]any) (_ T, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.update")
	span.SetAttributes(attribute.String("collection", c.name), attribute.String("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	merged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		switch k {
		case "id", "_id", "createdAt":
			continue
		}
		merged[k] = v
	}
	merged["updatedAt"] = c.now()

	var doc T
	if err := c.backend.Update(ctx, c.name, id, merged, &doc); err != nil {
		return doc, fmt.Errorf("update %s/%s: %w", c.name, id, err)
	}
	return doc, nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.delete")
	span.SetAttributes(attribute.String("collection", c.name), attribute.String("id", id))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := c.backend.Delete(ctx, c.name, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	return nil
}

func (c *Collection[T]) Count(ctx context.Context) (int64, error) {
	count, err := c.backend.Count(ctx, c.name)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return count, nil
}
