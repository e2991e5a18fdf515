package crud

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/gmbtravels/gmbservice/internal/apperr"
	"github.com/gmbtravels/gmbservice/internal/docstore"
	"github.com/gmbtravels/gmbservice/internal/middleware"
	"github.com/gmbtravels/gmbservice/internal/telemetry/metrics"
	"github.com/gmbtravels/gmbservice/internal/telemetry/tracing"
	"github.com/gmbtravels/gmbservice/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type documentStore[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Insert(ctx context.Context, doc T) (T, error)
	Update(ctx context.Context, id string, fields map[string]any) (T, error)
	Delete(ctx context.Context, id string) error
}

// Resource describes one admin resource: T is the stored document, C the create payload
// and P the update (patch) payload with pointer fields.
type Resource[T, C, P any] struct {
	// Name is the collection and path segment, e.g. "vehicles".
	Name string
	// Singular is used in client messages, e.g. "vehicle".
	Singular string
	// MutateRoles may create, update and delete.
	MutateRoles []string
	// Build turns a validated create payload into a new document.
	Build func(payload C) T
	// Public filters the public list, nil means everything is public.
	Public func(doc T) bool
	// Compare orders lists, nil keeps insertion order.
	Compare func(a, b T) int
	// BeforeUpdate may adjust the merge fields given the current document.
	BeforeUpdate func(current T, fields map[string]any)
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type Handler[T, C, P any] struct {
	resource       Resource[T, C, P]
	store          documentStore[T]
	metricsManager *metrics.Manager
}

func NewHandler[T, C, P any](
	resource Resource[T, C, P],
	store documentStore[T],
	metricsManager *metrics.Manager,
) *Handler[T, C, P] {
	return &Handler[T, C, P]{
		resource:       resource,
		store:          store,
		metricsManager: metricsManager,
	}
}

// SetupRoutes registers the public read routes on publicRouter and the admin routes on adminRouter,
// which is expected to be guarded by the auth middleware already.
func (h *Handler[T, C, P]) SetupRoutes(publicRouter, adminRouter *mux.Router) {
	name := h.resource.Name
	collectionPath := "/" + name
	itemPath := "/" + name + "/{id}"
	guard := middleware.RequireRole(h.resource.MutateRoles...)

	if publicRouter != nil {
		publicRouter.HandleFunc(collectionPath, h.handlePublicList).Methods("GET").Name(name + "-public-list")
		publicRouter.HandleFunc(itemPath, h.handlePublicGet).Methods("GET").Name(name + "-public-get")
	}

	adminRouter.HandleFunc(collectionPath, h.handleList).Methods("GET").Name(name + "-list")
	adminRouter.HandleFunc(itemPath, h.handleGet).Methods("GET").Name(name + "-get")
	adminRouter.Handle(collectionPath, guard(http.HandlerFunc(h.handleCreate))).Methods("POST").Name(name + "-create")
	adminRouter.Handle(itemPath, guard(http.HandlerFunc(h.handleUpdate))).Methods("PUT").Name(name + "-update")
	adminRouter.Handle(itemPath, guard(http.HandlerFunc(h.handleDelete))).Methods("DELETE").Name(name + "-delete")
}

func (h *Handler[T, C, P]) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := h.list(r.Context(), false)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	pkg.WriteSuccess(w, http.StatusOK, docs)
}

func (h *Handler[T, C, P]) handlePublicList(w http.ResponseWriter, r *http.Request) {
	docs, err := h.list(r.Context(), true)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	pkg.WriteSuccess(w, http.StatusOK, docs)
}

func (h *Handler[T, C, P]) list(ctx context.Context, publicOnly bool) (_ []T, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "crud.list")
	span.SetAttributes(
		attribute.String("resource", h.resource.Name),
		attribute.Bool("public", publicOnly),
	)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	docs, err := h.store.List(ctx)
	if err != nil {
		return nil, apperr.Persistence(err)
	}

	if publicOnly && h.resource.Public != nil {
		docs = slices.DeleteFunc(docs, func(doc T) bool {
			return !h.resource.Public(doc)
		})
	}
	if h.resource.Compare != nil {
		slices.SortStableFunc(docs, h.resource.Compare)
	}

	return docs, nil
}

func (h *Handler[T, C, P]) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	pkg.WriteSuccess(w, http.StatusOK, doc)
}

func (h *Handler[T, C, P]) handlePublicGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.get(r.Context(), mux.Vars(r)["id"])
	if err == nil && h.resource.Public != nil && !h.resource.Public(doc) {
		err = h.notFound()
	}
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	pkg.WriteSuccess(w, http.StatusOK, doc)
}

func (h *Handler[T, C, P]) get(ctx context.Context, id string) (T, error) {
	doc, err := h.store.Get(ctx, id)
	if err != nil {
		return doc, h.storeError(err)
	}
	return doc, nil
}

func (h *Handler[T, C, P]) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "crud.create")
	span.SetAttributes(attribute.String("resource", h.resource.Name))
	var err error
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var payload C
	if err = DecodeAndValidate(w, r, &payload); err != nil {
		apperr.WriteHTTP(w, err)
		return
	}

	created, err := h.store.Insert(ctx, h.resource.Build(payload))
	if err != nil {
		err = apperr.Persistence(err)
		apperr.WriteHTTP(w, err)
		return
	}

	h.countOp("create")
	log.Debugf("%s created by [%s]", h.resource.Singular, subject(ctx))
	pkg.WriteSuccess(w, http.StatusCreated, created)
}

func (h *Handler[T, C, P]) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "crud.update")
	id := mux.Vars(r)["id"]
	span.SetAttributes(
		attribute.String("resource", h.resource.Name),
		attribute.String("id", id),
	)
	var err error
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	// an unknown id is a 404 whatever the body holds
	current, err := h.get(ctx, id)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}

	var patch P
	if err = DecodeAndValidate(w, r, &patch); err != nil {
		apperr.WriteHTTP(w, err)
		return
	}

	fields, err := docstore.Fields(&patch)
	if err != nil {
		apperr.WriteHTTP(w, apperr.Persistence(err))
		return
	}
	if len(fields) == 0 {
		err = apperr.Validation("request body must contain at least one field")
		apperr.WriteHTTP(w, err)
		return
	}

	if h.resource.BeforeUpdate != nil {
		h.resource.BeforeUpdate(current, fields)
	}

	updated, err := h.store.Update(ctx, id, fields)
	if err != nil {
		err = h.storeError(err)
		apperr.WriteHTTP(w, err)
		return
	}

	h.countOp("update")
	log.Debugf("%s [%s] updated by [%s]", h.resource.Singular, id, subject(ctx))
	pkg.WriteSuccess(w, http.StatusOK, updated)
}

func (h *Handler[T, C, P]) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "crud.delete")
	id := mux.Vars(r)["id"]
	span.SetAttributes(
		attribute.String("resource", h.resource.Name),
		attribute.String("id", id),
	)
	var err error
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err = h.store.Delete(ctx, id); err != nil {
		err = h.storeError(err)
		apperr.WriteHTTP(w, err)
		return
	}

	h.countOp("delete")
	log.Debugf("%s [%s] deleted by [%s]", h.resource.Singular, id, subject(ctx))
	pkg.WriteSuccess(w, http.StatusOK, DeleteResponse{ID: id, Deleted: true})
}

func (h *Handler[T, C, P]) notFound() error {
	return apperr.NotFound(h.resource.Singular + " not found")
}

func (h *Handler[T, C, P]) storeError(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return h.notFound()
	}
	return apperr.Persistence(err)
}

func (h *Handler[T, C, P]) countOp(op string) {
	if h.metricsManager != nil {
		h.metricsManager.CounterDocumentOps.WithLabelValues(h.resource.Name, op).Inc()
	}
}
