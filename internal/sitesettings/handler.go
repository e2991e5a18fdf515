package sitesettings

import (
	"errors"
	"net/http"

	"github.com/gmbtravels/gmbservice/internal/apperr"
	"github.com/gmbtravels/gmbservice/internal/auth"
	"github.com/gmbtravels/gmbservice/internal/crud"
	"github.com/gmbtravels/gmbservice/internal/docstore"
	"github.com/gmbtravels/gmbservice/internal/middleware"
	"github.com/gmbtravels/gmbservice/internal/telemetry/metrics"
	"github.com/gmbtravels/gmbservice/internal/telemetry/tracing"
	"github.com/gmbtravels/gmbservice/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	store          settingsStore
	metricsManager *metrics.Manager
}

func NewHandler(store settingsStore, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		store:          store,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(publicRouter, adminRouter *mux.Router) {
	publicRouter.HandleFunc("/site-settings", handler.handleGet).Methods("GET").Name("site-settings-public-get")
	adminRouter.HandleFunc("/site-settings", handler.handleGet).Methods("GET").Name("site-settings-get")
	adminRouter.Handle(
		"/site-settings",
		middleware.RequireRole(auth.AdminOnly...)(http.HandlerFunc(handler.handleUpdate)),
	).Methods("PUT").Name("site-settings-update")
}

func (handler *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "siteSettingsHandler.get")
	var err error
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	settings, err := handler.store.Get(ctx, SettingsID)
	if err != nil {
		apperr.WriteHTTP(w, storeError(err))
		return
	}

	pkg.WriteSuccess(w, http.StatusOK, settings)
}

func (handler *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "siteSettingsHandler.update")
	var err error
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var patch UpdatePayload
	if err = crud.DecodeAndValidate(w, r, &patch); err != nil {
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

	updated, err := handler.store.Update(ctx, SettingsID, fields)
	if err != nil {
		apperr.WriteHTTP(w, storeError(err))
		return
	}

	if handler.metricsManager != nil {
		handler.metricsManager.CounterDocumentOps.WithLabelValues(Collection, "update").Inc()
	}
	log.Debugf("site settings updated: %d fields", len(fields))
	pkg.WriteSuccess(w, http.StatusOK, updated)
}

func storeError(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.NotFound("site settings not found")
	}
	return apperr.Persistence(err)
}
