package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"holdings-server/internal/holdings"
	"holdings-server/internal/location"
	"holdings-server/internal/middleware"
	"holdings-server/internal/shared/errors"
	"holdings-server/internal/shared/response"
	"holdings-server/internal/view"
)

type HoldingsHandler struct {
	manager *holdings.Manager
	logger  *slog.Logger
}

func NewHoldingsHandler(manager *holdings.Manager, logger *slog.Logger) *HoldingsHandler {
	return &HoldingsHandler{manager: manager, logger: logger}
}

// LocationResponse is a location's own totals followed by its arranged content
type LocationResponse struct {
	Location location.Record `json:"location"`
	Sort     view.Sort       `json:"sort"`
	Rows     []view.Row      `json:"rows"`
}

func (h *HoldingsHandler) service(r *http.Request) (*holdings.Service, error) {
	session := middleware.GetSessionFromContext(r)
	if session == nil {
		return nil, errors.Unauthorized("authentication required")
	}
	return h.manager.Service(session.Character.ID, session.TokenSource()), nil
}

// Load starts a (re)load of the character's holdings. Metadata still pending
// from an earlier load is retried as part of it.
func (h *HoldingsHandler) Load(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("handler", "load_holdings")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	session := middleware.GetSessionFromContext(r)
	if session == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	s := h.manager.Start(session.Character.ID, session.TokenSource())
	response.Success(w, http.StatusAccepted, s.Status())
}

func (h *HoldingsHandler) Status(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("handler", "holdings_status")

	s, err := h.service(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, s.Status())
}

func (h *HoldingsHandler) Roots(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("handler", "holdings_roots")

	s, err := h.service(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, s.Tree().Roots())
}

func (h *HoldingsHandler) Location(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("handler", "holdings_location")

	s, err := h.service(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	query := r.URL.Query()
	sort, err := view.ParseSort(query.Get("sort"), query.Get("dir"))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	key := location.Key(r.PathValue("key"))
	totals, err := s.Tree().Totals(key)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	records, err := s.Tree().Records(key)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, LocationResponse{
		Location: totals,
		Sort:     sort,
		Rows:     view.Arrange(view.Items(records), sort),
	})
}

func (h *HoldingsHandler) Route(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("handler", "holdings_route")

	s, err := h.service(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	route, err := s.Tree().Route(location.Key(r.PathValue("key")))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, route)
}

// Containers lists the location and every container below it, for navigation
func (h *HoldingsHandler) Containers(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("handler", "holdings_containers")

	s, err := h.service(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	containers, err := s.Tree().Containers(location.Key(r.PathValue("key")))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, containers)
}

func (h *HoldingsHandler) Cargo(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("handler", "holdings_cargo")

	s, err := h.service(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	assembled := false
	if v := r.URL.Query().Get("assembled"); v != "" {
		assembled, err = strconv.ParseBool(v)
		if err != nil {
			response.Error(w, r, logger, errors.WrapValidation("invalid assembled flag", err))
			return
		}
	}

	cargo, err := s.Tree().Cargo(location.Key(r.PathValue("key")), assembled)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, cargo)
}
