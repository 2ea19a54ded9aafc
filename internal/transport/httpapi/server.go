package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ambutrack/internal/auth"
	"ambutrack/internal/domain"
	"ambutrack/internal/route"
	"ambutrack/internal/service"
	"ambutrack/internal/transport"
)

type Server struct {
	svc    *service.Service
	auth   *auth.Authenticator
	routes route.Fetcher
}

// NewServer builds the HTTP API. The optional live handler is mounted at
// /ws/incidents/{id} behind authentication so trackers can stream changes;
// routes serves server-computed paths for thin clients that run no
// tracking session of their own.
func NewServer(svc *service.Service, authenticator *auth.Authenticator, live http.Handler, routes route.Fetcher) http.Handler {
	s := &Server{svc: svc, auth: authenticator, routes: routes}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Post("/auth/token", s.handleIssueToken)

	r.Route("/patient", func(r chi.Router) {
		r.Use(s.requireRole(domain.RolePatient))
		r.Post("/sos", s.handleFileSOS)
		r.Get("/incidents/{id}", s.handleGetIncident)
		r.Get("/incidents/{id}/route", s.handleIncidentRoute)
		r.Post("/incidents/{id}/resolve", s.handleResolve)
	})

	r.Route("/responder", func(r chi.Router) {
		r.Use(s.requireRole(domain.RoleResponder))
		r.Get("/incidents/open", s.handleListOpen)
		r.Get("/incidents/{id}", s.handleGetIncident)
		r.Get("/incidents/{id}/route", s.handleIncidentRoute)
		r.Post("/incidents/{id}/respond", s.handleRespond)
		r.Post("/incidents/{id}/position", s.handleReportPosition)
		r.Post("/incidents/{id}/resolve", s.handleResolve)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireRole(domain.RoleAdmin))
		r.Get("/incidents", s.handleAdminListIncidents)
		r.Get("/incidents/{id}", s.handleGetIncident)
		r.Get("/incidents/{id}/route", s.handleIncidentRoute)
	})

	if live != nil {
		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(domain.RolePatient, domain.RoleResponder, domain.RoleAdmin))
			r.Get("/ws/incidents/{id}", live.ServeHTTP)
		})
	}

	return r
}

func (s *Server) requireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				writeError(w, domain.ErrUnauthorized)
				return
			}
			claims, err := s.auth.ParseToken(token)
			if err != nil {
				writeError(w, domain.ErrUnauthorized)
				return
			}
			if !allowed[claims.Role] {
				writeError(w, domain.ErrForbidden)
				return
			}
			ctx := auth.ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalid)
		return
	}
	if req.Name == "" || !domain.ValidateRole(req.Role) {
		writeError(w, domain.ErrInvalid)
		return
	}
	token, exp, err := s.auth.IssueToken(req.Name, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": exp,
	})
}

func (s *Server) handleFileSOS(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	var req struct {
		Position transport.Coordinate `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalid)
		return
	}
	incident, err := s.svc.FileSOS(r.Context(), claims.Subject, toDomainCoordinate(req.Position))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transport.FromIncident(incident))
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	incidentID := chi.URLParam(r, "id")
	view, err := s.svc.GetIncidentView(r.Context(), claims.Subject, claims.Role, incidentID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromIncidentView(view))
}

// handleIncidentRoute computes the road route between the responder and the
// patient on demand. Access control is the same as for the incident itself;
// without a responder position there is nothing to route to, so the request
// fails the precondition rather than synthesizing a path.
func (s *Server) handleIncidentRoute(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	incidentID := chi.URLParam(r, "id")
	view, err := s.svc.GetIncidentView(r.Context(), claims.Subject, claims.Role, incidentID)
	if err != nil {
		writeError(w, err)
		return
	}
	incident := view.Incident
	if incident.ResponderPosition == nil || domain.IsTerminal(incident.Status) {
		writeError(w, domain.ErrPrecondition)
		return
	}
	state := s.routes.FetchRoute(r.Context(), *incident.ResponderPosition, incident.PatientPosition)
	respondJSON(w, http.StatusOK, transport.FromRouteState(state))
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	incidentID := chi.URLParam(r, "id")
	incident, err := s.svc.Resolve(r.Context(), claims.Subject, claims.Role, incidentID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromIncident(incident))
}

func (s *Server) handleListOpen(w http.ResponseWriter, r *http.Request) {
	views, err := s.svc.ListOpenIncidents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]transport.IncidentViewResponse, 0, len(views))
	for _, view := range views {
		resp = append(resp, transport.FromIncidentView(view))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	incidentID := chi.URLParam(r, "id")
	incident, err := s.svc.Respond(r.Context(), claims.Subject, incidentID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromIncident(incident))
}

func (s *Server) handleReportPosition(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	incidentID := chi.URLParam(r, "id")
	var req struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalid)
		return
	}
	incident, err := s.svc.ReportPosition(r.Context(), claims.Subject, incidentID, domain.Coordinate{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromIncident(incident))
}

func (s *Server) handleAdminListIncidents(w http.ResponseWriter, r *http.Request) {
	statusParam := r.URL.Query().Get("status")
	var status *domain.IncidentStatus
	if statusParam != "" {
		st := domain.IncidentStatus(statusParam)
		status = &st
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	views, err := s.svc.AdminListIncidents(r.Context(), service.IncidentFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]transport.IncidentViewResponse, 0, len(views))
	for _, view := range views {
		resp = append(resp, transport.FromIncidentView(view))
	}
	respondJSON(w, http.StatusOK, resp)
}

func mustClaims(r *http.Request) *auth.Claims {
	claims, _ := auth.ClaimsFromContext(r.Context())
	return claims
}

func toDomainCoordinate(c transport.Coordinate) domain.Coordinate {
	return domain.Coordinate{Lat: c.Lat, Lng: c.Lng}
}
