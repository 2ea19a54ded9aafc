package grpcapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"ambutrack/internal/auth"
	"ambutrack/internal/domain"
	"ambutrack/internal/service"
	"ambutrack/internal/transport"
)

type Server struct {
	svc  *service.Service
	auth *auth.Authenticator
}

func NewServer(svc *service.Service, authenticator *auth.Authenticator) *grpc.Server {
	server := &Server{svc: svc, auth: authenticator}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.authInterceptor()))

	grpcServer.RegisterService(&authServiceDesc, server)
	grpcServer.RegisterService(&incidentServiceDesc, server)
	grpcServer.RegisterService(&responderServiceDesc, server)
	grpcServer.RegisterService(&adminServiceDesc, server)

	return grpcServer
}

func (s *Server) authInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod == "/ambutrack.AuthService/IssueToken" {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		authHeader := ""
		if values := md.Get("authorization"); len(values) > 0 {
			authHeader = values[0]
		}
		token := auth.ExtractBearerToken(authHeader)
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}
		claims, err := s.auth.ParseToken(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		ctx = auth.ContextWithClaims(ctx, claims)
		return handler(ctx, req)
	}
}

func (s *Server) IssueToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	if req.Name == "" || !domain.ValidateRole(req.Role) {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	token, exp, err := s.auth.IssueToken(req.Name, req.Role)
	if err != nil {
		return nil, status.Error(codes.Internal, "token error")
	}
	return &TokenResponse{Token: token, ExpiresAt: exp.Format(time.RFC3339)}, nil
}

func (s *Server) FileSOS(ctx context.Context, req *FileSOSRequest) (*transport.IncidentResponse, error) {
	claims, err := requireRole(ctx, domain.RolePatient)
	if err != nil {
		return nil, err
	}
	incident, err := s.svc.FileSOS(ctx, claims.Subject, toDomainCoordinate(req.Position))
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromIncident(incident)
	return &resp, nil
}

func (s *Server) GetIncident(ctx context.Context, req *IncidentIDRequest) (*transport.IncidentViewResponse, error) {
	claims, err := getClaims(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.svc.GetIncidentView(ctx, claims.Subject, claims.Role, req.IncidentID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromIncidentView(view)
	return &resp, nil
}

func (s *Server) Resolve(ctx context.Context, req *IncidentIDRequest) (*transport.IncidentResponse, error) {
	claims, err := getClaims(ctx)
	if err != nil {
		return nil, err
	}
	incident, err := s.svc.Resolve(ctx, claims.Subject, claims.Role, req.IncidentID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromIncident(incident)
	return &resp, nil
}

func (s *Server) ListOpenIncidents(ctx context.Context, _ *Empty) (*ListIncidentsResponse, error) {
	if _, err := requireRole(ctx, domain.RoleResponder); err != nil {
		return nil, err
	}
	views, err := s.svc.ListOpenIncidents(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := &ListIncidentsResponse{Incidents: make([]transport.IncidentViewResponse, 0, len(views))}
	for _, view := range views {
		resp.Incidents = append(resp.Incidents, transport.FromIncidentView(view))
	}
	return resp, nil
}

func (s *Server) Respond(ctx context.Context, req *IncidentIDRequest) (*transport.IncidentResponse, error) {
	claims, err := requireRole(ctx, domain.RoleResponder)
	if err != nil {
		return nil, err
	}
	incident, err := s.svc.Respond(ctx, claims.Subject, req.IncidentID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromIncident(incident)
	return &resp, nil
}

func (s *Server) ReportPosition(ctx context.Context, req *ReportPositionRequest) (*transport.IncidentResponse, error) {
	claims, err := requireRole(ctx, domain.RoleResponder)
	if err != nil {
		return nil, err
	}
	incident, err := s.svc.ReportPosition(ctx, claims.Subject, req.IncidentID, domain.Coordinate{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := transport.FromIncident(incident)
	return &resp, nil
}

func (s *Server) AdminListIncidents(ctx context.Context, req *ListIncidentsRequest) (*ListIncidentsResponse, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	var status *domain.IncidentStatus
	if req.Status != "" {
		st := domain.IncidentStatus(req.Status)
		status = &st
	}
	views, err := s.svc.AdminListIncidents(ctx, service.IncidentFilter{Status: status, Limit: req.Limit, Offset: req.Offset})
	if err != nil {
		return nil, mapServiceError(err)
	}
	resp := &ListIncidentsResponse{Incidents: make([]transport.IncidentViewResponse, 0, len(views))}
	for _, view := range views {
		resp.Incidents = append(resp.Incidents, transport.FromIncidentView(view))
	}
	return resp, nil
}
