package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"ambutrack/internal/transport"
)

type Empty struct{}

type ListIncidentsResponse struct {
	Incidents []transport.IncidentViewResponse `json:"incidents"`
}

type AuthService interface {
	IssueToken(context.Context, *TokenRequest) (*TokenResponse, error)
}

type IncidentService interface {
	FileSOS(context.Context, *FileSOSRequest) (*transport.IncidentResponse, error)
	GetIncident(context.Context, *IncidentIDRequest) (*transport.IncidentViewResponse, error)
	Resolve(context.Context, *IncidentIDRequest) (*transport.IncidentResponse, error)
}

type ResponderService interface {
	ListOpenIncidents(context.Context, *Empty) (*ListIncidentsResponse, error)
	Respond(context.Context, *IncidentIDRequest) (*transport.IncidentResponse, error)
	ReportPosition(context.Context, *ReportPositionRequest) (*transport.IncidentResponse, error)
}

type AdminService interface {
	AdminListIncidents(context.Context, *ListIncidentsRequest) (*ListIncidentsResponse, error)
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: "ambutrack.AuthService",
	HandlerType: (*AuthService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "IssueToken",
			Handler:    issueTokenHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ambutrack.proto",
}

var incidentServiceDesc = grpc.ServiceDesc{
	ServiceName: "ambutrack.IncidentService",
	HandlerType: (*IncidentService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FileSOS", Handler: fileSOSHandler},
		{MethodName: "GetIncident", Handler: getIncidentHandler},
		{MethodName: "Resolve", Handler: resolveHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ambutrack.proto",
}

var responderServiceDesc = grpc.ServiceDesc{
	ServiceName: "ambutrack.ResponderService",
	HandlerType: (*ResponderService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListOpenIncidents", Handler: listOpenIncidentsHandler},
		{MethodName: "Respond", Handler: respondHandler},
		{MethodName: "ReportPosition", Handler: reportPositionHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ambutrack.proto",
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: "ambutrack.AdminService",
	HandlerType: (*AdminService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListIncidents", Handler: adminListIncidentsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ambutrack.proto",
}

func issueTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TokenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).IssueToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ambutrack.AuthService/IssueToken"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).IssueToken(ctx, req.(*TokenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func fileSOSHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FileSOSRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).FileSOS(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ambutrack.IncidentService/FileSOS"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).FileSOS(ctx, req.(*FileSOSRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getIncidentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(IncidentIDRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).GetIncident(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ambutrack.IncidentService/GetIncident"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).GetIncident(ctx, req.(*IncidentIDRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func resolveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(IncidentIDRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ambutrack.IncidentService/Resolve"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Resolve(ctx, req.(*IncidentIDRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listOpenIncidentsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).ListOpenIncidents(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ambutrack.ResponderService/ListOpenIncidents"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).ListOpenIncidents(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func respondHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(IncidentIDRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Respond(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ambutrack.ResponderService/Respond"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Respond(ctx, req.(*IncidentIDRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func reportPositionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReportPositionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).ReportPosition(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ambutrack.ResponderService/ReportPosition"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).ReportPosition(ctx, req.(*ReportPositionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func adminListIncidentsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListIncidentsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).AdminListIncidents(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ambutrack.AdminService/ListIncidents"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).AdminListIncidents(ctx, req.(*ListIncidentsRequest))
	}
	return interceptor(ctx, in, info, handler)
}
