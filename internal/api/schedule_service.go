package api

import (
	"context"
	"fmt"
	"strings"

	"gymbody/internal/access"
	"gymbody/internal/booking"
	"gymbody/internal/catalog"
	"gymbody/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	scheduleServiceName   = "gymbody.schedule.v1.ScheduleService"
	methodListSessions    = "/" + scheduleServiceName + "/ListSessions"
	methodGetAvailability = "/" + scheduleServiceName + "/GetAvailability"
)

type ListSessionsRequest struct {
	GymID    string `json:"gym_id"`
	Role     string `json:"role"`
	Date     string `json:"date"`
	Trainer  string `json:"trainer"`
	Category string `json:"category"`
}

type ListSessionsResponse struct {
	Sessions []*models.ClassSession `json:"sessions"`
	Dates    []string               `json:"dates"`
	Trainers []string               `json:"trainers"`
}

type GetAvailabilityRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type GetAvailabilityResponse struct {
	Availability models.Availability `json:"availability"`
}

// ScheduleServer is the read-only schedule API offered to partner systems.
type ScheduleServer interface {
	ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error)
	GetAvailability(ctx context.Context, req *GetAvailabilityRequest) (*GetAvailabilityResponse, error)
}

var scheduleServiceDesc = grpc.ServiceDesc{
	ServiceName: scheduleServiceName,
	HandlerType: (*ScheduleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSessions", Handler: listSessionsHandler},
		{MethodName: "GetAvailability", Handler: getAvailabilityHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterScheduleServer(s grpc.ServiceRegistrar, srv ScheduleServer) {
	s.RegisterService(&scheduleServiceDesc, srv)
}

func listSessionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListSessionsRequest)
	if err := decodeRequest(dec, in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return encodeResponse(srv.(ScheduleServer).ListSessions(ctx, req.(*ListSessionsRequest)))
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListSessions}
	return interceptor(ctx, in, info, handler)
}

func getAvailabilityHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetAvailabilityRequest)
	if err := decodeRequest(dec, in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return encodeResponse(srv.(ScheduleServer).GetAvailability(ctx, req.(*GetAvailabilityRequest)))
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetAvailability}
	return interceptor(ctx, in, info, handler)
}

// ScheduleClient calls ScheduleServer over a connection.
type ScheduleClient struct {
	cc grpc.ClientConnInterface
}

func NewScheduleClient(cc grpc.ClientConnInterface) *ScheduleClient {
	return &ScheduleClient{cc: cc}
}

func (c *ScheduleClient) ListSessions(ctx context.Context, in *ListSessionsRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error) {
	out := new(ListSessionsResponse)
	if err := c.invoke(ctx, methodListSessions, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ScheduleClient) GetAvailability(ctx context.Context, in *GetAvailabilityRequest, opts ...grpc.CallOption) (*GetAvailabilityResponse, error) {
	out := new(GetAvailabilityResponse)
	if err := c.invoke(ctx, methodGetAvailability, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ScheduleClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	req, err := toStruct(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, method, req, resp, opts...); err != nil {
		return err
	}
	if err := fromStruct(resp, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// ScheduleService serves the schedule from the catalog and the booking store.
type ScheduleService struct {
	catalog *catalog.Service
	booking *booking.Service
}

func NewScheduleService(catalogSvc *catalog.Service, bookingSvc *booking.Service) *ScheduleService {
	return &ScheduleService{catalog: catalogSvc, booking: bookingSvc}
}

// ListSessions applies the visibility rules of the requested role. Without a role the
// caller sees what a member would.
func (s *ScheduleService) ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error) {
	gymID := strings.TrimSpace(req.GymID)
	if gymID == "" {
		return nil, status.Error(codes.InvalidArgument, "gym_id is required")
	}
	if _, err := s.catalog.Gym(gymID); err != nil {
		return nil, status.Error(codeFor(err), err.Error())
	}

	role := models.Role(strings.TrimSpace(req.Role))
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "unknown role %q", role)
	}
	category := models.Category(strings.TrimSpace(req.Category))
	if category != "" && !category.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "unknown category %q", category)
	}

	caps := access.For(role)
	all, err := s.catalog.Sessions(ctx, gymID, catalog.Query{Caps: caps})
	if err != nil {
		return nil, status.Error(codeFor(err), err.Error())
	}
	sessions := catalog.Filter(all, s.catalog.Query(gymID, catalog.Query{
		Caps:     caps,
		Date:     strings.TrimSpace(req.Date),
		Trainer:  strings.TrimSpace(req.Trainer),
		Category: category,
	}))

	return &ListSessionsResponse{
		Sessions: sessions,
		Dates:    catalog.Dates(all),
		Trainers: catalog.Trainers(all),
	}, nil
}

func (s *ScheduleService) GetAvailability(ctx context.Context, req *GetAvailabilityRequest) (*GetAvailabilityResponse, error) {
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	avail, err := s.booking.Availability(ctx, strings.TrimSpace(req.UserID), id)
	if err != nil {
		return nil, status.Error(codeFor(err), err.Error())
	}
	return &GetAvailabilityResponse{Availability: avail}, nil
}
