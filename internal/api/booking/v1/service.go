package bookingv1

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "booking.v1.BookingService"

// BookingServiceServer is implemented by the scheduling gRPC server.
type BookingServiceServer interface {
	GenerateSlots(context.Context, *GenerateSlotsRequest) (*SlotsResponse, error)
	ListAvailableSlots(context.Context, *ListAvailableSlotsRequest) (*SlotsResponse, error)
	CreateSlot(context.Context, *CreateSlotRequest) (*SlotResponse, error)
	UpsertAvailabilityRule(context.Context, *UpsertRuleRequest) (*RuleResponse, error)
	ListAvailabilityRules(context.Context, *ListRulesRequest) (*RulesResponse, error)
	CreateBooking(context.Context, *CreateBookingRequest) (*BookingResponse, error)
	ConfirmBooking(context.Context, *ConfirmBookingRequest) (*BookingResponse, error)
	CancelBooking(context.Context, *CancelBookingRequest) (*BookingResponse, error)
	CompleteBooking(context.Context, *CompleteBookingRequest) (*BookingResponse, error)
	RescheduleBooking(context.Context, *RescheduleBookingRequest) (*BookingResponse, error)
	GetBooking(context.Context, *GetBookingRequest) (*BookingResponse, error)
	ListBookings(context.Context, *ListBookingsRequest) (*ListBookingsResponse, error)
	BookingHistory(context.Context, *BookingHistoryRequest) (*BookingHistoryResponse, error)
	BulkCancelWindow(context.Context, *BulkCancelRequest) (*BulkCancelResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GenerateSlots", BookingServiceServer.GenerateSlots),
		unary("ListAvailableSlots", BookingServiceServer.ListAvailableSlots),
		unary("CreateSlot", BookingServiceServer.CreateSlot),
		unary("UpsertAvailabilityRule", BookingServiceServer.UpsertAvailabilityRule),
		unary("ListAvailabilityRules", BookingServiceServer.ListAvailabilityRules),
		unary("CreateBooking", BookingServiceServer.CreateBooking),
		unary("ConfirmBooking", BookingServiceServer.ConfirmBooking),
		unary("CancelBooking", BookingServiceServer.CancelBooking),
		unary("CompleteBooking", BookingServiceServer.CompleteBooking),
		unary("RescheduleBooking", BookingServiceServer.RescheduleBooking),
		unary("GetBooking", BookingServiceServer.GetBooking),
		unary("ListBookings", BookingServiceServer.ListBookings),
		unary("BookingHistory", BookingServiceServer.BookingHistory),
		unary("BulkCancelWindow", BookingServiceServer.BulkCancelWindow),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/v1/booking.go",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unary[Req, Resp any](name string, call func(BookingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BookingServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BookingServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
