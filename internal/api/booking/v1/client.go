package bookingv1

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls BookingService with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GenerateSlots(ctx context.Context, in *GenerateSlotsRequest, opts ...grpc.CallOption) (*SlotsResponse, error) {
	return invoke[SlotsResponse](ctx, c, "GenerateSlots", in, opts)
}

func (c *Client) ListAvailableSlots(ctx context.Context, in *ListAvailableSlotsRequest, opts ...grpc.CallOption) (*SlotsResponse, error) {
	return invoke[SlotsResponse](ctx, c, "ListAvailableSlots", in, opts)
}

func (c *Client) CreateSlot(ctx context.Context, in *CreateSlotRequest, opts ...grpc.CallOption) (*SlotResponse, error) {
	return invoke[SlotResponse](ctx, c, "CreateSlot", in, opts)
}

func (c *Client) UpsertAvailabilityRule(ctx context.Context, in *UpsertRuleRequest, opts ...grpc.CallOption) (*RuleResponse, error) {
	return invoke[RuleResponse](ctx, c, "UpsertAvailabilityRule", in, opts)
}

func (c *Client) ListAvailabilityRules(ctx context.Context, in *ListRulesRequest, opts ...grpc.CallOption) (*RulesResponse, error) {
	return invoke[RulesResponse](ctx, c, "ListAvailabilityRules", in, opts)
}

func (c *Client) CreateBooking(ctx context.Context, in *CreateBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c, "CreateBooking", in, opts)
}

func (c *Client) ConfirmBooking(ctx context.Context, in *ConfirmBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c, "ConfirmBooking", in, opts)
}

func (c *Client) CancelBooking(ctx context.Context, in *CancelBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c, "CancelBooking", in, opts)
}

func (c *Client) CompleteBooking(ctx context.Context, in *CompleteBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c, "CompleteBooking", in, opts)
}

func (c *Client) RescheduleBooking(ctx context.Context, in *RescheduleBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c, "RescheduleBooking", in, opts)
}

func (c *Client) GetBooking(ctx context.Context, in *GetBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c, "GetBooking", in, opts)
}

func (c *Client) ListBookings(ctx context.Context, in *ListBookingsRequest, opts ...grpc.CallOption) (*ListBookingsResponse, error) {
	return invoke[ListBookingsResponse](ctx, c, "ListBookings", in, opts)
}

func (c *Client) BookingHistory(ctx context.Context, in *BookingHistoryRequest, opts ...grpc.CallOption) (*BookingHistoryResponse, error) {
	return invoke[BookingHistoryResponse](ctx, c, "BookingHistory", in, opts)
}

func (c *Client) BulkCancelWindow(ctx context.Context, in *BulkCancelRequest, opts ...grpc.CallOption) (*BulkCancelResponse, error) {
	return invoke[BulkCancelResponse](ctx, c, "BulkCancelWindow", in, opts)
}
