package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestValidateIdentity(t *testing.T) {
	id := uuid.New()

	got, err := ValidateIdentity(id.String(), " Consultant ")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: id, Role: RoleConsultant}, got)

	_, err = ValidateIdentity("not-a-uuid", "client")
	assert.ErrorIs(t, err, ErrInvalidSubject)

	_, err = ValidateIdentity(uuid.Nil.String(), "client")
	assert.ErrorIs(t, err, ErrInvalidSubject)

	_, err = ValidateIdentity(id.String(), "provider")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestManagesConsultant(t *testing.T) {
	consultant := uuid.New()

	assert.True(t, Identity{UserID: consultant, Role: RoleConsultant}.ManagesConsultant(consultant))
	assert.False(t, Identity{UserID: uuid.New(), Role: RoleConsultant}.ManagesConsultant(consultant))
	assert.False(t, Identity{UserID: consultant, Role: RoleClient}.ManagesConsultant(consultant))
	assert.True(t, Identity{UserID: uuid.New(), Role: RoleAdmin}.ManagesConsultant(consultant))
}

func TestTokens_IssueVerify(t *testing.T) {
	tokens := NewTokens("secret")
	user := uuid.New()

	raw, err := tokens.Issue(user, RoleClient, time.Hour)
	require.NoError(t, err)

	id, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, user, id.UserID)
	assert.Equal(t, RoleClient, id.Role)

	_, err = NewTokens("other").Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_Expired(t *testing.T) {
	tokens := NewTokens("secret")
	issued := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }

	raw, err := tokens.Issue(uuid.New(), RoleClient, time.Minute)
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = tokens.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{Role: "client", RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokens("secret").Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_UnknownRole(t *testing.T) {
	tokens := NewTokens("secret")
	raw, err := tokens.Issue(uuid.New(), Role("root"), time.Hour)
	require.NoError(t, err)

	_, err = tokens.Verify(raw)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestTokens_EmptySecret(t *testing.T) {
	empty := NewTokens("")

	_, err := empty.Issue(uuid.New(), RoleAdmin, time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)

	claims := Claims{Role: string(RoleAdmin), RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte{})
	require.NoError(t, err)

	_, err = empty.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

type verifierFunc func(string) (Identity, error)

func (f verifierFunc) Verify(raw string) (Identity, error) { return f(raw) }

func TestUnaryInterceptor(t *testing.T) {
	want := Identity{UserID: uuid.New(), Role: RoleClient}
	icpt := UnaryInterceptor(verifierFunc(func(raw string) (Identity, error) {
		if raw != "good" {
			return Identity{}, errors.New("bad token")
		}
		return want, nil
	}))

	var seen Identity
	handler := func(ctx context.Context, _ any) (any, error) {
		id, err := FromContext(ctx)
		seen = id
		return nil, err
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/booking.v1.BookingService/GetBooking"}
	withAuth := func(v string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", v))
	}

	_, err := icpt(withAuth("Bearer good"), nil, info, handler)
	require.NoError(t, err)
	assert.Equal(t, want, seen)

	_, err = icpt(context.Background(), nil, info, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = icpt(withAuth("Bearer bad"), nil, info, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = icpt(withAuth("good"), nil, info, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	health := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	_, err = icpt(context.Background(), nil, health, func(ctx context.Context, _ any) (any, error) {
		return "ok", nil
	})
	assert.NoError(t, err)
}

func TestFromContext_Missing(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrMissingIdentity)
}
