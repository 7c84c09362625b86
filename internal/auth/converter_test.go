package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/token-auth-service/internal/domain"
	"github.com/spec-kit/token-auth-service/internal/observability"
)

type directoryMock struct {
	mock.Mock
}

func (m *directoryMock) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	args := m.Called(ctx, username)
	account, _ := args.Get(0).(*domain.Account)
	return account, args.Error(1)
}

type directoryFunc func(ctx context.Context, username string) (*domain.Account, error)

func (f directoryFunc) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return f(ctx, username)
}

func usableAdmin() *domain.Account {
	return &domain.Account{
		Username:   "admin",
		Enabled:    true,
		Privileges: append([]string(nil), domain.DataPrivileges...),
	}
}

type converterFixture struct {
	converter *RequestAuthenticationConverter
	codec     *TokenCodec
	directory *directoryMock
	metrics   *observability.Metrics
}

func newConverterFixture(t *testing.T) converterFixture {
	t.Helper()
	validator, codec, metrics := newTestValidator(t)
	directory := &directoryMock{}
	t.Cleanup(func() { directory.AssertExpectations(t) })
	return converterFixture{
		converter: NewRequestAuthenticationConverter(validator, directory, time.Second, zap.NewNop(), metrics),
		codec:     codec,
		directory: directory,
		metrics:   metrics,
	}
}

func (f converterFixture) token(t *testing.T, subject string, validity time.Duration) string {
	t.Helper()
	now := time.Now()
	token, err := f.codec.Encode(TokenClaims{
		Subject:    subject,
		IssuedAt:   now,
		NotBefore:  now,
		Expiration: now.Add(validity),
	})
	require.NoError(t, err)
	return token
}

func TestConvert_ValidBearerToken(t *testing.T) {
	f := newConverterFixture(t)
	f.directory.On("FindByUsername", mock.Anything, "admin").Return(usableAdmin(), nil).Once()

	outcome, err := f.converter.Convert(context.Background(), "Bearer "+f.token(t, "admin", time.Hour))
	require.NoError(t, err)
	require.True(t, outcome.Authenticated())
	assert.Equal(t, "admin", outcome.Principal.Subject)
	assert.ElementsMatch(t, domain.DataPrivileges, outcome.Principal.Authorities)
	assert.Equal(t, ReasonNone, outcome.Reason)
	assert.EqualValues(t, 1, f.metrics.AuthCount(observability.AuthRequestAuthenticated))
}

func TestConvert_SchemeIsCaseInsensitive(t *testing.T) {
	f := newConverterFixture(t)
	f.directory.On("FindByUsername", mock.Anything, "admin").Return(usableAdmin(), nil).Twice()
	token := f.token(t, "admin", time.Hour)

	for _, header := range []string{"bearer " + token, "BEARER\t" + token} {
		outcome, err := f.converter.Convert(context.Background(), header)
		require.NoError(t, err)
		assert.True(t, outcome.Authenticated(), header)
	}
}

func TestConvert_MissingOrForeignCredentials(t *testing.T) {
	f := newConverterFixture(t)

	tests := []struct {
		header string
		reason RejectReason
	}{
		{header: "", reason: ReasonMissingCredentials},
		{header: "   ", reason: ReasonMissingCredentials},
		{header: "Basic abc123", reason: ReasonInvalidScheme},
		{header: "Bearer-token", reason: ReasonInvalidScheme},
		{header: "Token abc", reason: ReasonInvalidScheme},
	}

	for _, tt := range tests {
		outcome, err := f.converter.Convert(context.Background(), tt.header)
		require.NoError(t, err, tt.header)
		assert.False(t, outcome.Authenticated(), tt.header)
		assert.Equal(t, tt.reason, outcome.Reason, tt.header)
	}
	f.directory.AssertNotCalled(t, "FindByUsername", mock.Anything, mock.Anything)
}

func TestConvert_BearerWithoutToken(t *testing.T) {
	f := newConverterFixture(t)

	for _, header := range []string{"Bearer", "Bearer ", "bearer    "} {
		_, err := f.converter.Convert(context.Background(), header)
		require.ErrorIs(t, err, ErrEmptyToken, "header %q", header)
	}
}

func TestConvert_ExpiredTokenIsRejected(t *testing.T) {
	f := newConverterFixture(t)

	outcome, err := f.converter.Convert(context.Background(), "Bearer "+f.token(t, "admin", -time.Minute))
	require.NoError(t, err)
	assert.False(t, outcome.Authenticated())
	assert.Equal(t, ReasonExpiredOrInvalid, outcome.Reason)
	assert.EqualValues(t, 1, f.metrics.AuthCount(observability.AuthTokenExpired))
	assert.EqualValues(t, 1, f.metrics.AuthCount(observability.AuthRequestRejected+":"+string(ReasonExpiredOrInvalid)))
}

func TestConvert_TamperedTokenIsRejected(t *testing.T) {
	f := newConverterFixture(t)

	outcome, err := f.converter.Convert(context.Background(), "Bearer invalid.token.string")
	require.NoError(t, err)
	assert.False(t, outcome.Authenticated())
	assert.Equal(t, ReasonExpiredOrInvalid, outcome.Reason)
}

func TestConvert_TokenWithoutSubject(t *testing.T) {
	f := newConverterFixture(t)

	outcome, err := f.converter.Convert(context.Background(), "Bearer "+f.token(t, "", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ReasonExpiredOrInvalid, outcome.Reason)
}

func TestConvert_UnknownSubject(t *testing.T) {
	f := newConverterFixture(t)
	f.directory.On("FindByUsername", mock.Anything, "ghost").Return(nil, domain.ErrAccountNotFound).Once()

	outcome, err := f.converter.Convert(context.Background(), "Bearer "+f.token(t, "ghost", time.Hour))
	require.NoError(t, err)
	assert.False(t, outcome.Authenticated())
	assert.Equal(t, ReasonAccountNotFound, outcome.Reason)
}

func TestConvert_AccountDisabledAfterIssue(t *testing.T) {
	f := newConverterFixture(t)
	admin := usableAdmin()
	disabled := usableAdmin()
	disabled.Enabled = false

	f.directory.On("FindByUsername", mock.Anything, "admin").Return(admin, nil).Once()
	f.directory.On("FindByUsername", mock.Anything, "admin").Return(disabled, nil).Once()

	token := f.token(t, "admin", time.Hour)

	outcome, err := f.converter.Convert(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.True(t, outcome.Authenticated())

	outcome, err = f.converter.Convert(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.False(t, outcome.Authenticated())
	assert.Equal(t, ReasonAccountUnusable, outcome.Reason)
}

func TestConvert_AuthoritiesComeFromDirectory(t *testing.T) {
	f := newConverterFixture(t)
	reader := usableAdmin()
	reader.Privileges = []string{domain.PrivilegeReadData}
	f.directory.On("FindByUsername", mock.Anything, "admin").Return(reader, nil).Once()

	outcome, err := f.converter.Convert(context.Background(), "Bearer "+f.token(t, "admin", time.Hour))
	require.NoError(t, err)
	require.True(t, outcome.Authenticated())
	assert.True(t, outcome.Principal.HasAuthority(domain.PrivilegeReadData))
	assert.False(t, outcome.Principal.HasAuthority(domain.PrivilegeDeleteData))
}

func TestConvert_DirectoryFailure(t *testing.T) {
	f := newConverterFixture(t)
	f.directory.On("FindByUsername", mock.Anything, "admin").Return(nil, errors.New("connection refused")).Once()

	_, err := f.converter.Convert(context.Background(), "Bearer "+f.token(t, "admin", time.Hour))
	require.ErrorIs(t, err, ErrDependencyUnavailable)
}

func TestConvert_DirectoryTimeout(t *testing.T) {
	validator, codec, metrics := newTestValidator(t)
	slow := directoryFunc(func(ctx context.Context, _ string) (*domain.Account, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	converter := NewRequestAuthenticationConverter(validator, slow, 20*time.Millisecond, zap.NewNop(), metrics)

	token, err := codec.Encode(TokenClaims{Subject: "admin", Expiration: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	start := time.Now()
	_, err = converter.Convert(context.Background(), "Bearer "+token)
	require.ErrorIs(t, err, ErrDependencyUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConvert_TokenExpiringBetweenChecks(t *testing.T) {
	f := newConverterFixture(t)
	issued := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	token, err := f.codec.Encode(TokenClaims{Subject: "admin", IssuedAt: issued, Expiration: issued.Add(time.Hour)})
	require.NoError(t, err)

	// Count the clock reads of one expiration check, then move the clock past
	// exp for every read after that.
	reads := 0
	f.codec.now = func() time.Time {
		reads++
		return issued
	}
	require.False(t, f.converter.validator.HasExpired(token))
	checkReads := reads

	reads = 0
	f.codec.now = func() time.Time {
		reads++
		if reads > checkReads {
			return issued.Add(2 * time.Hour)
		}
		return issued
	}

	outcome, err := f.converter.Convert(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.False(t, outcome.Authenticated())
	assert.Equal(t, ReasonExpiredOrInvalid, outcome.Reason)
	f.directory.AssertNotCalled(t, "FindByUsername", mock.Anything, mock.Anything)
}

func TestPrincipal_HasAuthorityOnNil(t *testing.T) {
	var principal *Principal
	assert.False(t, principal.HasAuthority(domain.PrivilegeReadData))
}
