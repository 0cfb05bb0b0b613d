package supabase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blogify/domain/events"
	pkgerrors "blogify/pkg/errors"
)

type mockAuthAPI struct {
	mock.Mock
}

func (m *mockAuthAPI) SignInWithPassword(email, password string) (*Grant, error) {
	args := m.Called(email, password)
	if g := args.Get(0); g != nil {
		return g.(*Grant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthAPI) Refresh(refreshToken string) (*Grant, error) {
	args := m.Called(refreshToken)
	if g := args.Get(0); g != nil {
		return g.(*Grant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthAPI) Logout(accessToken string) error {
	return m.Called(accessToken).Error(0)
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func recordEvents(p *Provider) (*[]events.AuthStateChange, func()) {
	var got []events.AuthStateChange
	sub := p.OnAuthStateChange(func(c events.AuthStateChange) { got = append(got, c) })
	return &got, sub.Unsubscribe
}

func TestProvider_SignInFillsUserFromClaims(t *testing.T) {
	api := &mockAuthAPI{}
	token := signedToken(t, jwt.MapClaims{
		"sub":           "user-1",
		"email":         "ada@example.com",
		"exp":           testNow.Add(time.Hour).Unix(),
		"user_metadata": map[string]any{"name": "Ada"},
	})
	api.On("SignInWithPassword", "ada@example.com", "pw").Return(&Grant{AccessToken: token, RefreshToken: "r1"}, nil)

	p := NewProvider(api, zap.NewNop(), WithClock(func() time.Time { return testNow }))
	got, stop := recordEvents(p)
	defer stop()

	session, err := p.SignInWithPassword(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.User.ID)
	assert.Equal(t, "Ada", session.User.Name)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), session.ExpiresAt.Unix())

	require.Len(t, *got, 2)
	assert.Equal(t, events.AuthInitialSession, (*got)[0].Event)
	assert.Nil(t, (*got)[0].Session)
	assert.Equal(t, events.AuthSignedIn, (*got)[1].Event)
	assert.Equal(t, token, (*got)[1].Session.AccessToken)
	api.AssertExpectations(t)
}

func TestProvider_SignInRejected(t *testing.T) {
	api := &mockAuthAPI{}
	api.On("SignInWithPassword", "a@b.c", "bad").Return(nil, errors.New("invalid_grant"))

	p := NewProvider(api, zap.NewNop())
	_, err := p.SignInWithPassword(context.Background(), "a@b.c", "bad")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
	assert.Nil(t, pkgerrors.ErrInvalidCredentials.Cause)

	session, err := p.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestProvider_GetSessionRefreshesNearExpiry(t *testing.T) {
	api := &mockAuthAPI{}
	api.On("Refresh", "r1").Return(&Grant{
		AccessToken:  "fresh",
		RefreshToken: "r2",
		ExpiresAt:    testNow.Add(time.Hour),
		UserID:       "user-1",
	}, nil).Once()

	initial := &events.Session{
		AccessToken:  "stale",
		RefreshToken: "r1",
		ExpiresAt:    testNow.Add(30 * time.Second),
		User:         events.SessionUser{ID: "user-1", Email: "ada@example.com"},
	}
	p := NewProvider(api, zap.NewNop(),
		WithInitialSession(initial),
		WithClock(func() time.Time { return testNow }),
	)
	got, stop := recordEvents(p)
	defer stop()

	session, err := p.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", session.AccessToken)
	assert.Equal(t, "ada@example.com", session.User.Email)

	// Fresh token is well outside the margin: no second refresh.
	session, err = p.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", session.AccessToken)

	require.Len(t, *got, 2)
	assert.Equal(t, events.AuthTokenRefreshed, (*got)[1].Event)
	api.AssertExpectations(t)
}

func TestProvider_RefreshFailure(t *testing.T) {
	t.Run("still valid keeps token", func(t *testing.T) {
		api := &mockAuthAPI{}
		api.On("Refresh", "r1").Return(nil, errors.New("network down"))

		p := NewProvider(api, zap.NewNop(),
			WithInitialSession(&events.Session{AccessToken: "tok", RefreshToken: "r1", ExpiresAt: testNow.Add(10 * time.Second)}),
			WithClock(func() time.Time { return testNow }),
		)
		session, err := p.GetSession(context.Background())
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "tok", session.AccessToken)
	})

	t.Run("expired signs out", func(t *testing.T) {
		api := &mockAuthAPI{}
		api.On("Refresh", "r1").Return(nil, errors.New("refresh_token_not_found"))

		p := NewProvider(api, zap.NewNop(),
			WithInitialSession(&events.Session{AccessToken: "tok", RefreshToken: "r1", ExpiresAt: testNow.Add(-time.Second)}),
			WithClock(func() time.Time { return testNow }),
		)
		got, stop := recordEvents(p)
		defer stop()

		session, err := p.GetSession(context.Background())
		require.NoError(t, err)
		assert.Nil(t, session)
		require.Len(t, *got, 2)
		assert.Equal(t, events.AuthSignedOut, (*got)[1].Event)
	})
}

func nearExpiry() *events.Session {
	return &events.Session{
		AccessToken:  "stale",
		RefreshToken: "r1",
		ExpiresAt:    testNow.Add(30 * time.Second),
		User:         events.SessionUser{ID: "user-1"},
	}
}

func blockingRefresh(api *mockAuthAPI, grant *Grant) (started, release chan struct{}) {
	started, release = make(chan struct{}), make(chan struct{})
	api.On("Refresh", "r1").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(grant, nil).Once()
	return started, release
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh never started")
	}
}

func TestProvider_ConcurrentCallersShareOneRefresh(t *testing.T) {
	api := &mockAuthAPI{}
	started, release := blockingRefresh(api, &Grant{AccessToken: "fresh", RefreshToken: "r2", ExpiresAt: testNow.Add(time.Hour)})

	p := NewProvider(api, zap.NewNop(),
		WithInitialSession(nearExpiry()),
		WithClock(func() time.Time { return testNow }),
	)

	results := make(chan *events.Session, 2)
	for i := 0; i < 2; i++ {
		go func() {
			session, err := p.GetSession(context.Background())
			assert.NoError(t, err)
			results <- session
		}()
	}
	waitFor(t, started)

	// The provider stays usable while the refresh is outstanding.
	sub := p.OnAuthStateChange(func(events.AuthStateChange) {})
	defer sub.Unsubscribe()
	assert.Equal(t, 1, p.Listeners())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.GetSession(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	for i := 0; i < 2; i++ {
		session := <-results
		require.NotNil(t, session)
		assert.Equal(t, "fresh", session.AccessToken)
	}
	api.AssertNumberOfCalls(t, "Refresh", 1)
}

func TestProvider_SignOutDuringRefreshWins(t *testing.T) {
	api := &mockAuthAPI{}
	started, release := blockingRefresh(api, &Grant{AccessToken: "fresh", RefreshToken: "r2", ExpiresAt: testNow.Add(time.Hour)})
	api.On("Logout", "stale").Return(nil).Once()

	p := NewProvider(api, zap.NewNop(),
		WithInitialSession(nearExpiry()),
		WithClock(func() time.Time { return testNow }),
	)

	result := make(chan *events.Session, 1)
	go func() {
		session, err := p.GetSession(context.Background())
		assert.NoError(t, err)
		result <- session
	}()
	waitFor(t, started)

	require.NoError(t, p.SignOut(context.Background()))
	close(release)

	assert.Nil(t, <-result)
	session, err := p.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)
	api.AssertExpectations(t)
}

func TestProvider_SignOutIsLocalEvenIfServerFails(t *testing.T) {
	api := &mockAuthAPI{}
	api.On("Logout", "tok").Return(errors.New("500"))

	p := NewProvider(api, zap.NewNop(), WithInitialSession(&events.Session{AccessToken: "tok"}))
	got, stop := recordEvents(p)
	defer stop()

	require.NoError(t, p.SignOut(context.Background()))
	session, err := p.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)

	require.Len(t, *got, 2)
	assert.Equal(t, events.AuthSignedOut, (*got)[1].Event)
	assert.Nil(t, (*got)[1].Session)
	api.AssertExpectations(t)
}

func TestProvider_UnsubscribeOnce(t *testing.T) {
	api := &mockAuthAPI{}
	api.On("Logout", mock.Anything).Return(nil).Maybe()

	p := NewProvider(api, zap.NewNop())
	calls := 0
	sub := p.OnAuthStateChange(func(events.AuthStateChange) { calls++ })
	other := p.OnAuthStateChange(func(events.AuthStateChange) {})
	assert.Equal(t, 2, p.Listeners())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 1, p.Listeners())

	require.NoError(t, p.SignOut(context.Background()))
	assert.Equal(t, 1, calls, "only the initial event before unsubscribing")

	other.Unsubscribe()
	assert.Equal(t, 0, p.Listeners())
}

func TestRequireSession(t *testing.T) {
	p := NewProvider(&mockAuthAPI{}, zap.NewNop())
	_, err := RequireSession(context.Background(), p)
	assert.True(t, IsNotSignedIn(err))

	p = NewProvider(&mockAuthAPI{}, zap.NewNop(), WithInitialSession(&events.Session{AccessToken: "tok"}))
	session, err := RequireSession(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "tok", session.AccessToken)
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	_, err := parseAccessToken("not-a-jwt")
	assert.Error(t, err)
}
