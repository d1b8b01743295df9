package scraper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/watersync/internal/config"
)

func TestLogin(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal)

	session, err := client.Login(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, 1, portal.loginPosts)
}

func TestLoginBadCredentials(t *testing.T) {
	portal := newFakePortal(t)
	client, err := New(portal.username, "wrong-password")
	require.NoError(t, err)
	client.SetBaseURL(portal.server.URL)

	_, err = client.Login(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Contains(t, authErr.Message, "success marker")
}

func TestLoginLandingWithoutMarker(t *testing.T) {
	// Credentials accepted but the landing page never shows the marker,
	// e.g. a maintenance interstitial
	portal := newFakePortal(t)
	portal.omitWelcome = true
	client := newTestClient(t, portal)

	_, err := client.Login(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
}

func TestLoginMissingHiddenFields(t *testing.T) {
	portal := newFakePortal(t)
	portal.omitViewState = true
	client := newTestClient(t, portal)

	_, err := client.Login(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "__VIEWSTATE", parseErr.Field)

	// Never POST credentials without a full token set
	assert.Equal(t, 0, portal.loginPosts)
}

func TestLoginSeededCookies(t *testing.T) {
	// A live saved session skips the form login entirely
	portal := newFakePortal(t)
	client := newTestClient(t, portal)
	client.SetCookies([]config.Cookie{
		{Name: "ASP.NET_SessionId", Value: "fake-session", Path: "/"},
	})

	session, err := client.Login(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, 0, portal.loginPosts)
}

func TestLoginStaleCookiesFallThrough(t *testing.T) {
	// Dead saved cookies must not prevent the form login from running
	portal := newFakePortal(t)
	client := newTestClient(t, portal)
	client.SetCookies([]config.Cookie{
		{Name: "ASP.NET_SessionId", Value: "expired-session", Path: "/"},
	})

	session, err := client.Login(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, 1, portal.loginPosts)
}
