package eligibility

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openballot/voting-core/config"
	"github.com/openballot/voting-core/db/model"
)

func newMembershipServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/members/member-1/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"is_member": true, "is_admin": false}`)
	})
	mux.HandleFunc("/members/admin-1/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"is_member": true, "is_admin": true}`)
	})
	mux.HandleFunc("/members/count", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"member_count": 128, "admin_count": 4}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(baseURL string) *Client {
	return NewClient(&config.EligibilityConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
	})
}

func TestResolve(t *testing.T) {
	server := newMembershipServer(t)
	client := newTestClient(server.URL)

	membership, err := client.Resolve(context.Background(), "member-1")
	require.NoError(t, err)
	require.Equal(t, "member-1", membership.Subject)
	require.True(t, membership.IsMember)
	require.False(t, membership.IsAdmin)

	membership, err = client.Resolve(context.Background(), "admin-1")
	require.NoError(t, err)
	require.True(t, membership.IsAdmin)
}

func TestResolveUnknownSubject(t *testing.T) {
	server := newMembershipServer(t)
	client := newTestClient(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Cancelled context stops the retry loop instead of exhausting attempts
	// against the 404.
	_, err := client.Resolve(ctx, "stranger")
	require.Error(t, err)
}

func TestResolveRetriesTransientFailure(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"is_member": true}`)
	}))
	defer server.Close()
	client := newTestClient(server.URL)

	membership, err := client.Resolve(context.Background(), "member-1")
	require.NoError(t, err)
	require.True(t, membership.IsMember)
	require.Equal(t, 3, attempts)
}

func TestEligibleCount(t *testing.T) {
	server := newMembershipServer(t)
	client := newTestClient(server.URL)
	ctx := context.Background()

	// Unprimed cache reads as zero.
	count, err := client.EligibleCount(ctx, model.PolicyMembers)
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, client.refreshCounts(ctx))

	count, err = client.EligibleCount(ctx, model.PolicyMembers)
	require.NoError(t, err)
	require.Equal(t, int64(128), count)

	count, err = client.EligibleCount(ctx, model.PolicyAll)
	require.NoError(t, err)
	require.Equal(t, int64(128), count)

	count, err = client.EligibleCount(ctx, model.PolicyAdmins)
	require.NoError(t, err)
	require.Equal(t, int64(4), count)
}
