package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dconnect/courier/internal/api"
	"github.com/dconnect/courier/internal/credential"
	"github.com/dconnect/courier/internal/model"
	"github.com/dconnect/courier/internal/session"
	"github.com/dconnect/courier/internal/validate"
)

const demoToken = "demo-carrier-token"

// tripBackend is an in-memory stand-in for the auth and trip endpoints.
type tripBackend struct {
	t     *testing.T
	mu    sync.Mutex
	trips []map[string]any
}

func (b *tripBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/auth/login" {
		var req api.LoginRequest
		assert.NoError(b.t, json.NewDecoder(r.Body).Decode(&req))
		if req.Email != DemoCarrierEmail || req.Password != DemoPassword {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Invalid credentials"}`)
			return
		}
		_, _ = fmt.Fprintf(w, `{"access_token":%q,"user":{"id":"u-c","email":%q,"firstName":"Demo","role":"carrier"}}`,
			demoToken, DemoCarrierEmail)
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+demoToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/trips":
		var trip map[string]any
		assert.NoError(b.t, json.NewDecoder(r.Body).Decode(&trip))
		trip["id"] = len(b.trips) + 1
		trip["status"] = "active"
		b.trips = append(b.trips, trip)
		assert.NoError(b.t, json.NewEncoder(w).Encode(trip))
	case r.Method == http.MethodGet && r.URL.Path == "/trips/my-trips":
		assert.NoError(b.t, json.NewEncoder(w).Encode(map[string]any{
			"data": b.trips, "total": len(b.trips), "page": 1, "lastPage": 1,
		}))
	default:
		b.t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestDemoCarrierPostsTripAndSeesItListed(t *testing.T) {
	srv := httptest.NewServer(&tripBackend{t: t})
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess := session.New(credential.NewWithBackend(keyring.NewArrayKeyring(nil)), logger)
	client := api.NewClient(srv.URL, sess, api.WithLogger(logger))
	v := validate.New()
	svc := NewService(client, sess, v, logger)
	ctx := context.Background()

	user, err := svc.DemoLogin(ctx, DemoCarrierEmail)
	require.NoError(t, err)
	assert.True(t, user.IsCarrier())
	assert.True(t, sess.Active())

	trip := model.NewTrip{
		FromCountry:           "US",
		FromState:             "NY",
		FromCity:              "New York",
		ToCountry:             "GB",
		ToState:               "ENG",
		ToCity:                "London",
		DepartureDate:         "2030-05-01",
		AvailableLuggageSpace: 4.5,
		Notes:                 "aisle seat",
	}
	require.NoError(t, v.Struct(trip))

	created, err := client.CreateTrip(ctx, trip)
	require.NoError(t, err)
	assert.Equal(t, model.ID("1"), created.ID)

	page, err := client.MyTrips(ctx, model.PageRequest{Page: 1, Limit: 5})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	listed := page.Data[0]
	assert.Equal(t, created.ID, listed.ID)
	assert.Equal(t, "London", listed.ToCity)
	assert.Equal(t, "2030-05-01", listed.DepartureDate)
	assert.Equal(t, model.Kilograms(4.5), listed.AvailableLuggageSpace)
}
