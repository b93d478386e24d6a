package clients_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classbook/internal/infrastructure/clients"
)

func TestCatalogDefaultPrice(t *testing.T) {
	classID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/classes/"+classID.String()+"/price", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"price": "25.50", "currency": "EUR"})
	}))
	defer srv.Close()

	client := clients.NewCatalogClient(srv.URL)

	price, currency, err := client.DefaultPrice(context.Background(), classID)
	require.NoError(t, err)
	assert.Equal(t, "25.5", price.String())
	assert.Equal(t, "EUR", currency)
}

func TestCatalogMissingEntryIsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := clients.NewCatalogClient(srv.URL)

	price, currency, err := client.DefaultPrice(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, price.IsZero())
	assert.Empty(t, currency)

	account, err := client.PayoutAccount(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, account)
}

func TestCatalogCheckPrerequisites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"satisfied": false})
	}))
	defer srv.Close()

	client := clients.NewCatalogClient(srv.URL)

	ok, err := client.CheckPrerequisites(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCatalogServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := clients.NewCatalogClient(srv.URL)

	_, _, err := client.DefaultPrice(context.Background(), uuid.New())
	assert.Error(t, err)
}
