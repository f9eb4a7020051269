package ads

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticToken(token string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return token, nil }
}

func TestClient_FetchCampaignStats(t *testing.T) {
	var gotAuth, gotDevToken string
	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotDevToken = r.Header.Get("developer-token")
		_ = json.NewDecoder(r.Body).Decode(&gotQuery)

		_, _ = w.Write([]byte(`[
			{"results": [
				{"campaign": {"id": "111", "name": "Fono Tatuapé"},
				 "metrics": {"impressions": "1200", "clicks": "80", "costMicros": "45000000"}},
				{"campaign": {"id": "222", "name": "Psico Infantil"},
				 "metrics": {"impressions": "600", "clicks": "33", "costMicros": "21000000"}}
			]}
		]`))
	}))
	defer srv.Close()

	c, err := NewClient("123-456-7890", "dev-token", staticToken("oauth-token"), nil)
	require.NoError(t, err)
	c.baseURL = srv.URL

	from := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

	stats, err := c.FetchCampaignStats(context.Background(), from, to)
	require.NoError(t, err)

	assert.Equal(t, "Bearer oauth-token", gotAuth)
	assert.Equal(t, "dev-token", gotDevToken)
	assert.Contains(t, gotQuery["query"], "BETWEEN '2026-08-20' AND '2026-08-27'")

	require.Len(t, stats, 2)
	assert.Equal(t, "111", stats[0].CampaignID)
	assert.Equal(t, int64(80), stats[0].Clicks)
	assert.Equal(t, int64(45000000), stats[0].CostMicros)
}

func TestClient_FetchCampaignStats_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "PERMISSION_DENIED"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := NewClient("1234567890", "dev-token", staticToken("tok"), nil)
	require.NoError(t, err)
	c.baseURL = srv.URL

	_, err = c.FetchCampaignStats(context.Background(), time.Now(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestNewClient_StripsCustomerIDDashes(t *testing.T) {
	c, err := NewClient("123-456-7890", "dev-token", staticToken("tok"), nil)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", c.customerID)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("", "dev", staticToken("tok"), nil)
	assert.Error(t, err)

	_, err = NewClient("123", "dev", nil, nil)
	assert.Error(t, err)
}
