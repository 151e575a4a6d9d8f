package kurzy

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedDoc = `{
	"banka": "CNB",
	"den": "20231018",
	"kurzy": {
		"EUR": {"kod": "EUR", "nazev": "EUR", "jednotka": 1, "dev_stred": 24.50, "dev_nakup": 24.1},
		"JPY": {"kod": "JPY", "nazev": "JPY", "jednotka": 100, "dev_stred": "15,42"},
		"USD": {"jednotka": 1, "dev_stred": 22.4, "extra": {"nested": [1, 2, 3]}},
		"CZK": {"kod": "CZK", "nazev": "CZK", "jednotka": 1, "dev_stred": 1}
	}
}`

func TestDecode(t *testing.T) {
	tbl, err := DecodeBytes([]byte(feedDoc))
	require.NoError(t, err)

	assert.Equal(t, "CNB", tbl.Bank())
	require.Equal(t, 4, tbl.Len())

	eur, ok := tbl.Lookup("EUR")
	require.True(t, ok)
	assert.Equal(t, "EUR", eur.Code)
	assert.Equal(t, 1, eur.Unit)
	assert.True(t, decimal.RequireFromString("24.5").Equal(eur.Mid))

	jpy, ok := tbl.Lookup("JPY")
	require.True(t, ok)
	assert.Equal(t, 100, jpy.Unit)
	assert.True(t, decimal.RequireFromString("15.42").Equal(jpy.Mid))

	usd, ok := tbl.Lookup("USD")
	require.True(t, ok, "name falls back to the object key")
	assert.Equal(t, "USD", usd.Code)
}

func TestDecode_Array(t *testing.T) {
	tbl, err := DecodeBytes([]byte(`{"kurzy": [
		{"kod": "EUR", "nazev": "EUR", "jednotka": 1, "dev_stred": 24.5},
		{"kod": "GBP", "nazev": "GBP", "jednotka": 1, "dev_stred": 28.1}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.Empty(t, tbl.Bank())
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not an object", `[1, 2]`},
		{"truncated", `{"kurzy": {"EUR": {"dev_stred": 24`},
		{"missing kurzy", `{"banka": "CNB"}`},
		{"kurzy scalar", `{"kurzy": 5}`},
		{"bad mid rate", `{"kurzy": {"EUR": {"dev_stred": "abc"}}}`},
		{"bad unit", `{"kurzy": {"EUR": {"jednotka": true}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBytes([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	tbl, err := DecodeBytes([]byte(feedDoc))
	require.NoError(t, err)

	var e jx.Encoder
	Encode(&e, tbl)

	again, err := Decode(bytes.NewReader(e.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, tbl.Bank(), again.Bank())
	want, got := tbl.All(), again.All()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Code, got[i].Code)
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.Equal(t, want[i].Unit, got[i].Unit)
		assert.True(t, want[i].Mid.Equal(got[i].Mid), "%s mid", want[i].Name)
	}
}

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/json/meny/b6.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(feedDoc))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/json/meny/b6.json", srv.Client())
	tbl, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, tbl.Len())
}

func TestClient_FetchErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, srv.Client()).Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status 502")
	})

	t.Run("malformed payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>maintenance</html>`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, srv.Client()).Fetch(context.Background())
		require.Error(t, err)
	})

	t.Run("network", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()

		_, err := NewClient(url, nil).Fetch(context.Background())
		require.Error(t, err)
	})
}

func TestNewClient_DefaultURL(t *testing.T) {
	assert.Equal(t, DefaultURL, NewClient("", nil).URL())
}
