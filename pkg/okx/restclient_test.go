package okx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"swapcollector/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleHistoryBuildsQuery(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"instId": q.Get("instId"),
			"bar":    q.Get("bar"),
			"limit":  q.Get("limit"),
			"before": q.Get("before"),
		}
		w.Write([]byte(`{"code":"0","msg":"","data":[["1699999980000","2000","2010","1995","2005","12.5","0","250000"]]}`))
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, 5*time.Second)
	rows, err := client.CandleHistory(context.Background(), "xaut", market.Timeframe5Min, 1500, "1699999980000")
	require.NoError(t, err)

	assert.Equal(t, "XAUT-USDT-SWAP", gotQuery["instId"])
	assert.Equal(t, "5m", gotQuery["bar"])
	assert.Equal(t, "1500", gotQuery["limit"])
	assert.Equal(t, "1699999980000", gotQuery["before"])

	require.Len(t, rows, 1)
	assert.Equal(t, "2005", rows[0][4])
}

func TestCandleHistoryOmitsEmptyCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("before"))
		w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, 5*time.Second)
	rows, err := client.CandleHistory(context.Background(), "xaut", market.Timeframe1Min, 1500, "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCandleHistoryRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, 5*time.Second)
	_, err := client.CandleHistory(context.Background(), "xaut", market.Timeframe1Min, 1500, "")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestCandleHistoryUpstreamErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, 5*time.Second)
	_, err := client.CandleHistory(context.Background(), "xaut", market.Timeframe1Min, 1500, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "51001")
}

func TestCandleHistoryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRESTClient(srv.URL, 5*time.Second)
	_, err := client.CandleHistory(context.Background(), "xaut", market.Timeframe1Min, 1500, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
}
