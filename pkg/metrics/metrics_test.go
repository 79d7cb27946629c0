package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPCollectorsRegistered(t *testing.T) {
	r := New("store")
	r.HTTPRequests.WithLabelValues("GET", "/books", "200").Inc()
	r.HTTPRequests.WithLabelValues("GET", "/books", "200").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.HTTPRequests.WithLabelValues("GET", "/books", "200")))
}

func TestMustRegisterCustomCollector(t *testing.T) {
	r := New("gateway")
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: Namespace, Name: "custom_total", Help: "custom"})
	r.MustRegister(c)
	c.Add(3)

	n, err := testutil.GatherAndCount(r.Gatherer(), "bookshelf_custom_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHandlerExposition(t *testing.T) {
	r := New("store")
	r.HTTPRequests.WithLabelValues("POST", "/books", "201").Inc()

	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `bookshelf_http_requests_total{method="POST",route="/books",service="store",status="201"} 1`), string(body))
}
