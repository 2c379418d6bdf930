package endpoints_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/scd/common/endpoints"
	"github.com/twitter/scd/common/stats"
)

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func Test_AdminServer(t *testing.T) {
	stat, _ := stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry, 0)
	stat.Counter("requests").Inc(3)

	s := endpoints.NewAdminServer("", stat)
	s.HandleJSON("/admin/queues", func() interface{} { return []string{"batch"} })
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	code, body := get(t, ts.URL+"/health")
	assert.Equal(t, 200, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, ts.URL+"/admin/metrics.json")
	assert.Equal(t, 200, code)
	assert.Contains(t, body, `"requests":3`)

	_, body = get(t, ts.URL+"/admin/queues")
	assert.JSONEq(t, `["batch"]`, body)

	code, _ = get(t, ts.URL+"/")
	assert.Equal(t, 501, code)
	code, _ = get(t, ts.URL+"/nothing")
	assert.Equal(t, 404, code)
}

func Test_AdminServerStops(t *testing.T) {
	s := endpoints.NewAdminServer("localhost:0", stats.NilStatsReceiver())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Serve(ctx))
}
