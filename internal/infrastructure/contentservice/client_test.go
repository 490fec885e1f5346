package contentservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pathway-overlay/internal/config"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

const samplePayload = `{
  "resource": "IntAct",
  "entities": [
    {"acc": "P04637", "count": 3, "interactors": [
      {"id": 1, "acc": "Q00987", "alias": "MDM2", "score": 0.9},
      {"id": "broken", "acc": 7},
      {"id": 3, "acc": "P04637", "score": 0.7}
    ]},
    "not an entity",
    {"acc": "Q00987", "count": 0, "interactors": []}
  ]
}`

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithRetryWait(time.Millisecond, 2*time.Millisecond)}, opts...)
	c, err := New(srv.URL+"/", opts...)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "ftp://host/x", "/relative"} {
		_, err := New(raw)
		assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest), raw)
	}
}

func TestFetchInteractions_DecodesAndSkips(t *testing.T) {
	var gotPath, gotAccept string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	})

	p, err := c.FetchInteractions(context.Background(), "IntAct", "R-HSA-69620")
	require.NoError(t, err)

	assert.Equal(t, "/ContentService/interactors/IntAct/pathway/R-HSA-69620", gotPath)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "IntAct", p.Resource)
	assert.Equal(t, "R-HSA-69620", p.DiagramID)
	require.Len(t, p.Entities, 2)

	first := p.Entities[0]
	assert.Equal(t, "P04637", first.Accession)
	assert.Equal(t, 3, first.Count)
	require.Len(t, first.Interactions, 2, "undecodable record skipped")
	assert.Equal(t, "Q00987", first.Interactions[0].PartnerAccession)
	assert.Equal(t, "MDM2", first.Interactions[0].PartnerAlias)
	assert.Equal(t, "P04637", first.Interactions[0].SourceAccession)
	assert.Equal(t, int64(3), first.Interactions[1].ID)
	assert.Empty(t, p.Entities[1].Interactions)
}

func TestFetchInteractions_EscapesPath(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"entities":[]}`))
	})
	p, err := c.FetchInteractions(context.Background(), "Mint DB", "R-HSA-1")
	require.NoError(t, err)
	assert.Equal(t, "/ContentService/interactors/Mint%20DB/pathway/R-HSA-1", gotPath)
	assert.Equal(t, "Mint DB", p.Resource, "resource defaults to the requested one")
}

func TestFetchInteractions_RequiresArguments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := c.FetchInteractions(context.Background(), "", "R-HSA-1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestFetchInteractions_MalformedEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	_, err := c.FetchInteractions(context.Background(), "IntAct", "R-HSA-1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeMalformedRecord))
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	ids := map[string]bool{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids[r.Header.Get("X-Request-ID")] = true
		mu.Unlock()
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"entities":[]}`))
	}, WithRetryMax(3))

	_, err := c.FetchInteractions(context.Background(), "IntAct", "R-HSA-1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Len(t, ids, 3, "each attempt carries its own request id")
}

func TestGet_GivesUpAfterRetryMax(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}, WithRetryMax(2))

	_, err := c.FetchInteractions(context.Background(), "IntAct", "R-HSA-1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeResourceLoad))
	assert.Contains(t, err.Error(), "HTTP 503")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGet_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}, WithRetryMax(3))

	_, err := c.FetchInteractions(context.Background(), "Nope", "R-HSA-1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeResourceLoad))
	assert.Contains(t, err.Error(), "HTTP 404 Not Found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGet_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.FetchInteractions(ctx, "IntAct", "R-HSA-1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}

func TestListResources(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ContentService/interactors/psicquic/resources", r.URL.Path)
		_, _ = w.Write([]byte(`[{"name":"IntAct","active":true},{"name":"static","active":true},{"name":"MINT","active":false},{"name":""}]`))
	})

	got, err := c.ListResources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Resource{
		{Name: StaticResource, Active: true},
		{Name: "IntAct", Active: true},
		{Name: "MINT", Active: false},
	}, got)
}

func TestBackoff_Bounded(t *testing.T) {
	c, err := New("http://localhost", WithRetryWait(10*time.Millisecond, 40*time.Millisecond))
	require.NoError(t, err)
	for attempt := 1; attempt <= 8; attempt++ {
		d := c.backoff(attempt)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 50*time.Millisecond, "max plus jitter")
	}
}

func TestNewFromConfig(t *testing.T) {
	c, err := NewFromConfig(config.InteractorsConfig{
		ServerURL: "https://reactome.org",
		RetryMax:  1,
		RetryWait: 100 * time.Millisecond,
		Timeout:   2 * time.Second,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.retryMax)
	assert.Equal(t, 100*time.Millisecond, c.retryWaitMin)
	assert.Equal(t, 800*time.Millisecond, c.retryWaitMax)
	assert.Equal(t, 2*time.Second, c.httpClient.Timeout)
}
