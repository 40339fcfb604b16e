package catalog

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeGetter returns canned bodies keyed by URL path suffix and records
// every request so tests can assert call counts and parameters.
type fakeGetter struct {
	bodies map[string][]byte
	calls  []url.Values
}

func (g *fakeGetter) Get(_ context.Context, rawURL string, params url.Values, _ http.Header) []byte {
	g.calls = append(g.calls, params)
	for suffix, body := range g.bodies {
		if len(rawURL) >= len(suffix) && rawURL[len(rawURL)-len(suffix):] == suffix {
			return body
		}
	}
	return nil
}

func TestSearchVolumes(t *testing.T) {
	g := &fakeGetter{bodies: map[string][]byte{
		"/search/": []byte(`{"results":[
			{"id":2127,"name":"Amazing Spider-Man","publisher":{"name":"Marvel"},
			 "start_year":"1963","image":{"original_url":"http://img/asm.jpg"}},
			{"id":9000,"name":"Amazing Spider-Man (2018)","publisher":{"name":"Marvel"},"start_year":"2018"}
		]}`),
	}}
	c := NewClient(g, "test-key", zerolog.Nop())

	vols := c.SearchVolumes(context.Background(), "Amazing Spider-Man")

	require.Len(t, vols, 2)
	require.Equal(t, Volume{
		ExternalID: "2127",
		Name:       "Amazing Spider-Man",
		Publisher:  "Marvel",
		StartYear:  1963,
		CoverURL:   "http://img/asm.jpg",
	}, vols[0])

	require.Len(t, g.calls, 1)
	require.Equal(t, "volume", g.calls[0].Get("resources"))
	require.Equal(t, "Amazing Spider-Man", g.calls[0].Get("query"))
}

func TestSearchVolumesWithoutKey(t *testing.T) {
	g := &fakeGetter{}
	c := NewClient(g, "", zerolog.Nop())

	require.Nil(t, c.SearchVolumes(context.Background(), "Batman"))
	require.Empty(t, g.calls, "missing credential must not hit the network")
}

func TestIssuesForVolume(t *testing.T) {
	g := &fakeGetter{bodies: map[string][]byte{
		"/issues/": []byte(`{"results":[
			{"id":111,"issue_number":"100","cover_date":"1971-09-01"},
			{"id":112,"issue_number":"101","cover_date":"1971-10-01","image":{"original_url":"http://img/101.jpg"}}
		]}`),
	}}
	c := NewClient(g, "test-key", zerolog.Nop())

	issues := c.IssuesForVolume(context.Background(), "2127")

	require.Len(t, issues, 2)
	require.Equal(t, "101", issues[1].IssueNumber)
	require.Equal(t, "112", issues[1].ExternalID)
	require.Equal(t, "volume:2127", g.calls[0].Get("filter"))
	require.Equal(t, "issue_number:asc", g.calls[0].Get("sort"))
}

func TestIssuesForVolumeFetchFailure(t *testing.T) {
	c := NewClient(&fakeGetter{}, "test-key", zerolog.Nop())
	require.Nil(t, c.IssuesForVolume(context.Background(), "2127"))
}
