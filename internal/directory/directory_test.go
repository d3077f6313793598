package directory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/loopgate/loopgate/internal/config"
)

// fakeDownloader serves canned bodies per URL and counts calls.
type fakeDownloader struct {
	bodies map[string][]byte
	calls  map[string]int
}

func newFakeDownloader(bodies map[string]string) *fakeDownloader {
	d := &fakeDownloader{bodies: map[string][]byte{}, calls: map[string]int{}}
	for url, body := range bodies {
		d.bodies[url] = []byte(body)
	}
	return d
}

func (d *fakeDownloader) Download(_ context.Context, url string) ([]byte, error) {
	d.calls[url]++
	body, ok := d.bodies[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return body, nil
}

func TestOverrideTable(t *testing.T) {
	table := NewOverrideTable()
	if table.Len() != 0 {
		t.Fatalf("fresh table Len = %d", table.Len())
	}

	upstream := Endpoint{IP: "203.0.113.5", Port: 7400}
	if got := table.Resolve(1, upstream); got != upstream {
		t.Fatalf("unregistered id should resolve upstream, got %+v", got)
	}

	local := Endpoint{IP: "127.0.0.2", Port: 30001}
	table.Set(1, local)
	if got, ok := table.Get(1); !ok || got != local {
		t.Fatalf("Get(1) = %+v, %v", got, ok)
	}
	if got := table.Resolve(1, upstream); got != local {
		t.Fatalf("registered id should resolve redirected, got %+v", got)
	}
	if table.Len() != 1 {
		t.Fatalf("Len = %d", table.Len())
	}

	// Replacement, not accumulation.
	local2 := Endpoint{IP: "127.0.0.2", Port: 30099}
	table.Set(1, local2)
	if got := table.Resolve(1, upstream); got != local2 {
		t.Fatalf("replaced id should resolve the new address, got %+v", got)
	}
	if table.Len() != 1 {
		t.Fatalf("Len after replace = %d", table.Len())
	}
}

func TestParseRoster(t *testing.T) {
	wrapped := []byte(`{"servers":{"1":{"ip":"203.0.113.5","port":7400},"12":{"ip":"203.0.113.6","port":7401}}}`)
	roster, err := ParseRoster(wrapped)
	if err != nil {
		t.Fatalf("ParseRoster wrapped: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("wrapped roster size = %d", len(roster))
	}
	if ep := roster[12]; ep.IP != "203.0.113.6" || ep.Port != 7401 {
		t.Fatalf("roster[12] = %+v", ep)
	}

	bare := []byte(`{"1":{"ip":"203.0.113.5","port":7400}}`)
	roster, err = ParseRoster(bare)
	if err != nil {
		t.Fatalf("ParseRoster bare: %v", err)
	}
	if ep := roster[1]; ep.IP != "203.0.113.5" {
		t.Fatalf("roster[1] = %+v", ep)
	}

	if _, err := ParseRoster([]byte(`{"one":{"ip":"x","port":1}}`)); err == nil {
		t.Fatal("non-numeric id should fail")
	}
	if _, err := ParseRoster([]byte(`[]`)); err == nil {
		t.Fatal("non-object document should fail")
	}
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(Config{Type: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected error for an unknown client type")
	}
	if !strings.Contains(err.Error(), "carrier-pigeon") || !strings.Contains(err.Error(), "http") {
		t.Fatalf("error should name the bad type and the known ones: %v", err)
	}
}

func TestNew_DefaultsToHTTP(t *testing.T) {
	client, err := New(Config{Locator: config.Locator{URL: "http://dir.example.test/r"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()
	if _, ok := client.(*httpClient); !ok {
		t.Fatalf("default client type = %T, want *httpClient", client)
	}
}

func TestHTTPClient_TriesLocatorURLsInOrder(t *testing.T) {
	downloader := newFakeDownloader(map[string]string{
		"http://dir.example.test:8080/fallback": `{"1":{"ip":"203.0.113.5","port":7400}}`,
	})
	client, err := New(Config{
		Locator:    config.Locator{Host: "dir.example.test", Port: 8080, Paths: []string{"/primary", "/fallback"}},
		Downloader: downloader,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	roster, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(roster) != 1 {
		t.Fatalf("roster = %+v", roster)
	}
	if downloader.calls["http://dir.example.test:8080/primary"] != 1 {
		t.Fatal("primary URL should be tried first")
	}
}

func TestHTTPClient_AllURLsFail(t *testing.T) {
	client, err := New(Config{
		Locator:    config.Locator{URL: "http://dir.example.test/r"},
		Downloader: newFakeDownloader(nil),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	_, err = client.Fetch(context.Background())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Fetch = %v, want *FetchError", err)
	}
	if fetchErr.URL != "http://dir.example.test/r" {
		t.Fatalf("FetchError.URL = %q", fetchErr.URL)
	}
}

func TestHTTPClient_CachesRoster(t *testing.T) {
	const url = "http://dir.example.test/r"
	downloader := newFakeDownloader(map[string]string{url: `{"1":{"ip":"203.0.113.5","port":7400}}`})
	client, err := New(Config{
		Locator:    config.Locator{URL: url},
		Downloader: downloader,
		CacheTTL:   time.Minute,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	for i := 0; i < 3; i++ {
		if _, err := client.Fetch(context.Background()); err != nil {
			t.Fatalf("Fetch %d: %v", i, err)
		}
	}
	if downloader.calls[url] != 1 {
		t.Fatalf("expected 1 download with a warm cache, got %d", downloader.calls[url])
	}
}

func TestHTTPClient_RequiresLocator(t *testing.T) {
	if _, err := New(Config{Type: "http"}); err == nil {
		t.Fatal("expected error for an http client without a locator")
	}
}

func TestStaticClient_FetchReturnsCopies(t *testing.T) {
	client, err := New(Config{
		Type:   "static",
		Static: Roster{1: {IP: "203.0.113.5", Port: 7400}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	first, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	first[99] = Endpoint{IP: "tampered"}

	second, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, ok := second[99]; ok {
		t.Fatal("mutating a fetched roster must not affect later fetches")
	}
	if len(second) != 1 {
		t.Fatalf("roster = %+v", second)
	}
}
