package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() ServiceInfo {
	return ServiceInfo{
		Name:   "test-instance",
		Type:   "_test-files-transfer._tcp",
		Domain: DefaultDomain,
		Port:   8975,
		Text:   map[string]string{"id": "1234"},
	}
}

func TestMDNSAdapter_AnnounceStops(t *testing.T) {
	// Skip mDNS tests in CI environment as they may be unreliable
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	adapter := &MDNSAdapter{}

	errCh := make(chan error, 1)
	go func() { errCh <- adapter.Announce(ctx, testService()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err, "cancellation ends the announcement cleanly")
	case <-time.After(5 * time.Second):
		t.Fatal("Service announcement did not complete in time")
	}
}

func TestMDNSAdapter_Discover(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapter := &MDNSAdapter{}
	info := testService()

	announceErr := make(chan error, 1)
	go func() { announceErr <- adapter.Announce(ctx, info) }()
	select {
	case err := <-announceErr:
		t.Skipf("multicast unavailable: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	queryCtx, queryCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer queryCancel()

	// The TXT record may arrive in a later snapshot than the service itself.
	var seen bool
	for result := range adapter.Discover(queryCtx, info.FQDN()) {
		if result.Error != nil {
			t.Skipf("multicast unavailable: %v", result.Error)
		}
		for _, found := range result.Services {
			if found.Name != info.Name {
				continue
			}
			seen = true
			assert.Equal(t, info.Port, found.Port)
			if found.Text["id"] != "" {
				assert.Equal(t, "1234", found.Text["id"])
				return
			}
		}
	}
	if !seen {
		t.Skip("service never resolved; multicast is probably unavailable")
	}
	t.Fatal("service resolved without its TXT record")
}

// staticAdapter replays canned discovery results.
type staticAdapter struct {
	results []DiscoveryResult
}

func (s *staticAdapter) Announce(ctx context.Context, _ ServiceInfo) error {
	<-ctx.Done()
	return nil
}

func (s *staticAdapter) Discover(ctx context.Context, _ string) <-chan DiscoveryResult {
	ch := make(chan DiscoveryResult, len(s.results))
	for _, r := range s.results {
		ch <- r
	}
	close(ch)
	return ch
}

func TestFindFirst(t *testing.T) {
	receiver := ServiceInfo{Name: "peer", Addr: net.ParseIP("192.168.1.20"), Port: 9000}
	boom := errors.New("boom")

	tests := []struct {
		name    string
		results []DiscoveryResult
		want    ServiceInfo
		wantErr error
	}{
		{"skips empty snapshots", []DiscoveryResult{{}, {Services: []ServiceInfo{receiver}}}, receiver, nil},
		{"lookup error", []DiscoveryResult{{Error: boom}}, ServiceInfo{}, boom},
		{"nothing found", nil, ServiceInfo{}, ErrNoService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindFirst(context.Background(), &staticAdapter{results: tt.results}, "x")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Name, got.Name)
			assert.True(t, tt.want.Addr.Equal(got.Addr))
		})
	}
}

func TestServiceInfo_FQDN(t *testing.T) {
	assert.Equal(t, "_files-transfer._tcp.local.", ServiceInfo{Type: DefaultServerType, Domain: DefaultDomain}.FQDN())
}
