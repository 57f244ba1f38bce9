package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/brutella/dnssd"
	"github.com/sirupsen/logrus"
)

type MDNSAdapter struct{}

// Announce publishes serviceInfo until ctx is cancelled.
func (m *MDNSAdapter) Announce(ctx context.Context, serviceInfo ServiceInfo) error {
	text := map[string]string{"desc": "Files transfer receiver"}
	for k, v := range serviceInfo.Text {
		text[k] = v
	}

	cfg := dnssd.Config{
		Name:   serviceInfo.Name,
		Type:   serviceInfo.Type,
		Domain: serviceInfo.Domain,
		// mdns will multicast to ip address, so we can leave it nil
		IPs:  nil,
		Text: text,
		Port: serviceInfo.Port,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}

	if _, err = rp.Add(service); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Announce",
		"name":     serviceInfo.Name,
		"port":     serviceInfo.Port,
	}).Info("Announcing receiver over mDNS")

	if err = rp.Respond(ctx); err != nil {
		// Context cancellation is not an error in normal operation
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to respond to mDNS service: %w", err)
	}
	return nil
}

// Discover browses for service and sends a sorted snapshot on every change.
// The channel is closed when ctx ends.
func (m *MDNSAdapter) Discover(ctx context.Context, service string) <-chan DiscoveryResult {
	var (
		mu      sync.Mutex
		entries = make(map[string]ServiceInfo)
		outCh   = make(chan DiscoveryResult, 10)
	)

	sendSnapshot := func() {
		mu.Lock()
		defer mu.Unlock()
		snapshot := make([]ServiceInfo, 0, len(entries))
		for _, entry := range entries {
			snapshot = append(snapshot, entry)
		}
		sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Name < snapshot[j].Name })
		select {
		case outCh <- DiscoveryResult{Services: snapshot}:
		default:
		}
	}

	sendError := func(err error) {
		select {
		case outCh <- DiscoveryResult{Error: err}:
		default:
		}
	}

	key := func(e dnssd.BrowseEntry) string {
		return fmt.Sprintf("%s:%s:%s", e.Name, e.Type, e.Domain)
	}

	addFn := func(e dnssd.BrowseEntry) {
		if len(e.IPs) == 0 {
			return
		}
		mu.Lock()
		entries[key(e)] = ServiceInfo{
			Name:   e.Name,
			Type:   e.Type,
			Domain: e.Domain,
			Addr:   e.IPs[0],
			Port:   e.Port,
			Text:   e.Text,
		}
		mu.Unlock()
		sendSnapshot()
	}

	rmvFn := func(e dnssd.BrowseEntry) {
		mu.Lock()
		delete(entries, key(e))
		mu.Unlock()
		sendSnapshot()
	}

	go func() {
		defer close(outCh)
		if err := dnssd.LookupType(ctx, service, addFn, rmvFn); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			sendError(fmt.Errorf("mDNS lookup failed: %w", err))
		}
	}()

	return outCh
}
