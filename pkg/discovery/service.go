package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
)

const (
	DefaultServerType = "_files-transfer._tcp"
	DefaultDomain     = "local"
)

// ErrNoService is returned when browsing ends without any receiver found.
var ErrNoService = errors.New("no receiver found")

type ServiceInfo struct {
	Name   string // instance name, e.g. "host-1a2b3c4d"
	Type   string // service type, e.g. "_files-transfer._tcp"
	Domain string // domain, e.g. "local"
	Addr   net.IP
	Port   int
	// Text carries the TXT record, including the instance id.
	Text map[string]string
}

// FQDN is the browse name for the service type, e.g. "_files-transfer._tcp.local.".
func (s ServiceInfo) FQDN() string {
	return fmt.Sprintf("%s.%s.", s.Type, s.Domain)
}

// DiscoveryResult holds a snapshot of the services seen so far, or an error.
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}

// FindFirst browses for service and returns the first receiver reported.
func FindFirst(ctx context.Context, adapter Adapter, service string) (ServiceInfo, error) {
	for result := range adapter.Discover(ctx, service) {
		if result.Error != nil {
			return ServiceInfo{}, result.Error
		}
		if len(result.Services) > 0 {
			return result.Services[0], nil
		}
	}
	if err := ctx.Err(); err != nil {
		return ServiceInfo{}, fmt.Errorf("%w: %v", ErrNoService, err)
	}
	return ServiceInfo{}, ErrNoService
}
