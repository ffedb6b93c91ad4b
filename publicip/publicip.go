// Package publicip implements best-effort public-source-address
// enrichment: a STUN-style consensus check against a handful of external
// services, memoized per family for two hours so repeated traces don't
// re-query on every run.
package publicip

import (
	"net/netip"
	"time"

	externalip "github.com/glendc/go-external-ip"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/nettrace-go/nettrace/log"
	"github.com/nettrace-go/nettrace/wireformat"
)

const (
	defaultCacheExpiration = 2 * time.Hour
	defaultCachePurge      = 10 * time.Minute
)

var errInvalidConsensusIP = errors.New("publicip: consensus service returned an unparseable address")

// resultCache memoizes the consensus lookup per family so repeated calls
// to GetIP within the expiration window don't re-query.
var resultCache = gocache.New(defaultCacheExpiration, defaultCachePurge)

// Fetcher learns the address an external consensus service sees this
// host connecting from.
type Fetcher interface {
	GetIP(family wireformat.Family) (netip.Addr, error)
}

// ConsensusFetcher is the production Fetcher, backed by go-external-ip.
type ConsensusFetcher struct{}

// NewFetcher returns the production Fetcher.
func NewFetcher() *ConsensusFetcher {
	return &ConsensusFetcher{}
}

func (f *ConsensusFetcher) GetIP(family wireformat.Family) (netip.Addr, error) {
	key := "source_public_ip_v4"
	if family == wireformat.V6 {
		key = "source_public_ip_v6"
	}

	if cached, found := resultCache.Get(key); found {
		return cached.(netip.Addr), nil
	}

	ip, err := fetchConsensusIP(family)
	if err != nil {
		return netip.Addr{}, err
	}
	log.Debugf("publicip: fetched consensus public IP %s", ip)
	resultCache.Set(key, ip, gocache.DefaultExpiration)
	return ip, nil
}

func fetchConsensusIP(family wireformat.Family) (netip.Addr, error) {
	consensus := externalip.DefaultConsensus(nil, nil)
	if family == wireformat.V6 {
		consensus.UseIPProtocol(6)
	} else {
		consensus.UseIPProtocol(4)
	}

	ip, err := consensus.ExternalIP()
	if err != nil {
		return netip.Addr{}, err
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, errInvalidConsensusIP
	}
	return addr.Unmap(), nil
}
