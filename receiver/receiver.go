// Package receiver implements C2: one shared raw-datagram receiver per
// address family, serializing all registration and send operations and
// routing each inbound echo/error message to exactly the probe that
// caused it.
package receiver

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/nettrace-go/nettrace/log"
	"github.com/nettrace-go/nettrace/wireformat"
)

type state int32

const (
	stateRunning state = iota
	stateDraining
	stateClosed
)

const graceKey = "alive"

// graceDuration and gracePurgeInterval are package vars so tests can
// shrink the ~5s grace window below without waiting on it.
var (
	graceDuration      = 5 * time.Second
	gracePurgeInterval = 1 * time.Second
	readPollInterval   = 250 * time.Millisecond
)

// Receiver is the per-family singleton that owns one shared socket.
type Receiver struct {
	family wireformat.Family
	conn   Conn

	mu            sync.Mutex
	registrations map[Key]chan Delivery
	st            state

	grace *cache.Cache

	stopDrain chan struct{}
	drainDone chan struct{}

	onClosed func()
}

func newReceiver(family wireformat.Family, onClosed func()) (*Receiver, error) {
	conn, err := ConnFactory(family)
	if err != nil {
		return nil, err
	}

	r := &Receiver{
		family:        family,
		conn:          conn,
		registrations: make(map[Key]chan Delivery),
		st:            stateRunning,
		grace:         cache.New(cache.NoExpiration, gracePurgeInterval),
		stopDrain:     make(chan struct{}),
		drainDone:     make(chan struct{}),
		onClosed:      onClosed,
	}
	r.grace.OnEvicted(func(key string, _ interface{}) {
		if key == graceKey {
			r.handleGraceExpiry()
		}
	})

	go r.drainLoop()
	return r, nil
}

// Register records a waiter for key. It fails with *ErrAlreadyRegistered
// if the key is already live.
func (r *Receiver) Register(kind wireformat.ProbeKind, identifier uint16) (<-chan Delivery, error) {
	key := Key{Kind: kind, Identifier: identifier}

	r.mu.Lock()

	if r.st == stateClosed {
		r.mu.Unlock()
		return nil, fmt.Errorf("receiver: %s receiver is closed", r.family)
	}
	if _, exists := r.registrations[key]; exists {
		r.mu.Unlock()
		return nil, &ErrAlreadyRegistered{Key: key}
	}

	ch := make(chan Delivery, 1)
	r.registrations[key] = ch

	wasDraining := r.st == stateDraining
	if wasDraining {
		r.st = stateRunning
	}
	r.mu.Unlock()

	// grace.Delete below may invoke OnEvicted synchronously on this
	// goroutine; it must run with r.mu already released, or the
	// eviction callback's own r.mu.Lock() in handleGraceExpiry would
	// deadlock against this call.
	if wasDraining {
		r.grace.Delete(graceKey)
		log.WithFields(log.Fields{"family": r.family.String()}).Debugf("receiver: canceled pending shutdown, new registration arrived")
	}
	return ch, nil
}

// Unregister removes the waiter for key, if any. It never errors.
func (r *Receiver) Unregister(kind wireformat.ProbeKind, identifier uint16) {
	key := Key{Kind: kind, Identifier: identifier}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.registrations, key)

	if len(r.registrations) == 0 && r.st == stateRunning {
		r.st = stateDraining
		r.grace.Set(graceKey, true, graceDuration)
		log.WithFields(log.Fields{"family": r.family.String()}).Debugf("receiver: no registrations left, arming grace timer")
	}
}

// Send sets the hop-limit option on the shared socket and transmits
// packet to dest. Send is serialized against itself so that concurrent
// probes never interleave a SetHopLimit/WriteTo pair.
func (r *Receiver) Send(hopLimit int, packet []byte, dest netip.Addr) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.st == stateClosed {
		return fmt.Errorf("receiver: %s receiver is closed", r.family)
	}
	if err := r.conn.SetHopLimit(hopLimit); err != nil {
		return fmt.Errorf("receiver: failed to set hop limit: %w", err)
	}
	if _, err := r.conn.WriteTo(packet, &net.IPAddr{IP: dest.AsSlice()}); err != nil {
		return fmt.Errorf("receiver: failed to send packet: %w", err)
	}
	return nil
}

// State reports the receiver's current lifecycle state, for tests.
func (r *Receiver) State() state {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st
}

// Close shuts the receiver down immediately, bypassing the grace timer.
// Used for force-reset in tests and for manager-driven teardown.
func (r *Receiver) Close() {
	r.mu.Lock()
	if r.st == stateClosed {
		r.mu.Unlock()
		return
	}
	r.st = stateClosed
	r.mu.Unlock()

	close(r.stopDrain)
	<-r.drainDone
	r.conn.Close()
	r.grace.Flush()
}

func (r *Receiver) handleGraceExpiry() {
	r.mu.Lock()
	if r.st != stateDraining || len(r.registrations) != 0 {
		r.mu.Unlock()
		return
	}
	r.st = stateClosed
	r.mu.Unlock()

	close(r.stopDrain)
	<-r.drainDone
	r.conn.Close()

	log.WithFields(log.Fields{"family": r.family.String()}).Debugf("receiver: grace window elapsed, closing")
	if r.onClosed != nil {
		r.onClosed()
	}
}

func (r *Receiver) drainLoop() {
	defer close(r.drainDone)

	buf := make([]byte, 2048)
	for {
		select {
		case <-r.stopDrain:
			return
		default:
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(readPollInterval))
		n, peer, err := r.conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		r.handleMessage(append([]byte{}, buf[:n]...), peer)
	}
}

func (r *Receiver) handleMessage(raw []byte, peer net.Addr) {
	var src netip.Addr
	var icmpBuf []byte

	if r.family == wireformat.V4 {
		payload, headerSrc, err := wireformat.SplitReceivedIPv4(raw)
		if err != nil {
			log.Debugf("receiver: failed to split received IPv4 header: %s", err)
			return
		}
		icmpBuf, src = payload, headerSrc
	} else {
		icmpBuf = raw
		src = peerToAddr(peer)
	}

	msg, err := wireformat.Decode(r.family, icmpBuf)
	if err != nil {
		log.Debugf("receiver: failed to decode message from %s: %s", src, err)
		return
	}

	key, ok := keyForMessage(msg)
	if !ok {
		return
	}

	r.deliver(key, Delivery{Peer: src, Raw: icmpBuf, Message: msg})
}

func keyForMessage(msg wireformat.Message) (Key, bool) {
	switch msg.Type {
	case wireformat.TypeEchoReply:
		return Key{Kind: wireformat.KindEcho, Identifier: msg.Identifier}, true
	case wireformat.TypeTimeExceeded, wireformat.TypeDestinationUnreachable:
		switch msg.Embedded.Proto {
		case wireformat.EmbeddedEcho:
			return Key{Kind: wireformat.KindEcho, Identifier: msg.Embedded.Identifier}, true
		case wireformat.EmbeddedDatagram:
			return Key{Kind: wireformat.KindDatagram, Identifier: msg.Embedded.Identifier}, true
		case wireformat.EmbeddedStream:
			return Key{Kind: wireformat.KindStream, Identifier: msg.Embedded.Identifier}, true
		default:
			return Key{}, false
		}
	default:
		return Key{}, false
	}
}

// DeliverForTest routes d to the waiter registered under key exactly as
// the drain loop would after decoding a real inbound packet. Other
// packages' tests use this to exercise probe/trace logic against a mock
// Conn without hand-assembling wire bytes.
func (r *Receiver) DeliverForTest(key Key, d Delivery) {
	r.deliver(key, d)
}

func (r *Receiver) deliver(key Key, d Delivery) {
	r.mu.Lock()
	ch, ok := r.registrations[key]
	if !ok {
		r.mu.Unlock()
		log.WithFields(log.Fields{"family": r.family.String(), "kind": key.Kind.String(), "id": key.Identifier}).
			Debugf("receiver: no waiter registered for key, dropping message")
		return
	}

	select {
	case ch <- d:
		r.mu.Unlock()
	default:
		// waiter's channel is full or it stopped reading; drop the
		// registration rather than block the drain loop.
		delete(r.registrations, key)
		empty := len(r.registrations) == 0
		if empty && r.st == stateRunning {
			r.st = stateDraining
			r.grace.Set(graceKey, true, graceDuration)
		}
		r.mu.Unlock()
		log.WithFields(log.Fields{"family": r.family.String(), "kind": key.Kind.String(), "id": key.Identifier}).
			Debugf("receiver: dropped registration, waiter channel was not ready")
	}
}

func peerToAddr(peer net.Addr) netip.Addr {
	switch a := peer.(type) {
	case *net.IPAddr:
		addr, _ := netip.AddrFromSlice(a.IP)
		return addr.Unmap()
	case *net.UDPAddr:
		addr, _ := netip.AddrFromSlice(a.IP)
		return addr.Unmap()
	default:
		return netip.Addr{}
	}
}
