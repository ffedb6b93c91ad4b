package receiver

import (
	"sync"

	"github.com/nettrace-go/nettrace/wireformat"
)

var (
	mgrMu     sync.Mutex
	instances = map[wireformat.Family]*Receiver{}
)

// GetOrStart returns the live receiver for family, starting one if none
// exists yet. It is idempotent: concurrent callers for the same family
// converge on the same *Receiver.
func GetOrStart(family wireformat.Family) (*Receiver, error) {
	mgrMu.Lock()
	defer mgrMu.Unlock()

	// a receiver that has closed but not yet removed itself is not live.
	if r, ok := instances[family]; ok && r.State() != stateClosed {
		return r, nil
	}

	var r *Receiver
	r, err := newReceiver(family, func() { removeInstance(family, r) })
	if err != nil {
		return nil, err
	}
	instances[family] = r
	return r, nil
}

func removeInstance(family wireformat.Family, r *Receiver) {
	mgrMu.Lock()
	defer mgrMu.Unlock()
	if instances[family] == r {
		delete(instances, family)
	}
}

// InstallMockConn points every subsequent GetOrStart at conn instead of a
// real raw socket and drops any receivers already running, so the next
// GetOrStart for any family starts fresh against conn. It returns a
// restore function that undoes both. Other packages' tests use this to
// exercise probe/trace logic without opening raw sockets.
func InstallMockConn(conn Conn) (restore func()) {
	mgrMu.Lock()
	origFactory := ConnFactory
	ConnFactory = func(wireformat.Family) (Conn, error) { return conn, nil }
	mgrMu.Unlock()

	ForceReset()

	return func() {
		mgrMu.Lock()
		ConnFactory = origFactory
		mgrMu.Unlock()
		ForceReset()
	}
}

// ForceReset closes any live receivers and clears the singleton map. Tests
// use this to guarantee a clean restart between cases.
func ForceReset() {
	mgrMu.Lock()
	live := make([]*Receiver, 0, len(instances))
	for _, r := range instances {
		live = append(live, r)
	}
	instances = map[wireformat.Family]*Receiver{}
	mgrMu.Unlock()

	for _, r := range live {
		r.Close()
	}
}
