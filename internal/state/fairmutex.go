package state

// fairMutex is a FIFO-biased mutual exclusion lock built on a buffered
// channel used as a single-token semaphore. Goroutines parked on a channel
// receive are woken in the order they started waiting, which gives this
// lock first-in-first-out fairness in practice.
//
// Each store operation is a load-modify-save transaction that holds this
// mutex for the duration; FIFO ordering keeps a stream of short operations
// from starving a long-running one.
type fairMutex struct {
	tokens chan struct{}
}

func newFairMutex() *fairMutex {
	m := &fairMutex{tokens: make(chan struct{}, 1)}
	m.tokens <- struct{}{}
	return m
}

// Lock blocks until the token is acquired.
func (m *fairMutex) Lock() {
	<-m.tokens
}

// Unlock returns the token. An Unlock without a matching Lock finds the
// token already present and blocks forever on the send; unlike misuse of
// sync.Mutex, it does not panic.
func (m *fairMutex) Unlock() {
	m.tokens <- struct{}{}
}
