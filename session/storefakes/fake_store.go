package storefakes

import (
	"sync"

	"github.com/spasys/billing-console/session"
)

var _ session.Store = (*FakeStore)(nil)

// FakeStore is an in-memory session.Store that records every Save for
// assertions.
type FakeStore struct {
	lock      sync.Mutex
	current   *session.Session
	saveCalls []*session.Session

	LoadErr error
	SaveErr error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (fs *FakeStore) Load() (*session.Session, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.LoadErr != nil {
		return nil, fs.LoadErr
	}
	return fs.current.Clone(), nil
}

func (fs *FakeStore) Save(sess *session.Session) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.SaveErr != nil {
		return fs.SaveErr
	}
	fs.current = sess.Clone()
	fs.saveCalls = append(fs.saveCalls, sess.Clone())
	return nil
}

// Seed sets the stored session without recording a save.
func (fs *FakeStore) Seed(sess *session.Session) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.current = sess.Clone()
}

// Current returns the stored session.
func (fs *FakeStore) Current() *session.Session {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.current.Clone()
}

// SaveCalls returns every value passed to Save, in order.
func (fs *FakeStore) SaveCalls() []*session.Session {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	out := make([]*session.Session, len(fs.saveCalls))
	copy(out, fs.saveCalls)
	return out
}
