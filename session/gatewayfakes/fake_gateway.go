package gatewayfakes

import (
	"context"
	"sync"

	"github.com/spasys/billing-console/session"
)

var _ session.Gateway = (*FakeGateway)(nil)

// FakeGateway is a scriptable session.Gateway. Response fields are read on
// each call; call counts are tracked for assertions. RefreshBarrier, when
// set, blocks Refresh until the channel is closed, so tests can hold a
// refresh in flight.
type FakeGateway struct {
	lock sync.Mutex

	LoginResult *session.LoginResult
	LoginErr    error
	loginCalls  int

	ValidateResult bool
	ValidateErr    error
	validateCalls  int

	RefreshResult  *session.Credentials
	RefreshErr     error
	RefreshBarrier chan struct{}
	refreshCalls   int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{ValidateResult: true}
}

func (fg *FakeGateway) Login(ctx context.Context, identifier, secret string) (*session.LoginResult, error) {
	fg.lock.Lock()
	fg.loginCalls++
	result, err := fg.LoginResult, fg.LoginErr
	fg.lock.Unlock()
	return result, err
}

func (fg *FakeGateway) Validate(ctx context.Context, accessToken string) (bool, error) {
	fg.lock.Lock()
	fg.validateCalls++
	valid, err := fg.ValidateResult, fg.ValidateErr
	fg.lock.Unlock()
	return valid, err
}

func (fg *FakeGateway) Refresh(ctx context.Context, refreshToken string) (*session.Credentials, error) {
	fg.lock.Lock()
	fg.refreshCalls++
	result, err := fg.RefreshResult, fg.RefreshErr
	barrier := fg.RefreshBarrier
	fg.lock.Unlock()

	if barrier != nil {
		select {
		case <-barrier:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return result, err
}

func (fg *FakeGateway) LoginCalls() int {
	fg.lock.Lock()
	defer fg.lock.Unlock()
	return fg.loginCalls
}

func (fg *FakeGateway) ValidateCalls() int {
	fg.lock.Lock()
	defer fg.lock.Unlock()
	return fg.validateCalls
}

func (fg *FakeGateway) RefreshCalls() int {
	fg.lock.Lock()
	defer fg.lock.Unlock()
	return fg.refreshCalls
}

// SetRefresh scripts the next refresh responses.
func (fg *FakeGateway) SetRefresh(creds *session.Credentials, err error) {
	fg.lock.Lock()
	defer fg.lock.Unlock()
	fg.RefreshResult = creds
	fg.RefreshErr = err
}
