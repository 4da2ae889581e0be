// Package breaker implements a circuit breaker that guards calls to a
// dependency which may be degraded.
//
// A Breaker starts Closed and permits every call. It trips to Open when
// either a run of consecutive failures reaches a threshold or the failure
// rate across a trailing time window goes over a threshold. While Open every
// call is rejected with ErrRejected until a jittered cool-down passes, after
// which the breaker is Half-Open and lets a limited number of trial calls
// through. A trial success closes the breaker, a trial failure opens it
// again with a longer cool-down.
//
// One Breaker is meant to be shared by every request that uses the guarded
// dependency. All methods are safe for concurrent use.
package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// State is the state of a Breaker
type State int

// These constants are states of a Breaker
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("unknown state: %d", s)
	}
}

// ErrRejected is returned, wrapped, by Call and Execute when the breaker
// does not permit the call. The guarded function is not invoked.
var ErrRejected = errors.New("circuit breaker rejected the call")

// Settings configures a Breaker. Zero values are replaced by those of
// DefaultSettings.
type Settings struct {
	Name string

	// ConsecutiveFailures trips the breaker when this many calls in a row
	// fail while Closed
	ConsecutiveFailures uint32

	// FailureRate trips the breaker when the share of failed calls within
	// Window goes over it, as long as at least MinRequests were made
	FailureRate float64
	MinRequests uint32
	Window      time.Duration

	// MaxTrials is how many calls may be in flight while Half-Open
	MaxTrials uint32

	// MinCoolDown and MaxCoolDown bound the default jittered exponential
	// backoff used to decide how long the breaker stays Open
	MinCoolDown time.Duration
	MaxCoolDown time.Duration

	// BackOff overrides the cool-down schedule. It is only ever used with
	// the breaker's lock held.
	BackOff backoff.BackOff

	// IsExcluded reports errors that count as neither success nor failure
	IsExcluded func(err error) bool

	// OnStateChange is called with the breaker's lock held and must not call
	// back into the breaker
	OnStateChange func(name string, from State, to State)
}

// DefaultSettings returns the settings used for anything left unset
func DefaultSettings(name string) Settings {
	return Settings{
		Name:                name,
		ConsecutiveFailures: 5,
		FailureRate:         0.5,
		MinRequests:         20,
		Window:              30 * time.Second,
		MaxTrials:           1,
		MinCoolDown:         10 * time.Second,
		MaxCoolDown:         60 * time.Second,
	}
}

// Counts holds the numbers the breaker trips on
type Counts struct {
	// Requests and Failures are counted over the trailing window
	Requests uint32
	Failures uint32

	ConsecutiveFailures uint32
}

// Breaker is a circuit breaker
type Breaker struct {
	name          string
	consecutive   uint32
	failureRate   float64
	minRequests   uint32
	maxTrials     uint32
	isExcluded    func(error) bool
	onStateChange func(name string, from State, to State)

	mu                  sync.Mutex
	state               State
	generation          uint64
	consecutiveFailures uint32
	trials              uint32
	expiry              time.Time
	window              *window
	backOff             backoff.BackOff
	now                 func() time.Time
}

// New returns a Breaker in the Closed state
func New(st Settings) *Breaker {
	def := DefaultSettings(st.Name)

	if st.ConsecutiveFailures == 0 {
		st.ConsecutiveFailures = def.ConsecutiveFailures
	}
	if st.FailureRate <= 0 || st.FailureRate > 1 {
		st.FailureRate = def.FailureRate
	}
	if st.MinRequests == 0 {
		st.MinRequests = def.MinRequests
	}
	if st.Window <= 0 {
		st.Window = def.Window
	}
	if st.MaxTrials == 0 {
		st.MaxTrials = def.MaxTrials
	}
	if st.MinCoolDown <= 0 {
		st.MinCoolDown = def.MinCoolDown
	}
	if st.MaxCoolDown < st.MinCoolDown {
		st.MaxCoolDown = st.MinCoolDown
	}
	if st.BackOff == nil {
		st.BackOff = newJitteredBackOff(st.MinCoolDown, st.MaxCoolDown)
	}
	if st.IsExcluded == nil {
		st.IsExcluded = func(error) bool { return false }
	}

	b := &Breaker{
		name:          st.Name,
		consecutive:   st.ConsecutiveFailures,
		failureRate:   st.FailureRate,
		minRequests:   st.MinRequests,
		maxTrials:     st.MaxTrials,
		isExcluded:    st.IsExcluded,
		onStateChange: st.OnStateChange,
		window:        newWindow(st.Window, windowBuckets),
		backOff:       st.BackOff,
		now:           time.Now,
	}
	b.backOff.Reset()

	return b
}

const coolDownJitter = 0.5

// newJitteredBackOff returns an exponential backoff whose every value lies in
// [initial, ceiling]. The first interval is raised so that its jittered low
// end is initial.
func newJitteredBackOff(initial, ceiling time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(float64(initial) / (1 - coolDownJitter))
	b.MaxInterval = ceiling
	b.Multiplier = 2
	b.RandomizationFactor = coolDownJitter
	b.Reset()

	return &boundedBackOff{
		BackOff: b,
		min:     initial,
		max:     ceiling,
	}
}

// boundedBackOff clamps the values of the wrapped backoff. The jitter of
// backoff.ExponentialBackOff is applied after its MaxInterval cap, so on its
// own it overshoots the ceiling by up to the randomization factor.
type boundedBackOff struct {
	backoff.BackOff
	min time.Duration
	max time.Duration
}

func (b *boundedBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d < b.min {
		return b.min
	}
	if d > b.max {
		return b.max
	}
	return d
}

// Name returns the name of the breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state. An Open breaker whose cool-down has
// passed reports Half-Open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.currentState(b.now())
}

// Counts returns a snapshot of the counters
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	requests, failures := b.window.totals(b.now())
	return Counts{
		Requests:            requests,
		Failures:            failures,
		ConsecutiveFailures: b.consecutiveFailures,
	}
}

// IsCallPermitted reports whether a call made now would be let through. It
// does not change the state of the breaker.
func (b *Breaker) IsCallPermitted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState(b.now()) {
	case StateClosed:
		return true
	case StateHalfOpen:
		return b.trials < b.maxTrials
	default:
		return false
	}
}

// Call runs fn if the breaker permits it and records the outcome. When the
// call is not permitted the returned error wraps ErrRejected and fn is not
// invoked. Otherwise fn's error is returned unchanged.
func (b *Breaker) Call(fn func() error) error {
	_, err := Execute(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Execute is Call for functions that return a value
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T

	generation, err := b.beforeCall()
	if err != nil {
		return zero, err
	}

	defer func() {
		if r := recover(); r != nil {
			b.afterCall(generation, false, false)
			panic(r)
		}
	}()

	result, err := fn()
	b.afterCall(generation, err == nil, err != nil && b.isExcluded(err))

	return result, err
}

func (b *Breaker) beforeCall() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.syncState(b.now())

	switch state {
	case StateOpen:
		return b.generation, fmt.Errorf("%w: %s is %s", ErrRejected, b.name, state)
	case StateHalfOpen:
		if b.trials >= b.maxTrials {
			return b.generation, fmt.Errorf(
				"%w: %s is %s with %d trials in flight",
				ErrRejected,
				b.name,
				state,
				b.trials,
			)
		}
		b.trials++
	}

	return b.generation, nil
}

func (b *Breaker) afterCall(before uint64, success bool, excluded bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	state := b.syncState(now)

	// The outcome of a call that started before the last state change says
	// nothing about the current state
	if before != b.generation {
		return
	}

	switch {
	case excluded:
		if state == StateHalfOpen && b.trials > 0 {
			b.trials--
		}
	case success:
		b.onSuccess(state, now)
	default:
		b.onFailure(state, now)
	}
}

func (b *Breaker) onSuccess(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.consecutiveFailures = 0
		b.window.record(now, true)
	case StateHalfOpen:
		b.setState(StateClosed, now)
	}
}

func (b *Breaker) onFailure(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.consecutiveFailures++
		b.window.record(now, false)
		if b.readyToTrip(now) {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

func (b *Breaker) readyToTrip(now time.Time) bool {
	if b.consecutiveFailures >= b.consecutive {
		return true
	}

	requests, failures := b.window.totals(now)
	if requests < b.minRequests {
		return false
	}

	return float64(failures)/float64(requests) > b.failureRate
}

// currentState works out the state without changing it
func (b *Breaker) currentState(now time.Time) State {
	if b.state == StateOpen && !now.Before(b.expiry) {
		return StateHalfOpen
	}
	return b.state
}

// syncState moves an Open breaker whose cool-down has passed to Half-Open
func (b *Breaker) syncState(now time.Time) State {
	if b.state == StateOpen && !now.Before(b.expiry) {
		b.setState(StateHalfOpen, now)
	}
	return b.state
}

func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.toNewGeneration(now)

	if b.onStateChange != nil {
		b.onStateChange(b.name, prev, state)
	}
}

func (b *Breaker) toNewGeneration(now time.Time) {
	b.generation++
	b.consecutiveFailures = 0
	b.trials = 0

	switch b.state {
	case StateClosed:
		b.window.reset()
		b.backOff.Reset()
		b.expiry = time.Time{}
	case StateOpen:
		coolDown := b.backOff.NextBackOff()
		if coolDown < 0 {
			coolDown = 0
		}
		b.expiry = now.Add(coolDown)
	default:
		b.expiry = time.Time{}
	}
}
