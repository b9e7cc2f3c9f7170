package service

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"truckmitr/pkg/models"
	"truckmitr/pkg/validate"
)

type OTPState string

const (
	OTPEntering      OTPState = "entering_otp"
	OTPVerifying     OTPState = "verifying"
	OTPAuthenticated OTPState = "authenticated"
	OTPError         OTPState = "error"
)

type verifyFunc func(ctx context.Context, owner int64, mobile, otp string) (*models.User, error)

// OTPFlow collects digits and submits exactly once when all six are in.
type OTPFlow struct {
	mu         sync.Mutex
	owner      int64
	mobile     string
	digits     []rune
	state      OTPState
	submitting bool
	user       *models.User
	err        error
	verify     verifyFunc
}

func newOTPFlow(owner int64, mobile string, verify verifyFunc) *OTPFlow {
	return &OTPFlow{owner: owner, mobile: mobile, state: OTPEntering, verify: verify}
}

func (f *OTPFlow) Mobile() string { return f.mobile }

func (f *OTPFlow) State() OTPState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *OTPFlow) User() *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

// Input appends the digits in s. Non-digits are ignored. Reaching six digits
// submits; input while a submission is in flight is dropped.
func (f *OTPFlow) Input(ctx context.Context, s string) (OTPState, error) {
	f.mu.Lock()
	if f.submitting || f.state == OTPAuthenticated {
		st := f.state
		f.mu.Unlock()
		return st, nil
	}
	if f.state == OTPError {
		f.digits = f.digits[:0]
		f.err = nil
		f.state = OTPEntering
	}
	for _, r := range s {
		if len(f.digits) == validate.OTPLength {
			break
		}
		if unicode.IsDigit(r) {
			f.digits = append(f.digits, r)
		}
	}
	if len(f.digits) < validate.OTPLength {
		f.mu.Unlock()
		return OTPEntering, nil
	}

	f.submitting = true
	f.state = OTPVerifying
	otp := string(f.digits)
	f.mu.Unlock()

	user, err := f.verify(ctx, f.owner, f.mobile, otp)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		f.state = OTPError
		f.err = err
		f.digits = f.digits[:0]
		return f.state, err
	}
	f.state = OTPAuthenticated
	f.user = user
	return f.state, nil
}

func (f *OTPFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return
	}
	f.digits = f.digits[:0]
	f.err = nil
	f.state = OTPEntering
}

// Entered is the number of digits collected so far.
func (f *OTPFlow) Entered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.digits)
}

// MaskMobile hides all but the last four digits.
func MaskMobile(m string) string {
	if len(m) < 4 {
		return m
	}
	return strings.Repeat("*", len(m)-4) + m[len(m)-4:]
}
