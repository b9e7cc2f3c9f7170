package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truckmitr/config"
	"truckmitr/pkg/models"
)

func TestVerifyOTP_StripsBearerAndStoresProfile(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/verify-otp":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "9876543210", body["mobile"])
			assert.Equal(t, "123456", body["otp"])
			_, _ = w.Write([]byte(`{"success":true,"data":{"token":"Bearer Bearer abc"}}`))
		case "/user/profile":
			assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"data":{"user":{"id":7,"name":"Ravi","role":"driver","mobile":"9876543210"}}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	svc := NewSessionService(env.stg, env.client, env.log)
	ctx := context.Background()

	user, err := svc.VerifyOTP(ctx, testOwner, "+91 98765 43210", "123456")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, testOwner, user.OwnerID)

	tok, err := env.device(testOwner).Get(ctx, keyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
	assert.True(t, svc.IsAuthenticated(ctx, testOwner))

	current, err := svc.CurrentUser(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, "Ravi", current.Name)
}

func TestVerifyOTP_ProfileUnauthorizedRollsBack(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/verify-otp" {
			_, _ = w.Write([]byte(`{"token":"abc"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	var globalLogouts atomic.Int32
	env.client.OnUnauthorized(func(context.Context) { globalLogouts.Add(1) })

	svc := NewSessionService(env.stg, env.client, env.log)
	ctx := context.Background()

	user, err := svc.VerifyOTP(ctx, testOwner, "9876543210", "123456")
	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrProfileUnauthorized)
	assert.False(t, svc.IsAuthenticated(ctx, testOwner))
	assert.Equal(t, int32(0), globalLogouts.Load())

	stored, err := env.stg.users.Get(ctx, testOwner)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestVerifyOTP_RejectsBadOTPLocally(t *testing.T) {
	env := newTestEnv(t, nil)
	svc := NewSessionService(env.stg, env.client, env.log)

	_, err := svc.VerifyOTP(context.Background(), testOwner, "9876543210", "12ab")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "otp")
}

func TestVerifyOTP_NoToken(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	svc := NewSessionService(env.stg, env.client, env.log)

	_, err := svc.VerifyOTP(context.Background(), testOwner, "9876543210", "123456")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestSendOTP_ValidatesMobile(t *testing.T) {
	env := newTestEnv(t, nil)
	svc := NewSessionService(env.stg, env.client, env.log)

	err := svc.SendOTP(context.Background(), testOwner, "12345")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mobile")
}

func TestIsAuthenticated_ExpiredToken(t *testing.T) {
	env := newTestEnv(t, nil)
	svc := NewSessionService(env.stg, env.client, env.log)
	ctx := context.Background()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "7",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("test"))
	require.NoError(t, err)

	kv := env.device(testOwner)
	require.NoError(t, kv.Set(ctx, keyAuthToken, tok))
	require.NoError(t, kv.Set(ctx, keySessionActive, "true"))

	assert.False(t, svc.IsAuthenticated(ctx, testOwner))
	exp, ok := svc.TokenExpiry(ctx, testOwner)
	assert.True(t, ok)
	assert.True(t, exp.Before(time.Now()))
}

func TestGlobalLogoutOnUnauthorized(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Token expired"}`))
	})
	services := New(env.stg, env.client, config.Config{}, env.log)
	ctx := context.Background()

	env.login(t, testOwner)
	require.NoError(t, env.stg.users.Save(ctx, &models.User{OwnerID: testOwner, Name: "Ravi"}))
	require.True(t, services.Session().IsAuthenticated(ctx, testOwner))

	_, err := services.Verification().Status(ctx, testOwner)
	require.Error(t, err)

	assert.False(t, services.Session().IsAuthenticated(ctx, testOwner))
	stored, err := env.stg.users.Get(ctx, testOwner)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "abc", normalizeToken("abc"))
	assert.Equal(t, "abc", normalizeToken("Bearer abc"))
	assert.Equal(t, "abc", normalizeToken(" bearer Bearer  abc "))
	assert.Equal(t, "", normalizeToken("Bearer "))
}

func TestOTPFlow_SubmitsOnceAtSixDigits(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	flow := newOTPFlow(testOwner, "9876543210", func(ctx context.Context, owner int64, mobile, otp string) (*models.User, error) {
		calls.Add(1)
		assert.Equal(t, "123456", otp)
		<-release
		return &models.User{OwnerID: owner}, nil
	})
	ctx := context.Background()

	st, err := flow.Input(ctx, "12-3")
	require.NoError(t, err)
	assert.Equal(t, OTPEntering, st)
	assert.Equal(t, 3, flow.Entered())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		st, err := flow.Input(ctx, "45678")
		assert.NoError(t, err)
		assert.Equal(t, OTPAuthenticated, st)
	}()

	require.Eventually(t, func() bool { return flow.State() == OTPVerifying }, time.Second, time.Millisecond)
	st, err = flow.Input(ctx, "999999")
	require.NoError(t, err)
	assert.Equal(t, OTPVerifying, st)

	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
	assert.NotNil(t, flow.User())
}

func TestOTPFlow_ErrorAllowsRetry(t *testing.T) {
	fail := true
	flow := newOTPFlow(testOwner, "9876543210", func(ctx context.Context, owner int64, mobile, otp string) (*models.User, error) {
		if fail {
			return nil, errors.New("invalid otp")
		}
		return &models.User{}, nil
	})
	ctx := context.Background()

	st, err := flow.Input(ctx, "111111")
	assert.Error(t, err)
	assert.Equal(t, OTPError, st)
	assert.Equal(t, 0, flow.Entered())

	fail = false
	st, err = flow.Input(ctx, "222222")
	require.NoError(t, err)
	assert.Equal(t, OTPAuthenticated, st)
}

func TestMaskMobile(t *testing.T) {
	assert.Equal(t, "******3210", MaskMobile("9876543210"))
	assert.Equal(t, "12", MaskMobile("12"))
}
