package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"truckmitr/pkg/backend"
	"truckmitr/pkg/logger"
	"truckmitr/pkg/metrics"
	"truckmitr/pkg/models"
	"truckmitr/pkg/validate"
	"truckmitr/storage"
)

var (
	ErrProfileUnauthorized = errors.New("logged in, but the profile could not be loaded; please try again")
	ErrNoToken             = errors.New("verification response carried no token")
)

type SessionService interface {
	SendOTP(ctx context.Context, owner int64, mobile string) error
	NewOTPFlow(owner int64, mobile string) *OTPFlow
	VerifyOTP(ctx context.Context, owner int64, mobile, otp string) (*models.User, error)
	RefreshProfile(ctx context.Context, owner int64) (*models.User, error)
	CurrentUser(ctx context.Context, owner int64) (*models.User, error)
	IsAuthenticated(ctx context.Context, owner int64) bool
	TokenExpiry(ctx context.Context, owner int64) (time.Time, bool)
	Logout(ctx context.Context, owner int64) error
}

type sessionService struct {
	dev   device
	users storage.IUserStorage
	api   backend.API
	log   logger.ILogger
	now   func() time.Time
}

func NewSessionService(stg storage.IStorage, api backend.API, log logger.ILogger) SessionService {
	return &sessionService{
		dev:   device{kv: stg.KV()},
		users: stg.User(),
		api:   api,
		log:   log,
		now:   time.Now,
	}
}

func (s *sessionService) SendOTP(ctx context.Context, owner int64, mobile string) error {
	mobile = validate.NormalizeMobile(mobile)
	req := sendOTPRequest{Mobile: mobile}
	if err := validate.Struct(req); err != nil {
		return err
	}
	return s.api.Do(backend.WithOwner(ctx, owner), backend.Call{
		Method: http.MethodPost,
		Path:   backend.PathSendOTP,
		Body:   req,
	})
}

func (s *sessionService) NewOTPFlow(owner int64, mobile string) *OTPFlow {
	return newOTPFlow(owner, validate.NormalizeMobile(mobile), s.VerifyOTP)
}

type sendOTPRequest struct {
	Mobile string `json:"mobile" validate:"required,mobile_in"`
}

type verifyOTPRequest struct {
	Mobile string `json:"mobile"`
	OTP    string `json:"otp" validate:"required,otp"`
}

type verifyResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	Data        *struct {
		Token string `json:"token"`
	} `json:"data"`
}

func (r verifyResponse) token() string {
	switch {
	case r.Token != "":
		return r.Token
	case r.AccessToken != "":
		return r.AccessToken
	case r.Data != nil:
		return r.Data.Token
	}
	return ""
}

// VerifyOTP logs the owner in. The user only counts as authenticated once the
// profile has been fetched; a profile 401/403 rolls the fresh session back
// instead of triggering the global logout.
func (s *sessionService) VerifyOTP(ctx context.Context, owner int64, mobile, otp string) (*models.User, error) {
	req := verifyOTPRequest{Mobile: validate.NormalizeMobile(mobile), OTP: otp}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	ctx = backend.WithOwner(ctx, owner)

	var resp verifyResponse
	err := s.api.Do(ctx, backend.Call{
		Method: http.MethodPost,
		Path:   backend.PathVerifyOTP,
		Body:   req,
		Out:    &resp,
	})
	if err != nil {
		metrics.OTPVerifications.WithLabelValues("rejected").Inc()
		return nil, err
	}

	token := normalizeToken(resp.token())
	if token == "" {
		metrics.OTPVerifications.WithLabelValues("no_token").Inc()
		return nil, ErrNoToken
	}

	kv := s.dev.of(owner)
	if err := kv.Set(ctx, keyAuthToken, token); err != nil {
		return nil, err
	}
	if err := kv.Set(ctx, keySessionActive, "true"); err != nil {
		s.clearSession(ctx, owner)
		return nil, err
	}

	user, err := s.fetchProfile(ctx, owner, token)
	if err != nil {
		s.clearSession(ctx, owner)
		if code := backend.StatusCode(err); code == http.StatusUnauthorized || code == http.StatusForbidden {
			metrics.OTPVerifications.WithLabelValues("profile_unauthorized").Inc()
			s.log.Warning("profile fetch unauthorized right after login", logger.Int64("owner_id", owner), logger.Int("status", code))
			return nil, ErrProfileUnauthorized
		}
		metrics.OTPVerifications.WithLabelValues("profile_failed").Inc()
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	if err := s.users.Save(ctx, user); err != nil {
		s.clearSession(ctx, owner)
		return nil, err
	}
	metrics.OTPVerifications.WithLabelValues("authenticated").Inc()
	s.log.Info("user authenticated", logger.Int64("owner_id", owner), logger.String("role", user.Role))
	return user, nil
}

func (s *sessionService) RefreshProfile(ctx context.Context, owner int64) (*models.User, error) {
	tok, err := s.dev.token(ctx, owner)
	if err != nil {
		return nil, err
	}
	user, err := s.fetchProfile(backend.WithOwner(ctx, owner), owner, tok)
	if err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *sessionService) fetchProfile(ctx context.Context, owner int64, token string) (*models.User, error) {
	var raw json.RawMessage
	err := s.api.Do(ctx, backend.Call{
		Method:           http.MethodGet,
		Path:             backend.PathProfile,
		Token:            token,
		Out:              &raw,
		SkipGlobalLogout: true,
	})
	if err != nil {
		return nil, err
	}

	data := unwrapData(raw)
	var wrapped struct {
		User *models.User `json:"user"`
	}
	var user models.User
	if json.Unmarshal(data, &wrapped) == nil && wrapped.User != nil {
		user = *wrapped.User
	} else if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	user.OwnerID = owner
	if user.Role == "" {
		user.Role = models.RoleDriver
	}
	return &user, nil
}

func (s *sessionService) CurrentUser(ctx context.Context, owner int64) (*models.User, error) {
	if !s.IsAuthenticated(ctx, owner) {
		return nil, ErrNotAuthenticated
	}
	user, err := s.users.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return user, nil
}

func (s *sessionService) IsAuthenticated(ctx context.Context, owner int64) bool {
	flag, err := s.dev.of(owner).Get(ctx, keySessionActive)
	if err != nil || flag != "true" {
		return false
	}
	if _, err := s.dev.token(ctx, owner); err != nil {
		return false
	}
	if exp, ok := s.TokenExpiry(ctx, owner); ok && !exp.After(s.now()) {
		return false
	}
	return true
}

// TokenExpiry reads exp from the token without verifying it; the backend
// checks signatures, we only avoid sending tokens that are already stale.
func (s *sessionService) TokenExpiry(ctx context.Context, owner int64) (time.Time, bool) {
	tok, err := s.dev.token(ctx, owner)
	if err != nil {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(tok, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (s *sessionService) Logout(ctx context.Context, owner int64) error {
	if err := s.dev.of(owner).Delete(ctx, keyAuthToken, keySessionActive); err != nil {
		return err
	}
	return s.users.Delete(ctx, owner)
}

func (s *sessionService) clearSession(ctx context.Context, owner int64) {
	if err := s.dev.of(owner).Delete(context.WithoutCancel(ctx), keyAuthToken, keySessionActive); err != nil {
		s.log.Error("failed to clear session", logger.Int64("owner_id", owner), logger.Error(err))
	}
}

// normalizeToken drops any "Bearer " the backend already put on the token;
// the client adds its own.
func normalizeToken(tok string) string {
	tok = strings.TrimSpace(tok)
	for len(tok) >= 7 && strings.EqualFold(tok[:7], "bearer ") {
		tok = strings.TrimSpace(tok[7:])
	}
	return tok
}
