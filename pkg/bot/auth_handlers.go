package bot

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"truckmitr/pkg/backend"
	"truckmitr/pkg/logger"
	"truckmitr/service"
)

func (b *Bot) handleContact(c tele.Context) error {
	owner := c.Sender().ID
	contact := c.Message().Contact
	if contact.UserID != owner {
		return c.Send(msg("own_contact"))
	}

	ctx := context.Background()
	if err := b.Services.Session().SendOTP(ctx, owner, contact.PhoneNumber); err != nil {
		return b.fail(c, err)
	}

	flow := b.Services.Session().NewOTPFlow(owner, contact.PhoneNumber)
	s := b.session(owner)
	b.mu.Lock()
	s.OTP = flow
	s.State = StateOTP
	b.mu.Unlock()

	b.Log.Info("otp sent", logger.Int64("owner_id", owner), logger.String("mobile", service.MaskMobile(flow.Mobile())))
	return c.Send(fmt.Sprintf(msg("otp_sent"), service.MaskMobile(flow.Mobile())), tele.RemoveKeyboard)
}

func (b *Bot) handleOTPInput(c tele.Context) error {
	owner := c.Sender().ID
	s := b.session(owner)
	b.mu.Lock()
	flow := s.OTP
	b.mu.Unlock()
	if flow == nil {
		return b.handleStart(c)
	}

	state, err := flow.Input(context.Background(), c.Text())
	switch state {
	case service.OTPEntering:
		return c.Send(fmt.Sprintf(msg("otp_progress"), flow.Entered()))
	case service.OTPVerifying:
		return c.Send(msg("otp_wait"))
	case service.OTPError:
		text := backend.UserMessage(err, "Invalid code")
		if errors.Is(err, service.ErrProfileUnauthorized) {
			text = err.Error()
		} else if err != nil && backend.StatusCode(err) == 0 {
			text = err.Error()
		}
		return c.Send(fmt.Sprintf(msg("otp_retry"), text))
	}

	user := flow.User()
	b.mu.Lock()
	s.OTP = nil
	s.State = StateIdle
	b.mu.Unlock()

	if err := c.Send(fmt.Sprintf(msg("logged_in"), displayName(user.Name, user.Mobile))); err != nil {
		return err
	}
	return b.showMenu(c, user)
}

func (b *Bot) handleLogout(c tele.Context) error {
	owner := c.Sender().ID
	if err := b.Services.Session().Logout(context.Background(), owner); err != nil {
		return b.fail(c, err)
	}
	b.dropSession(owner)
	return c.Send(msg("logged_out"), tele.RemoveKeyboard)
}

func displayName(name, mobile string) string {
	if name != "" {
		return name
	}
	return service.MaskMobile(mobile)
}
