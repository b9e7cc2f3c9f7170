package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"truckmitr/pkg/backend"
	"truckmitr/pkg/checkout"
	"truckmitr/pkg/logger"
	"truckmitr/pkg/models"
	"truckmitr/pkg/verification"
)

func (b *Bot) handleSubscribe(c tele.Context) error {
	ctx := context.Background()
	owner := c.Sender().ID
	subs := b.Services.Subscription()

	pending, err := subs.GetPendingSubscription(ctx, owner)
	if err != nil {
		return b.fail(c, err)
	}
	if pending != nil {
		menu := &tele.ReplyMarkup{}
		menu.Inline(menu.Row(
			menu.Data("🔄 Check status", "pay_check"),
			menu.Data("🆕 Start over", "pay_restart"),
		))
		return c.Send(fmt.Sprintf(msg("pending_found"), pending.PlanID), menu)
	}
	return b.sendPlans(c)
}

func (b *Bot) sendPlans(c tele.Context) error {
	plans, err := b.Services.Subscription().ListPlans(context.Background(), c.Sender().ID)
	if err != nil {
		return b.fail(c, err)
	}
	if len(plans) == 0 {
		return c.Send(msg("no_plans"))
	}

	menu := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, menu.Row(menu.Data(planLabel(p), "plan", p.ID)))
	}
	menu.Inline(rows...)
	return c.Send(msg("plans"), menu)
}

func planLabel(p models.Plan) string {
	cur := p.Currency
	if cur == "" || strings.EqualFold(cur, "INR") {
		cur = "₹"
	}
	label := fmt.Sprintf("%s · %s%s", p.Name, cur, formatAmount(p.Amount))
	if p.Period != "" {
		label += " / " + p.Period
	}
	return label
}

// formatAmount renders paise as rupees.
func formatAmount(paise int64) string {
	rupees, rest := paise/100, paise%100
	if rest == 0 {
		return strconv.FormatInt(rupees, 10)
	}
	return fmt.Sprintf("%d.%02d", rupees, rest)
}

func (b *Bot) handlePlanSelected(c tele.Context, planID string) error {
	ctx := context.Background()
	owner := c.Sender().ID
	_ = c.Respond()

	created, err := b.Services.Subscription().CreateSubscription(ctx, owner, planID)
	if err != nil {
		return b.fail(c, err)
	}
	user, err := b.Services.Session().CurrentUser(ctx, owner)
	if err != nil {
		return b.fail(c, err)
	}

	opts := checkout.BuildSubscriptionOptions(checkout.SubscriptionParams{
		Key:            created.RazorpayKey,
		SubscriptionID: created.SubscriptionID,
		DisplayName:    b.Cfg.CheckoutDisplayName,
		Description:    "Subscription " + planID,
		UserName:       user.Name,
		UserEmail:      user.Email,
		UserMobile:     user.Mobile,
		UserID:         strconv.FormatInt(user.ID, 10),
		PlanID:         planID,
		ThemeColor:     b.Cfg.CheckoutThemeColor,
	})
	return b.startCheckout(c, opts)
}

// startCheckout sends the payment link and waits for the page's callback in
// the background. Any earlier checkout of this owner is abandoned.
func (b *Bot) startCheckout(c tele.Context, opts checkout.Options) error {
	owner := c.Sender().ID
	ctx, cancel := context.WithTimeout(context.Background(), b.Cfg.CheckoutTimeout)
	run := &checkoutRun{SubscriptionID: opts.SubscriptionID, cancel: cancel}

	s := b.session(owner)
	b.mu.Lock()
	if s.Checkout != nil {
		s.Checkout.cancel()
	}
	s.Checkout = run
	b.mu.Unlock()

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(menu.URL(msg("pay_now"), b.Gateway.CheckoutURL(opts.SubscriptionID))))
	if err := c.Send(fmt.Sprintf(msg("checkout_open"), b.Cfg.CheckoutTimeout), menu); err != nil {
		b.releaseCheckout(owner, run)
		cancel()
		return err
	}

	go func() {
		defer cancel()
		res, err := b.Checkout.OpenSubscriptionCheckout(ctx, opts)
		if !b.releaseCheckout(owner, run) {
			b.Log.Debug("checkout superseded", logger.Int64("owner_id", owner), logger.String("subscription_id", opts.SubscriptionID))
			return
		}
		if err != nil {
			b.Log.Error("checkout rejected", logger.Int64("owner_id", owner), logger.Error(err))
			b.notify(owner, msg("generic_error"))
			return
		}
		if res.Cancelled && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// The pending record stays so the owner can still check the status.
			b.notify(owner, msg("checkout_expired"))
			return
		}
		b.finishCheckout(owner, opts.SubscriptionID, res)
	}()
	return nil
}

// releaseCheckout detaches run from the owner's session. It reports false
// when run was already replaced or the session is gone.
func (b *Bot) releaseCheckout(owner int64, run *checkoutRun) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.Sessions[owner]
	if !ok || s.Checkout != run {
		return false
	}
	s.Checkout = nil
	return true
}

func (b *Bot) finishCheckout(owner int64, subscriptionID string, res checkout.Result) {
	switch {
	case res.Cancelled:
		b.clearCancelledPending(owner, subscriptionID)
		b.notify(owner, msg("checkout_cancel"))
		return
	case !res.Success:
		b.notify(owner, fmt.Sprintf(msg("checkout_failed"), res.Error.Message))
		return
	}

	b.notify(owner, msg("checkout_verify"))
	ctx := context.Background()
	subs := b.Services.Subscription()

	err := subs.ConfirmPayment(ctx, owner, models.PaymentConfirmation{
		PaymentID:      res.Data.PaymentID,
		SubscriptionID: res.Data.SubscriptionID,
		Signature:      res.Data.Signature,
	})
	if err != nil {
		// Capture may still land server side; the poll below has the last word.
		b.Log.Warning("capture confirmation failed", logger.Int64("owner_id", owner), logger.Error(err))
		b.notify(owner, fmt.Sprintf(msg("confirm_failed"), backend.UserMessage(err, "please wait")))
	}

	status, err := subs.PollSubscriptionStatus(ctx, owner, res.Data.SubscriptionID, b.Cfg.PollAttempts, b.Cfg.PollInterval)
	if err != nil {
		b.Log.Error("subscription poll aborted", logger.Int64("owner_id", owner), logger.Error(err))
	}
	if status == models.SubscriptionActive {
		if _, err := b.Services.Session().RefreshProfile(ctx, owner); err != nil {
			b.Log.Warning("profile refresh after payment failed", logger.Error(err))
		}
	}
	b.notify(owner, statusMessage(status))
}

// clearCancelledPending drops the pending record only when it still belongs
// to the cancelled checkout.
func (b *Bot) clearCancelledPending(owner int64, subscriptionID string) {
	ctx := context.Background()
	subs := b.Services.Subscription()

	pending, err := subs.GetPendingSubscription(ctx, owner)
	if err != nil {
		b.Log.Error("read pending subscription", logger.Int64("owner_id", owner), logger.Error(err))
		return
	}
	if pending == nil || pending.SubscriptionID != subscriptionID {
		return
	}
	if err := subs.ClearPendingSubscription(ctx, owner); err != nil {
		b.Log.Error("clear pending subscription", logger.Int64("owner_id", owner), logger.Error(err))
	}
}

func (b *Bot) handlePendingCheck(c tele.Context) error {
	ctx := context.Background()
	owner := c.Sender().ID
	subs := b.Services.Subscription()
	_ = c.Respond()

	pending, err := subs.GetPendingSubscription(ctx, owner)
	if err != nil {
		return b.fail(c, err)
	}
	if pending == nil {
		return b.sendPlans(c)
	}
	status, ok := subs.GetSubscriptionStatus(ctx, owner, pending.SubscriptionID)
	if !ok || !status.Resolved() {
		return c.Send(msg("sub_unknown"))
	}
	if err := subs.ClearPendingSubscription(ctx, owner); err != nil {
		b.Log.Error("clear pending subscription", logger.Error(err))
	}
	return c.Send(statusMessage(status))
}

func (b *Bot) handlePendingRestart(c tele.Context) error {
	_ = c.Respond()
	if err := b.Services.Subscription().ClearPendingSubscription(context.Background(), c.Sender().ID); err != nil {
		return b.fail(c, err)
	}
	return b.sendPlans(c)
}

func (b *Bot) handleVerification(c tele.Context) error {
	v, err := b.Services.Verification().Status(context.Background(), c.Sender().ID)
	if err != nil {
		return b.fail(c, err)
	}
	return c.Send(formatVerification(v))
}

var stepIcons = map[verification.StepState]string{
	verification.StepDone:    "✅",
	verification.StepActive:  "🔄",
	verification.StepFailed:  "❌",
	verification.StepWaiting: "⏳",
}

func formatVerification(v models.Verification) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(msg("verification_head"), strings.ReplaceAll(string(v.Overall), "_", " ")))
	for _, step := range verification.Steps(v) {
		sb.WriteString("\n" + stepIcons[step.State] + " " + step.Title)
	}
	return sb.String()
}

func (b *Bot) handleCallbackRequest(c tele.Context) error {
	if err := b.Services.Support().RequestCallback(context.Background(), c.Sender().ID, ""); err != nil {
		return b.fail(c, err)
	}
	return c.Send(msg("callback_request"))
}
