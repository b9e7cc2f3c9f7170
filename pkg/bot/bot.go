package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"

	"truckmitr/config"
	"truckmitr/pkg/backend"
	"truckmitr/pkg/checkout"
	"truckmitr/pkg/logger"
	"truckmitr/pkg/models"
	"truckmitr/pkg/validate"
	"truckmitr/service"
)

type BotType string

const (
	BotTypeDriver      BotType = "driver"
	BotTypeTransporter BotType = "transporter"
)

// Role is the backend role allowed to use this bot.
func (t BotType) Role() string {
	if t == BotTypeTransporter {
		return models.RoleTransporter
	}
	return models.RoleDriver
}

type videoRef struct {
	ModuleID int64
	VideoID  string
}

// checkoutRun is one open payment link. A newer run replaces it in the
// session; a replaced run finishes silently.
type checkoutRun struct {
	SubscriptionID string
	cancel         context.CancelFunc
}

type UserSession struct {
	State    string
	OTP      *service.OTPFlow
	Video    *videoRef
	QuizFor  int64
	Checkout *checkoutRun
}

type Bot struct {
	Type     BotType
	Bot      *tele.Bot
	Log      logger.ILogger
	Cfg      *config.Config
	Services service.IServiceManager
	Gateway  *checkout.CallbackGateway
	Checkout *checkout.Wrapper
	Peer     *Bot // the other role's bot, for notifications

	mu       sync.Mutex
	Sessions map[int64]*UserSession
}

const (
	StateIdle          = "idle"
	StateAwaitContact  = "awaiting_contact"
	StateOTP           = "awaiting_otp"
	StateVideoPosition = "awaiting_video_position"
	StateQuiz          = "awaiting_quiz_answers"
	StateJobDraft      = "awaiting_job_field"
	StateJobImport     = "awaiting_job_file"
)

func New(botType BotType, cfg *config.Config, services service.IServiceManager, gateway *checkout.CallbackGateway, log logger.ILogger) (*Bot, error) {
	token := cfg.DriverBotToken
	if botType == BotTypeTransporter {
		token = cfg.TransporterBotToken
	}

	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error("telegram handler failed", logger.String("bot", string(botType)), logger.Error(err))
		},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}
	bot := &Bot{
		Type:     botType,
		Bot:      b,
		Log:      log.With(logger.String("bot", string(botType))),
		Cfg:      cfg,
		Services: services,
		Gateway:  gateway,
		Checkout: checkout.NewWrapper(gateway, log),
		Sessions: make(map[int64]*UserSession),
	}
	bot.registerHandlers()
	return bot, nil
}

func (b *Bot) Start() {
	b.Log.Info(fmt.Sprintf("🤖 %s bot started", b.Type))
	b.Bot.Start()
}

func (b *Bot) Stop() {
	b.Bot.Stop()
}

var messages = map[string]map[string]string{
	"en": {
		"welcome":          "👋 Welcome to TruckMitr!",
		"contact_msg":      "Share your phone number to log in:",
		"share_contact":    "📱 Share number",
		"own_contact":      "Please share your own number.",
		"otp_sent":         "🔐 We sent a 6-digit code to %s. Type it here.",
		"otp_progress":     "%d/6 digits entered",
		"otp_wait":         "⏳ Checking your code...",
		"otp_retry":        "❌ %s\nType the code again.",
		"logged_in":        "✅ Logged in as %s",
		"logged_out":       "👋 Logged out.",
		"login_first":      "🔐 Please log in first with /start",
		"no_entry_driver":  "🚫 This bot is for drivers. Please use the transporter bot.",
		"no_entry_transp":  "🚫 This bot is for transporters. Please use the driver bot.",
		"menu_driver":      "🚚 Driver menu:",
		"menu_transporter": "🏢 Transporter menu:",
		"generic_error":    "⚠️ Something went wrong. Please try again.",

		"plans":             "💳 Choose a plan:",
		"no_plans":          "📭 No plans available right now.",
		"pending_found":     "🕓 You have an unfinished checkout for plan %s.",
		"checkout_open":     "💳 Tap the button to pay. The link stays valid for %s.",
		"pay_now":           "💳 Pay now",
		"checkout_cancel":   "❌ Payment cancelled. You can pick a plan again any time.",
		"checkout_expired":  "⌛ The payment link expired. Open 💳 Subscription to check the status or start over.",
		"checkout_failed":   "❌ %s",
		"checkout_verify":   "⏳ Payment received, confirming with TruckMitr...",
		"sub_active":        "🎉 Your subscription is active!",
		"sub_halted":        "⚠️ Your subscription is halted. Please contact support.",
		"sub_cancelled":     "❌ Your subscription was cancelled.",
		"sub_processing":    "⏳ Payment is still processing. We will message you once it is confirmed.",
		"sub_unknown":       "🕓 No update yet for your checkout.",
		"confirm_failed":    "⚠️ We could not confirm the payment: %s",
		"callback_request":  "📞 Thanks! Our team will call you back shortly.",
		"verification_head": "🛡 Verification: %s",

		"modules":        "🎓 Training modules:",
		"no_modules":     "📭 No training modules yet.",
		"video_play":     "▶️ %s\n%s",
		"video_resume":   "⏩ Resume from %s",
		"video_hint":     "When you pause, send the timestamp (mm:ss) and we will remember it.",
		"video_saved":    "💾 Saved at %s",
		"video_done":     "✅ Marked as watched.",
		"quiz_prompt":    "📝 Send your answers as question-option pairs, e.g. 1a 2c 3b",
		"quiz_result":    "📝 Score: %d/%d",
		"quiz_passed":    "🎉 Passed! You can download your certificate.",
		"quiz_failed":    "❌ Not passed this time. Review the videos and try again.",
		"cert_ready":     "📄 Your certificate",
		"job_prompt":     "✏️ %s",
		"job_review":     "📋 Review your job post:\n\n%s",
		"job_posted":     "✅ Job #%d posted.",
		"job_reset":      "🗑 Draft discarded.",
		"jobs_empty":     "📭 No jobs right now.",
		"job_applied":    "✅ Applied!",
		"import_prompt":  "📤 Send the .xlsx file with your jobs.",
		"import_done":    "✅ Import uploaded. Jobs will appear after processing.",
		"import_invalid": "❌ Only .xlsx files can be imported.",
	},
}

func msg(key string) string {
	return messages["en"][key]
}

func (b *Bot) registerHandlers() {
	b.Bot.Handle("/start", b.handleStart)
	b.Bot.Handle("/logout", b.handleLogout)
	b.Bot.Handle(tele.OnContact, b.handleContact)

	b.Bot.Handle(btnSubscribe, b.handleSubscribe)
	b.Bot.Handle(btnCallback, b.handleCallbackRequest)
	b.Bot.Handle(btnLogout, b.handleLogout)

	if b.Type == BotTypeDriver {
		b.Bot.Handle(btnVerification, b.handleVerification)
		b.Bot.Handle(btnTraining, b.handleModules)
		b.Bot.Handle(btnJobs, b.handleJobList)
	} else {
		b.Bot.Handle(btnPostJob, b.handleJobDraft)
		b.Bot.Handle(btnMyJobs, b.handleJobList)
		b.Bot.Handle(btnImport, b.handleImportStart)
		b.Bot.Handle(tele.OnDocument, b.handleDocument)
	}

	b.Bot.Handle(tele.OnCallback, b.handleCallback)
	b.Bot.Handle(tele.OnText, b.handleText)
}

const (
	btnSubscribe    = "💳 Subscription"
	btnCallback     = "📞 Call me back"
	btnLogout       = "🚪 Logout"
	btnVerification = "🛡 Verification"
	btnTraining     = "🎓 Training"
	btnJobs         = "💼 Jobs"
	btnPostJob      = "➕ Post job"
	btnMyJobs       = "📋 My jobs"
	btnImport       = "📤 Import jobs"
)

func (b *Bot) session(owner int64) *UserSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.Sessions[owner]
	if !ok {
		s = &UserSession{State: StateIdle}
		b.Sessions[owner] = s
	}
	return s
}

func (b *Bot) setState(owner int64, state string) {
	s := b.session(owner)
	b.mu.Lock()
	s.State = state
	b.mu.Unlock()
}

func (b *Bot) state(owner int64) string {
	s := b.session(owner)
	b.mu.Lock()
	defer b.mu.Unlock()
	return s.State
}

func (b *Bot) dropSession(owner int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.Sessions[owner]; ok && s.Checkout != nil {
		s.Checkout.cancel()
	}
	delete(b.Sessions, owner)
}

func (b *Bot) handleStart(c tele.Context) error {
	ctx := context.Background()
	owner := c.Sender().ID

	user, err := b.Services.Session().CurrentUser(ctx, owner)
	if err != nil {
		b.setState(owner, StateAwaitContact)
		menu := &tele.ReplyMarkup{ResizeKeyboard: true}
		menu.Reply(menu.Row(menu.Contact(msg("share_contact"))))
		return c.Send(msg("welcome")+"\n"+msg("contact_msg"), menu)
	}
	b.setState(owner, StateIdle)
	return b.showMenu(c, user)
}

func (b *Bot) showMenu(c tele.Context, user *models.User) error {
	if user.Role != b.Type.Role() {
		// Both bots share the owner's session; only this bot's chat state goes.
		b.Log.Info("role not served by this bot",
			logger.Int64("owner_id", c.Sender().ID),
			logger.String("role", user.Role),
		)
		b.dropSession(c.Sender().ID)
		if b.Type == BotTypeDriver {
			return c.Send(msg("no_entry_driver"), tele.RemoveKeyboard)
		}
		return c.Send(msg("no_entry_transp"), tele.RemoveKeyboard)
	}

	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	if b.Type == BotTypeDriver {
		menu.Reply(
			menu.Row(menu.Text(btnVerification), menu.Text(btnSubscribe)),
			menu.Row(menu.Text(btnTraining), menu.Text(btnJobs)),
			menu.Row(menu.Text(btnCallback), menu.Text(btnLogout)),
		)
		return c.Send(msg("menu_driver"), menu)
	}
	menu.Reply(
		menu.Row(menu.Text(btnPostJob), menu.Text(btnMyJobs)),
		menu.Row(menu.Text(btnImport), menu.Text(btnSubscribe)),
		menu.Row(menu.Text(btnCallback), menu.Text(btnLogout)),
	)
	return c.Send(msg("menu_transporter"), menu)
}

func (b *Bot) handleText(c tele.Context) error {
	owner := c.Sender().ID
	switch b.state(owner) {
	case StateOTP:
		return b.handleOTPInput(c)
	case StateVideoPosition:
		return b.handleVideoPosition(c)
	case StateQuiz:
		return b.handleQuizAnswers(c)
	case StateJobDraft:
		return b.handleJobInput(c)
	}
	return nil
}

// handleCallback routes inline buttons. Buttons are built as
// menu.Data(label, action, payload) and arrive as "\f<action>|<payload>".
func (b *Bot) handleCallback(c tele.Context) error {
	action, payload := parseCallback(c.Callback().Data)

	switch action {
	case "plan":
		return b.handlePlanSelected(c, payload)
	case "pay_check":
		return b.handlePendingCheck(c)
	case "pay_restart":
		return b.handlePendingRestart(c)
	case "module":
		return b.handleModule(c, payload)
	case "play":
		return b.handlePlay(c, payload)
	case "watched":
		return b.handleWatched(c, payload)
	case "quiz":
		return b.handleQuizStart(c, payload)
	case "cert":
		return b.handleCertificate(c, payload)
	case "job_apply":
		return b.handleJobApply(c, payload)
	case "job_submit":
		return b.handleJobSubmit(c)
	case "job_reset":
		return b.handleJobReset(c)
	}
	return c.Respond()
}

func parseCallback(data string) (string, string) {
	data = strings.TrimPrefix(data, "\f")
	action, payload, _ := strings.Cut(data, "|")
	return action, payload
}

// fail tells the user what went wrong in the most specific words available.
func (b *Bot) fail(c tele.Context, err error) error {
	var verrs validate.Errors
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return c.Send(msg("login_first"))
	case errors.As(err, &verrs):
		return c.Send("❌ " + verrs.Error())
	}
	b.Log.Error("request failed", logger.Int64("owner_id", c.Sender().ID), logger.Error(err))
	return c.Send(backend.UserMessage(err, msg("generic_error")))
}

func (b *Bot) notify(owner int64, text string) {
	if _, err := b.Bot.Send(&tele.User{ID: owner}, text); err != nil {
		b.Log.Error("notify failed", logger.Int64("owner_id", owner), logger.Error(err))
	}
}

// SubscriptionResolved is called by the pending sweep; the message goes out
// through whichever bot serves the owner's role.
func (b *Bot) SubscriptionResolved(owner int64, status models.SubscriptionStatus) {
	target := b
	if user, err := b.Services.Session().CurrentUser(context.Background(), owner); err == nil &&
		user.Role != b.Type.Role() && b.Peer != nil {
		target = b.Peer
	}
	target.notify(owner, statusMessage(status))
}

func statusMessage(status models.SubscriptionStatus) string {
	switch status {
	case models.SubscriptionActive:
		return msg("sub_active")
	case models.SubscriptionHalted:
		return msg("sub_halted")
	case models.SubscriptionCancelled:
		return msg("sub_cancelled")
	case "":
		return msg("sub_processing")
	}
	return msg("sub_unknown")
}
