package bot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	tele "gopkg.in/telebot.v3"

	"truckmitr/pkg/models"
	"truckmitr/pkg/validate"
)

func (b *Bot) handleModules(c tele.Context) error {
	modules, err := b.Services.Video().Modules(context.Background(), c.Sender().ID)
	if err != nil {
		return b.fail(c, err)
	}
	if len(modules) == 0 {
		return c.Send(msg("no_modules"))
	}

	menu := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(modules))
	for _, m := range modules {
		label := m.Title
		if m.Complete {
			label = "✅ " + label
		}
		rows = append(rows, menu.Row(menu.Data(label, "module", strconv.FormatInt(m.ID, 10))))
	}
	menu.Inline(rows...)
	return c.Send(msg("modules"), menu)
}

func (b *Bot) findModule(ctx context.Context, owner, id int64) (*models.VideoModule, error) {
	modules, err := b.Services.Video().Modules(ctx, owner)
	if err != nil {
		return nil, err
	}
	for i := range modules {
		if modules[i].ID == id {
			return &modules[i], nil
		}
	}
	return nil, nil
}

func (b *Bot) handleModule(c tele.Context, payload string) error {
	_ = c.Respond()
	id, _ := strconv.ParseInt(payload, 10, 64)
	m, err := b.findModule(context.Background(), c.Sender().ID, id)
	if err != nil {
		return b.fail(c, err)
	}
	if m == nil {
		return c.Send(msg("no_modules"))
	}

	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, v := range m.Videos {
		label := "▶️ " + v.Title
		if v.Watched {
			label = "✅ " + v.Title
		}
		rows = append(rows, menu.Row(menu.Data(label, "play", videoPayload(m.ID, v.ID))))
	}
	if m.HasQuiz {
		rows = append(rows, menu.Row(menu.Data("📝 Take quiz", "quiz", payload)))
	}
	menu.Inline(rows...)
	return c.Send("🎓 "+m.Title, menu)
}

func videoPayload(moduleID int64, videoID string) string {
	return strconv.FormatInt(moduleID, 10) + ":" + videoID
}

func parseVideoPayload(p string) (videoRef, bool) {
	mod, vid, ok := strings.Cut(p, ":")
	if !ok || vid == "" {
		return videoRef{}, false
	}
	id, err := strconv.ParseInt(mod, 10, 64)
	if err != nil {
		return videoRef{}, false
	}
	return videoRef{ModuleID: id, VideoID: vid}, true
}

func (b *Bot) handlePlay(c tele.Context, payload string) error {
	_ = c.Respond()
	ref, ok := parseVideoPayload(payload)
	if !ok {
		return nil
	}
	ctx := context.Background()
	owner := c.Sender().ID

	m, err := b.findModule(ctx, owner, ref.ModuleID)
	if err != nil {
		return b.fail(c, err)
	}
	var video *models.Video
	if m != nil {
		for i := range m.Videos {
			if m.Videos[i].ID == ref.VideoID {
				video = &m.Videos[i]
			}
		}
	}
	if video == nil {
		return c.Send(msg("no_modules"))
	}

	s := b.session(owner)
	b.mu.Lock()
	s.Video = &ref
	s.State = StateVideoPosition
	b.mu.Unlock()

	text := fmt.Sprintf(msg("video_play"), video.Title, video.URL)
	pos, ok, err := b.Services.Video().Progress(ctx, owner, ref.VideoID)
	if err != nil {
		return b.fail(c, err)
	}
	if ok {
		text += "\n" + fmt.Sprintf(msg("video_resume"), formatPosition(pos))
	}
	text += "\n\n" + msg("video_hint")

	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(menu.Data("✅ Watched", "watched", payload)))
	return c.Send(text, menu)
}

func (b *Bot) handleVideoPosition(c tele.Context) error {
	owner := c.Sender().ID
	s := b.session(owner)
	b.mu.Lock()
	ref := s.Video
	b.mu.Unlock()
	if ref == nil {
		b.setState(owner, StateIdle)
		return nil
	}

	pos, ok := parsePosition(c.Text())
	if !ok {
		return c.Send(msg("video_hint"))
	}
	if err := b.Services.Video().SaveProgress(context.Background(), owner, ref.VideoID, pos); err != nil {
		return b.fail(c, err)
	}
	return c.Send(fmt.Sprintf(msg("video_saved"), formatPosition(pos)))
}

func (b *Bot) handleWatched(c tele.Context, payload string) error {
	_ = c.Respond()
	ref, ok := parseVideoPayload(payload)
	if !ok {
		return nil
	}
	owner := c.Sender().ID
	if err := b.Services.Video().Complete(context.Background(), owner, ref.ModuleID, ref.VideoID); err != nil {
		return b.fail(c, err)
	}
	s := b.session(owner)
	b.mu.Lock()
	s.Video = nil
	s.State = StateIdle
	b.mu.Unlock()
	return c.Send(msg("video_done"))
}

// parsePosition reads "mm:ss", "h:mm:ss" or plain seconds.
func parsePosition(s string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return float64(total), true
}

func formatPosition(sec float64) string {
	s := int(sec)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s%3600/60, s%60)
	}
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func (b *Bot) handleQuizStart(c tele.Context, payload string) error {
	_ = c.Respond()
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return nil
	}
	s := b.session(c.Sender().ID)
	b.mu.Lock()
	s.QuizFor = id
	s.State = StateQuiz
	b.mu.Unlock()
	return c.Send(msg("quiz_prompt"))
}

var answerRegex = regexp.MustCompile(`(\d+)\s*[-.:)]?\s*([A-Za-z])`)

// parseAnswers reads "1a 2c 3-b" style answers.
func parseAnswers(s string) []models.QuizAnswer {
	var out []models.QuizAnswer
	for _, m := range answerRegex.FindAllStringSubmatch(s, -1) {
		q, _ := strconv.ParseInt(m[1], 10, 64)
		out = append(out, models.QuizAnswer{QuestionID: q, Option: string(unicode.ToLower(rune(m[2][0])))})
	}
	return out
}

func (b *Bot) handleQuizAnswers(c tele.Context) error {
	owner := c.Sender().ID
	s := b.session(owner)
	b.mu.Lock()
	moduleID := s.QuizFor
	b.mu.Unlock()

	answers := parseAnswers(c.Text())
	if len(answers) == 0 {
		return c.Send(msg("quiz_prompt"))
	}
	res, err := b.Services.Quiz().Submit(context.Background(), owner, moduleID, answers)
	if err != nil {
		var verrs validate.Errors
		if asValidation(err, &verrs) {
			return c.Send(msg("quiz_prompt"))
		}
		return b.fail(c, err)
	}
	b.setState(owner, StateIdle)

	text := fmt.Sprintf(msg("quiz_result"), res.Score, res.Total)
	if !res.Passed {
		return c.Send(text + "\n" + msg("quiz_failed"))
	}
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(menu.Data("📄 Certificate", "cert", strconv.FormatInt(moduleID, 10))))
	return c.Send(text+"\n"+msg("quiz_passed"), menu)
}

func (b *Bot) handleCertificate(c tele.Context, payload string) error {
	_ = c.Respond()
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return nil
	}
	cert, err := b.Services.Certificate().Generate(context.Background(), c.Sender().ID, id)
	if err != nil {
		return b.fail(c, err)
	}
	return c.Send(&tele.Document{
		File:     tele.FromDisk(cert.Path),
		FileName: cert.FileName,
		Caption:  msg("cert_ready"),
	})
}
