package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"truckmitr/pkg/logger"
	"truckmitr/pkg/models"
	"truckmitr/pkg/validate"
	"truckmitr/service"
)

var jobStepPrompts = map[string]string{
	service.JobStepTitle:       "Job title (e.g. Long haul driver):",
	service.JobStepLocation:    "Location:",
	service.JobStepSalary:      "Monthly salary, a figure or range (e.g. 15000-25000):",
	service.JobStepLicense:     "Required license: LMV, HMV, HGMV, HPMV or TRANS",
	service.JobStepSkills:      "Skills, comma separated (or - to skip):",
	service.JobStepDeadline:    "Application deadline (YYYY-MM-DD):",
	service.JobStepDescription: "Description (or - to skip):",
}

func (b *Bot) handleJobDraft(c tele.Context) error {
	d, err := b.Services.Job().Draft(context.Background(), c.Sender().ID)
	if err != nil {
		return b.fail(c, err)
	}
	b.setState(c.Sender().ID, StateJobDraft)
	return b.promptJobStep(c, d)
}

func (b *Bot) promptJobStep(c tele.Context, d *models.JobDraft) error {
	if d.Step == service.JobStepReview {
		b.setState(c.Sender().ID, StateIdle)
		menu := &tele.ReplyMarkup{}
		menu.Inline(menu.Row(
			menu.Data("✅ Post", "job_submit"),
			menu.Data("🗑 Discard", "job_reset"),
		))
		return c.Send(fmt.Sprintf(msg("job_review"), formatDraft(d)), menu)
	}
	return c.Send(fmt.Sprintf(msg("job_prompt"), jobStepPrompts[d.Step]))
}

func (b *Bot) handleJobInput(c tele.Context) error {
	d, err := b.Services.Job().ApplyStep(context.Background(), c.Sender().ID, c.Text())
	if err != nil {
		var verrs validate.Errors
		if asValidation(err, &verrs) && d != nil {
			return c.Send("❌ " + verrs.Error() + "\n" + jobStepPrompts[d.Step])
		}
		return b.fail(c, err)
	}
	return b.promptJobStep(c, d)
}

func (b *Bot) handleJobSubmit(c tele.Context) error {
	_ = c.Respond()
	job, err := b.Services.Job().Submit(context.Background(), c.Sender().ID)
	if err != nil {
		return b.fail(c, err)
	}
	return c.Send(fmt.Sprintf(msg("job_posted"), job.ID))
}

func (b *Bot) handleJobReset(c tele.Context) error {
	_ = c.Respond()
	if err := b.Services.Job().ResetDraft(context.Background(), c.Sender().ID); err != nil {
		return b.fail(c, err)
	}
	b.setState(c.Sender().ID, StateIdle)
	return c.Send(msg("job_reset"))
}

func formatDraft(d *models.JobDraft) string {
	skills := "-"
	if len(d.Skills) > 0 {
		skills = strings.Join(d.Skills, ", ")
	}
	desc := d.Description
	if desc == "" {
		desc = "-"
	}
	return fmt.Sprintf("💼 %s\n📍 %s\n💰 ₹%d - ₹%d\n🪪 %s\n🛠 %s\n📅 %s\n\n%s",
		d.Title, d.Location, d.SalaryMin, d.SalaryMax, d.LicenseType, skills,
		d.Deadline.Format("2006-01-02"), desc)
}

func (b *Bot) handleJobList(c tele.Context) error {
	jobs, err := b.Services.Job().List(context.Background(), c.Sender().ID)
	if err != nil {
		return b.fail(c, err)
	}
	if len(jobs) == 0 {
		return c.Send(msg("jobs_empty"))
	}

	for _, j := range jobs {
		txt := fmt.Sprintf("💼 #%d %s\n📍 %s\n💰 ₹%d - ₹%d\n🪪 %s", j.ID, j.Title, j.Location, j.SalaryMin, j.SalaryMax, j.LicenseType)
		if j.Deadline != "" {
			txt += "\n📅 " + j.Deadline
		}
		if b.Type != BotTypeDriver || j.Applied {
			if err := c.Send(txt); err != nil {
				return err
			}
			continue
		}
		menu := &tele.ReplyMarkup{}
		menu.Inline(menu.Row(menu.Data("📥 Apply", "job_apply", strconv.FormatInt(j.ID, 10))))
		if err := c.Send(txt, menu); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleJobApply(c tele.Context, payload string) error {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return c.Respond()
	}
	if err := b.Services.Job().Apply(context.Background(), c.Sender().ID, id); err != nil {
		_ = c.Respond()
		return b.fail(c, err)
	}
	return c.Respond(&tele.CallbackResponse{Text: msg("job_applied")})
}

func (b *Bot) handleImportStart(c tele.Context) error {
	b.setState(c.Sender().ID, StateJobImport)
	return c.Send(msg("import_prompt"))
}

func (b *Bot) handleDocument(c tele.Context) error {
	owner := c.Sender().ID
	if b.state(owner) != StateJobImport {
		return nil
	}
	doc := c.Message().Document

	rc, err := b.Bot.File(&doc.File)
	if err != nil {
		b.Log.Error("download import file", logger.Int64("owner_id", owner), logger.Error(err))
		return c.Send(msg("generic_error"))
	}
	defer rc.Close()

	err = b.Services.Job().Import(context.Background(), owner, doc.FileName, rc)
	if errors.Is(err, validate.ErrNotSpreadsheet) {
		return c.Send(msg("import_invalid"))
	}
	if err != nil {
		return b.fail(c, err)
	}
	b.setState(owner, StateIdle)
	return c.Send(msg("import_done"))
}

func asValidation(err error, target *validate.Errors) bool {
	return errors.As(err, target)
}
