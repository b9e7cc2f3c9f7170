package service

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"truckmitr/pkg/models"
	"truckmitr/pkg/validate"
)

// Steps of the job posting wizard, in order.
const (
	JobStepTitle       = "title"
	JobStepLocation    = "location"
	JobStepSalary      = "salary"
	JobStepLicense     = "license"
	JobStepSkills      = "skills"
	JobStepDeadline    = "deadline"
	JobStepDescription = "description"
	JobStepReview      = "review"
)

var jobSteps = []string{
	JobStepTitle,
	JobStepLocation,
	JobStepSalary,
	JobStepLicense,
	JobStepSkills,
	JobStepDeadline,
	JobStepDescription,
	JobStepReview,
}

const deadlineLayout = "2006-01-02"

// skipInput leaves an optional field empty.
const skipInput = "-"

var ErrDraftComplete = errors.New("job draft is complete")

func nextJobStep(step string) string {
	for i, s := range jobSteps {
		if s == step && i+1 < len(jobSteps) {
			return jobSteps[i+1]
		}
	}
	return JobStepReview
}

// ReduceJobDraft applies one line of user input to the draft's current step.
// On a validation error the draft is returned unchanged.
func ReduceJobDraft(d models.JobDraft, input string, now time.Time) (models.JobDraft, error) {
	input = strings.TrimSpace(input)
	if d.Step == "" {
		d.Step = JobStepTitle
	}
	next := d

	switch d.Step {
	case JobStepTitle:
		if n := len([]rune(input)); n < 3 || n > 120 {
			return d, validate.Errors{"title": "must be 3 to 120 characters"}
		}
		next.Title = input
	case JobStepLocation:
		if input == "" {
			return d, validate.Errors{"location": "is required"}
		}
		next.Location = input
	case JobStepSalary:
		lo, hi, err := parseSalary(input)
		if err != nil {
			return d, err
		}
		next.SalaryMin, next.SalaryMax = lo, hi
	case JobStepLicense:
		lt := strings.ToUpper(input)
		switch lt {
		case "LMV", "HMV", "HGMV", "HPMV", "TRANS":
		default:
			return d, validate.Errors{"license_type": "must be one of LMV HMV HGMV HPMV TRANS"}
		}
		next.LicenseType = lt
	case JobStepSkills:
		next.Skills = nil
		if input != skipInput {
			for _, s := range strings.Split(input, ",") {
				if s = strings.TrimSpace(s); s != "" {
					next.Skills = append(next.Skills, s)
				}
			}
		}
	case JobStepDeadline:
		t, err := time.ParseInLocation(deadlineLayout, input, now.Location())
		if err != nil {
			return d, validate.Errors{"deadline": "use YYYY-MM-DD"}
		}
		if err := validate.FutureDate("deadline", t, now); err != nil {
			return d, err
		}
		next.Deadline = t
	case JobStepDescription:
		if input == skipInput {
			input = ""
		}
		if len([]rune(input)) > 2000 {
			return d, validate.Errors{"description": "must be at most 2000"}
		}
		next.Description = input
	default:
		return d, ErrDraftComplete
	}

	next.Step = nextJobStep(d.Step)
	return next, nil
}

// parseSalary accepts "15000-25000" or a single figure.
func parseSalary(s string) (int, int, error) {
	s = strings.ReplaceAll(s, ",", "")
	from, to, ranged := strings.Cut(s, "-")
	lo, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil || lo < 0 {
		return 0, 0, validate.Errors{"salary": "use a number or a range like 15000-25000"}
	}
	if !ranged {
		return lo, lo, nil
	}
	hi, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return 0, 0, validate.Errors{"salary": "use a number or a range like 15000-25000"}
	}
	if hi < lo {
		return 0, 0, validate.Errors{"salary_max": "must not be less than salary_min"}
	}
	return lo, hi, nil
}
