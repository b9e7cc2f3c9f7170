package models

import "time"

type JobDraft struct {
	Title       string    `json:"title" validate:"required,min=3,max=120"`
	Location    string    `json:"location" validate:"required"`
	SalaryMin   int       `json:"salary_min" validate:"gte=0"`
	SalaryMax   int       `json:"salary_max" validate:"gtefield=SalaryMin"`
	LicenseType string    `json:"license_type" validate:"required,oneof=LMV HMV HGMV HPMV TRANS"`
	Skills      []string  `json:"skills"`
	Deadline    time.Time `json:"deadline" validate:"required,future"`
	Description string    `json:"description" validate:"max=2000"`
	Step        string    `json:"step"`
}

type Job struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	SalaryMin   int       `json:"salary_min"`
	SalaryMax   int       `json:"salary_max"`
	LicenseType string    `json:"license_type"`
	Deadline    string    `json:"deadline"`
	Description string    `json:"description"`
	Applied     bool      `json:"applied"`
	CreatedAt   time.Time `json:"created_at"`
}
