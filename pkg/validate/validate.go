// Package validate runs the form checks that happen before any network call.
package validate

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	otpRegex    = regexp.MustCompile(`^[0-9]{6}$`)
	mobileRegex = regexp.MustCompile(`^[6-9][0-9]{9}$`)

	ErrNotSpreadsheet = errors.New("only .xlsx files can be imported")
)

const OTPLength = 6

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	_ = val.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return otpRegex.MatchString(fl.Field().String())
	})
	_ = val.RegisterValidation("mobile_in", func(fl validator.FieldLevel) bool {
		return mobileRegex.MatchString(fl.Field().String())
	})
	_ = val.RegisterValidation("future", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		return ok && t.After(time.Now())
	})
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return val
}

// Errors maps a field name to a human readable problem.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return strings.Join(parts, "; ")
}

func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := Errors{}
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "otp":
		return fmt.Sprintf("must be %d digits", OTPLength)
	case "mobile_in":
		return "must be a 10 digit mobile number"
	case "future":
		return "must be a future date"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gtefield":
		return "must not be less than " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}

// NormalizeMobile strips spaces, dashes and an Indian country prefix.
func NormalizeMobile(s string) string {
	s = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "+")
	if len(s) == 12 && strings.HasPrefix(s, "91") {
		s = s[2:]
	}
	return s
}

// FutureDate rejects dates that are not strictly after now.
func FutureDate(field string, t, now time.Time) error {
	if !t.After(now) {
		return Errors{field: "must be a future date"}
	}
	return nil
}

// Spreadsheet sniffs a bulk-import upload. Real validation happens server side.
func Spreadsheet(name string, head []byte) error {
	if !strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return ErrNotSpreadsheet
	}
	ct := http.DetectContentType(head)
	if ct != "application/zip" && ct != "application/octet-stream" {
		return ErrNotSpreadsheet
	}
	return nil
}
