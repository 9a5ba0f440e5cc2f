package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/ClientImport/internal/schema"
)

// Rule names for the stages that are derived from the template rather than
// declared as Rule values.
const (
	RuleRequired = "required"
	RuleType     = "type"
	RuleUnique   = "unique"
)

// Stage orders rules. Stages always run in this order and every stage runs,
// whatever earlier stages found.
type Stage int

const (
	StageFormat Stage = iota + 2
	StageConsistency
)

// RuleContext carries what a rule may depend on besides the record.
type RuleContext struct {
	Today time.Time
}

// Rule is a format or consistency check. Check returns the violations it
// found; Severity is applied by the engine.
type Rule struct {
	Name     string
	Stage    Stage
	Severity Severity
	// Fields the rule reads. The rule is skipped when any of them failed
	// type coercion, and format rules are skipped when their field is empty.
	Fields []string
	Check  func(rec CandidateRecord, rc RuleContext) []FieldError
}

// MaxNameLength is the longest accepted client name, in characters.
const MaxNameLength = 200

var (
	taxIDRegex  = regexp.MustCompile(`^[A-Za-z0-9]{8,15}$`)
	emailRegex  = regexp.MustCompile(`^[^@\s]+@[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)+$`)
	countryRe   = regexp.MustCompile(`^[A-Za-z]{2}$`)
	usZIPRegex  = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	taxIDStrip  = strings.NewReplacer(" ", "", "-", "", ".", "", "/", "")
	phoneStrip  = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
	phoneDigits = regexp.MustCompile(`^\+?\d{7,15}$`)
)

// ClientRules returns the format and consistency rules for client records,
// in evaluation order.
func ClientRules() []Rule {
	return []Rule{
		textRule("taxIdentifier.format", schema.ColTaxIdentifier, SeverityError, func(s string) string {
			if !taxIDRegex.MatchString(taxIDStrip.Replace(s)) {
				return "must be 8 to 15 letters or digits"
			}
			return ""
		}),
		textRule("email.format", schema.ColEmail, SeverityError, func(s string) string {
			if !emailRegex.MatchString(s) {
				return fmt.Sprintf("%q is not a valid email address", s)
			}
			return ""
		}),
		textRule("phone.format", schema.ColPhone, SeverityError, func(s string) string {
			if !phoneDigits.MatchString(phoneStrip.Replace(s)) {
				return "must contain 7 to 15 digits"
			}
			return ""
		}),
		textRule("name.length", schema.ColName, SeverityError, func(s string) string {
			if utf8.RuneCountInString(s) > MaxNameLength {
				return fmt.Sprintf("must be at most %d characters", MaxNameLength)
			}
			return ""
		}),
		{
			Name:     "creditLimit.range",
			Stage:    StageFormat,
			Severity: SeverityError,
			Fields:   []string{schema.ColCreditLimit},
			Check: func(rec CandidateRecord, _ RuleContext) []FieldError {
				f, _ := rec.Field(schema.ColCreditLimit)
				if f.Number < 0 {
					return []FieldError{{Field: schema.ColCreditLimit, Message: "must not be negative"}}
				}
				return nil
			},
		},
		{
			Name:     "clientSince.range",
			Stage:    StageFormat,
			Severity: SeverityError,
			Fields:   []string{schema.ColClientSince},
			Check: func(rec CandidateRecord, rc RuleContext) []FieldError {
				f, _ := rec.Field(schema.ColClientSince)
				if f.Time.After(truncateDay(rc.Today)) {
					return []FieldError{{
						Field:   schema.ColClientSince,
						Message: fmt.Sprintf("%s is in the future", f.Time.Format("2006-01-02")),
					}}
				}
				return nil
			},
		},
		textRule("country.format", schema.ColCountry, SeverityWarning, func(s string) string {
			if !countryRe.MatchString(s) {
				return fmt.Sprintf("%q is not a 2-letter country code", s)
			}
			return ""
		}),
		{
			Name:     "contact.present",
			Stage:    StageConsistency,
			Severity: SeverityWarning,
			Fields:   []string{schema.ColEmail, schema.ColPhone},
			Check: func(rec CandidateRecord, _ RuleContext) []FieldError {
				if rec.Text(schema.ColEmail) == "" && rec.Text(schema.ColPhone) == "" {
					return []FieldError{{Field: schema.ColEmail, Message: "no email or phone given"}}
				}
				return nil
			},
		},
		{
			Name:     "postalCode.country",
			Stage:    StageConsistency,
			Severity: SeverityError,
			Fields:   []string{schema.ColPostalCode, schema.ColCountry},
			Check: func(rec CandidateRecord, _ RuleContext) []FieldError {
				if !strings.EqualFold(rec.Text(schema.ColCountry), "US") {
					return nil
				}
				zip := rec.Text(schema.ColPostalCode)
				if zip == "" || usZIPRegex.MatchString(zip) {
					return nil
				}
				return []FieldError{{
					Field:   schema.ColPostalCode,
					Message: fmt.Sprintf("%q is not a US ZIP code", zip),
				}}
			},
		},
		{
			Name:     "address.city",
			Stage:    StageConsistency,
			Severity: SeverityWarning,
			Fields:   []string{schema.ColAddress, schema.ColCity},
			Check: func(rec CandidateRecord, _ RuleContext) []FieldError {
				address, city := rec.Text(schema.ColAddress), rec.Text(schema.ColCity)
				switch {
				case address != "" && city == "":
					return []FieldError{{Field: schema.ColCity, Message: "address given without a city"}}
				case city != "" && address == "":
					return []FieldError{{Field: schema.ColAddress, Message: "city given without an address"}}
				}
				return nil
			},
		},
	}
}

// textRule builds a single-field format rule. check returns a message when
// the value is invalid.
func textRule(name, field string, sev Severity, check func(string) string) Rule {
	return Rule{
		Name:     name,
		Stage:    StageFormat,
		Severity: sev,
		Fields:   []string{field},
		Check: func(rec CandidateRecord, _ RuleContext) []FieldError {
			if msg := check(rec.Text(field)); msg != "" {
				return []FieldError{{Field: field, Message: msg}}
			}
			return nil
		},
	}
}

// applies reports whether r should run against rec.
func (r Rule) applies(rec CandidateRecord) bool {
	for _, name := range r.Fields {
		f, ok := rec.Field(name)
		if !ok {
			if r.Stage == StageFormat {
				return false
			}
			continue
		}
		if f.Present && f.CoerceErr != "" {
			return false
		}
		if r.Stage == StageFormat && !f.Present {
			return false
		}
	}
	return true
}
