package directory

import "github.com/Windi-Fikriyansyah/platform_be_care/internal/models"

// PriceRange bounds the hourly rate, both ends inclusive.
type PriceRange struct {
	Min int64
	Max int64
}

// Filter options are independent; a nil option imposes no constraint.
type Filter struct {
	ServiceType        *string
	MinExperienceYears *int
	MinRating          *float64
	PriceRange         *PriceRange
}

func (f Filter) Validate() error {
	if pr := f.PriceRange; pr != nil {
		if pr.Min < 0 || pr.Max < 0 {
			return &InvalidFilterError{Field: "price_range", Reason: "bounds must not be negative"}
		}
		if pr.Min > pr.Max {
			return &InvalidFilterError{Field: "price_range", Reason: "min_price is greater than max_price"}
		}
	}
	return nil
}

type predicate func(p *models.CaregiverProfile) bool

// predicates returns one check per set option, cheapest first.
func (f Filter) predicates() []predicate {
	var out []predicate
	if f.MinExperienceYears != nil {
		min := *f.MinExperienceYears
		out = append(out, func(p *models.CaregiverProfile) bool { return p.ExperienceYears >= min })
	}
	if f.MinRating != nil {
		min := *f.MinRating
		out = append(out, func(p *models.CaregiverProfile) bool { return p.AverageRating >= min })
	}
	if pr := f.PriceRange; pr != nil {
		lo, hi := pr.Min, pr.Max
		out = append(out, func(p *models.CaregiverProfile) bool { return p.HourlyRate >= lo && p.HourlyRate <= hi })
	}
	if f.ServiceType != nil {
		tag := *f.ServiceType
		out = append(out, func(p *models.CaregiverProfile) bool { return p.HasServiceType(tag) })
	}
	return out
}
