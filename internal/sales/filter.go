package sales

import (
	"strings"
	"time"

	"github.com/thevault/register/pkg/enums"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
	dateLayout     = "2006-01-02"
)

// Filter narrows a sales listing. Zero values mean "no filter".
type Filter struct {
	Search        string              `json:"search,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"payment_method,omitempty"`
	Status        enums.SaleStatus    `json:"status,omitempty"`
	From          time.Time           `json:"from,omitempty"`
	To            time.Time           `json:"to,omitempty"`
	Page          int                 `json:"page"`
	PerPage       int                 `json:"per_page"`
}

// Normalize clamps paging and trims the search text.
func (f Filter) Normalize() Filter {
	f.Search = strings.TrimSpace(f.Search)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	return f
}

// DateFrom and DateTo render the bounds in the back office's date format.
func (f Filter) DateFrom() string { return formatDate(f.From) }
func (f Filter) DateTo() string   { return formatDate(f.To) }

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// ParseDate reads a YYYY-MM-DD filter bound; empty input is the zero time.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, value)
}

// Page is one page of a sales listing, newest first.
type Page struct {
	Sales []Sale `json:"sales"`
	Page  int    `json:"page"`
	Pages int    `json:"pages"`
	Total int    `json:"total"`
}
