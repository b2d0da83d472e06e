package hh

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

var ErrTooDeepPagination = errors.New("too deep pagination")

// AreaRussia is the hh.ru area id covering the whole country.
const AreaRussia = "113"

type SearchParameters struct {
	Text                   string
	AreaID                 string
	OrderByPublicationTime bool
	DateFrom               time.Time
	Period                 int
	Page                   int
	PerPage                int
}

func (s SearchParameters) Validate() error {

	if s.Text == "" {
		return fmt.Errorf("text must not be empty")
	}

	if s.Period != 0 && !s.DateFrom.IsZero() {
		return fmt.Errorf("can't use both period and dateFrom")
	}

	if s.Page < 0 {
		return fmt.Errorf("page must be non-negative")
	}

	if s.PerPage <= 0 || s.PerPage > 100 {
		return fmt.Errorf("per page must be between 1 and 100")
	}

	maxResults := 2000
	maxPage := maxResults / s.PerPage
	if s.Page >= maxPage {
		return ErrTooDeepPagination
	}

	return nil
}

func (s SearchParameters) ToUrlParams() url.Values {

	params := url.Values{}
	params.Add("text", s.Text)

	if s.AreaID != "" {
		params.Add("area", s.AreaID)
	}

	params.Add("page", strconv.Itoa(s.Page))
	params.Add("per_page", strconv.Itoa(s.PerPage))

	if s.OrderByPublicationTime {
		params.Add("order_by", "publication_time")
	}

	if s.Period != 0 {
		params.Add("period", strconv.Itoa(s.Period))
	}

	if !s.DateFrom.IsZero() {
		params.Add("date_from", s.DateFrom.Format("2006-01-02T15:04:05-0700"))
	}

	return params
}
