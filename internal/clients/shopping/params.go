package shopping

import (
	"fmt"
	"github.com/pkg/errors"
	"net/url"
	"strconv"
)

var ErrTooDeepPagination = errors.New("too deep pagination")

//the provider caps result windows at start+display <= 1100
const maxResults = 1100

type SearchParameters struct {
	Keyword string
	Page    int
	PerPage int
	Sort    string
}

func (s SearchParameters) Validate() error {

	if s.Keyword == "" {
		return fmt.Errorf("keyword must not be empty")
	}

	if s.Page < 1 {
		return fmt.Errorf("page must be positive")
	}

	if s.PerPage < 1 || s.PerPage > 100 {
		return fmt.Errorf("per page must be between 1 and 100")
	}

	if s.start()+s.PerPage > maxResults {
		return ErrTooDeepPagination
	}

	return nil
}

func (s SearchParameters) start() int {
	return (s.Page-1)*s.PerPage + 1
}

func (s SearchParameters) ToUrlParams() url.Values {

	params := url.Values{}
	params.Add("query", s.Keyword)
	params.Add("start", strconv.Itoa(s.start()))
	params.Add("display", strconv.Itoa(s.PerPage))

	if s.Sort != "" {
		params.Add("sort", s.Sort)
	}

	return params
}
