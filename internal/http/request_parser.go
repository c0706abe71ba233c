// This file implements request body decoding and query parameter parsing.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"saldi/internal/core"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed input that never reached validation.
var errBadRequest = errors.New("bad request")

// decodeJSON reads one JSON object into dst, rejecting unknown fields and
// trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// Amount accepts a JSON string or number and parses it with core.ParseAmount,
// so "12,50" and 12.5 are both valid.
type Amount struct {
	Set   bool
	Value decimal.Decimal
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*a = Amount{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = s
	}
	if strings.TrimSpace(raw) == "" {
		*a = Amount{}
		return nil
	}
	v, err := core.ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = Amount{Set: true, Value: v}
	return nil
}

type accountRequest struct {
	Name string `json:"name"`
}

type categoryRequest struct {
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
}

type recordRequest struct {
	AccountID      string    `json:"accountId"`
	CategoryID     string    `json:"categoryId"`
	Date           core.Date `json:"date"`
	MovementAmount Amount    `json:"movementAmount"`
	RefundAmount   Amount    `json:"refundAmount"`
	Description    string    `json:"description"`
}

func (req recordRequest) movement() core.Movement {
	return core.Movement{
		AccountID:   strings.TrimSpace(req.AccountID),
		CategoryID:  strings.TrimSpace(req.CategoryID),
		Date:        req.Date,
		Amount:      req.MovementAmount.Value,
		Refund:      req.RefundAmount.Value,
		Description: sanitizeInput(req.Description),
	}
}

// rangeQuery holds the common accountId/startDate/endDate filter.
type rangeQuery struct {
	AccountID string
	From, To  *core.Date
}

func parseRangeQuery(q url.Values) (rangeQuery, error) {
	from, err := parseDateParam(q, "startDate")
	if err != nil {
		return rangeQuery{}, err
	}
	to, err := parseDateParam(q, "endDate")
	if err != nil {
		return rangeQuery{}, err
	}
	return rangeQuery{
		AccountID: strings.TrimSpace(q.Get("accountId")),
		From:      from,
		To:        to,
	}, nil
}

// parseDateParam returns nil for an absent parameter.
func parseDateParam(q url.Values, key string) (*core.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errBadRequest, key, err)
	}
	return &d, nil
}

func parseBoolParam(q url.Values, key string) (bool, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", errBadRequest, key)
	}
	return b, nil
}

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
