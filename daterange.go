package main

import (
	"fmt"
	"os"
	"time"
)

type dateRange struct {
	from time.Time
	to   time.Time
}

// parseDateRange parses two YYYY-MM-DD dates and validates their order.
func parseDateRange(from, to string) (dateRange, error) {
	var r dateRange
	var err error

	if r.from, err = time.Parse(time.DateOnly, from); err != nil {
		return dateRange{}, fmt.Errorf("%w: datefrom %q: expected a date like 2022-05-31", os.ErrInvalid, from)
	}

	if r.to, err = time.Parse(time.DateOnly, to); err != nil {
		return dateRange{}, fmt.Errorf("%w: dateto %q: expected a date like 2022-05-31", os.ErrInvalid, to)
	}

	if r.from.After(r.to) {
		return dateRange{}, fmt.Errorf("%w: datefrom %s is after dateto %s", os.ErrInvalid, from, to)
	}

	return r, nil
}
