package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core"
)

var (
	orderingParam    = "ordering"
	createdFromParam = "created_from"
	createdToParam   = "created_to"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func bindOrdering(ctx echo.Context) []core.DBOrdering {
	ordering := new(Ordering)
	ordering.Bind(ctx)
	return ordering.Orderings
}

// bindCreatedRange reads the created_from & created_to query params (RFC3339 or YYYY-MM-DD).
func bindCreatedRange(ctx echo.Context, from, to *time.Time) error {
	var err error
	if *from, err = parseTimeParam(ctx, createdFromParam); err != nil {
		return err
	}
	*to, err = parseTimeParam(ctx, createdToParam)
	return err
}

func parseTimeParam(ctx echo.Context, name string) (time.Time, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, val); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: name, Error: "invalid date"})
}

// bindBody binds the request into data, turning binding failures into a 400.
func bindBody(ctx echo.Context, data interface{}) error {
	if err := ctx.Bind(data); err != nil {
		if herr, ok := err.(*echo.HTTPError); ok {
			return herr
		}
		return errors.Wrap(err, "binding request")
	}
	return nil
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)
