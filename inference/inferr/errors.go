package inferr

import (
	"fmt"
	"log/slog"
)

type Errors struct {
	errs []InferenceError
}

func (r *Errors) With(err ...InferenceError) *Errors {
	if r == nil {
		return &Errors{errs: err}
	}
	r.errs = append(r.errs, err...)
	return r
}

func (r *Errors) Errors() []InferenceError {
	if r == nil {
		return nil
	}
	return r.errs
}

func (r *Errors) HasError() bool {
	if r == nil {
		return false
	}
	return len(r.errs) > 0
}

func (r *Errors) Error() string {
	if !r.HasError() {
		return "no errors"
	}
	if len(r.errs) == 1 {
		return FormatWithCode(r.errs[0])
	}
	return fmt.Sprintf("%s (and %d more errors)", FormatWithCode(r.errs[0]), len(r.errs)-1)
}

func (r *Errors) LogValue() slog.Value {
	var vals []slog.Attr
	for i, v := range r.Errors() {
		vals = append(vals, slog.Attr{
			Key: fmt.Sprint("e", i),
			Value: slog.GroupValue(
				slog.Attr{
					Key:   "msg",
					Value: slog.StringValue(FormatWithCode(v)),
				},
			),
		})
	}
	return slog.GroupValue(vals...)
}
