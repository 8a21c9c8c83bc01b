package entries

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mamadbah2/stationledger/internal/ledger"
)

// ValidationError lists the rejected fields of a patch, keyed by json name with
// the failed rule as value. It unwraps to the matching ledger sentinel.
type ValidationError struct {
	Err    error
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name, tag := range e.Fields {
		names = append(names, name+"="+tag)
	}
	sort.Strings(names)
	return fmt.Sprintf("%v: %s", e.Err, strings.Join(names, ", "))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.Sign()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

func translateValidation(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	out := &ValidationError{Err: ErrInvalidArguments, Fields: make(map[string]string, len(ve))}
	for _, fe := range ve {
		out.Fields[fe.Field()] = fe.Tag()
		switch fe.Field() {
		case "input", "output":
			out.Err = ledger.ErrNegativeQuantity
		case "unitPriceInput", "unitPriceOutput":
			if out.Err == ErrInvalidArguments {
				out.Err = ledger.ErrNegativePrice
			}
		}
	}
	return out
}
