// Package validation enforces the `validate` tags of request contracts. Every failure is
// an apierr schema violation carrying one FieldViolation per broken rule, and nothing is
// persisted for a request that fails here.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/yungbote/promptstudy-backend/internal/platform/apierr"
)

// participantIDPattern also keeps the ID usable as a storage namespace.
var participantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type FieldViolation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

var (
	once     sync.Once
	instance *validator.Validate
)

func validate() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("participant_id", func(fl validator.FieldLevel) bool {
			return ValidParticipantID(fl.Field().String())
		})
		instance = v
	})
	return instance
}

func ValidParticipantID(id string) bool {
	return participantIDPattern.MatchString(id)
}

// Struct validates one request contract.
func Struct(v any) error {
	violations, err := check(v, "")
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		return nil
	}
	return apierr.SchemaViolation(summarize(violations), violations)
}

// Slice validates a batch. An empty batch or any invalid element rejects the whole batch.
func Slice[T any](items []T) error {
	if len(items) == 0 {
		v := []FieldViolation{{Field: "", Rule: "min", Param: "1"}}
		return apierr.SchemaViolation(errors.New("batch must contain at least one item"), v)
	}
	var all []FieldViolation
	for i := range items {
		violations, err := check(&items[i], fmt.Sprintf("[%d].", i))
		if err != nil {
			return err
		}
		all = append(all, violations...)
	}
	if len(all) == 0 {
		return nil
	}
	return apierr.SchemaViolation(summarize(all), all)
}

func check(v any, prefix string) ([]FieldViolation, error) {
	err := validate().Struct(v)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, fmt.Errorf("validate: %w", err)
	}
	out := make([]FieldViolation, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldViolation{
			Field: prefix + fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out, nil
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func summarize(v []FieldViolation) error {
	parts := make([]string, 0, len(v))
	for _, fv := range v {
		if fv.Param != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fv.Field, fv.Rule, fv.Param))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fv.Field, fv.Rule))
		}
	}
	return fmt.Errorf("invalid request: %s", strings.Join(parts, "; "))
}

// DecodeError turns a JSON body that cannot be decoded into a schema violation.
func DecodeError(err error) error {
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return apierr.SchemaViolation(
			fmt.Errorf("invalid request: %s must be %s", field, typeErr.Type),
			[]FieldViolation{{Field: field, Rule: "type", Param: typeErr.Type.String()}},
		)
	}
	if errors.Is(err, io.EOF) {
		return apierr.SchemaViolation(errors.New("invalid request: empty body"),
			[]FieldViolation{{Field: "body", Rule: "required"}})
	}
	return apierr.SchemaViolation(fmt.Errorf("invalid request: %w", err),
		[]FieldViolation{{Field: "body", Rule: "json"}})
}
