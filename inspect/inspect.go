// Package inspect decodes request input into structs and validates it. Validation failures surface as
// unexpected-value errors naming the offending field, which the dispatcher renders as 400 responses.
package inspect

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/advdv/broute"
	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// Inspector decodes and validates request input.
type Inspector struct {
	validate  *validator.Validate
	strict    bool
	finalizes []func(v any) error
}

// Option configures an [Inspector].
type Option func(*Inspector)

// WithStrict rejects JSON bodies with fields the destination does not declare.
func WithStrict() Option {
	return func(in *Inspector) { in.strict = true }
}

// WithFinalize adds a check that runs on the destination after every field is valid, for rules that span fields.
// An error that is not already a [broute.Error] is rendered as a bad request.
func WithFinalize(fn func(v any) error) Option {
	return func(in *Inspector) { in.finalizes = append(in.finalizes, fn) }
}

// New inits an inspector. Fields are reported by their json name.
func New(opts ...Option) *Inspector {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		if name == "" {
			return f.Name
		}

		return name
	})

	in := &Inspector{validate: v}
	for _, opt := range opts {
		opt(in)
	}

	return in
}

// Validator returns the underlying validator, for registering custom rules.
func (in *Inspector) Validator() *validator.Validate { return in.validate }

// Inspect decodes the JSON body of r into dst, a pointer to a struct, and validates it. An empty body leaves dst
// as it is, so defaults can be set beforehand.
func (in *Inspector) Inspect(r *http.Request, dst any) error {
	if err := in.decode(r, dst); err != nil {
		return err
	}

	return in.Check(dst)
}

// Check validates v by its `validate` tags and runs the finalize checks.
func (in *Inspector) Check(v any) error {
	if err := in.validate.Struct(v); err != nil {
		return fieldError(err)
	}

	for _, fn := range in.finalizes {
		if err := fn(v); err != nil {
			if broute.KindOf(err) != broute.KindUnknown {
				return err
			}

			return broute.NewBadRequestError(err.Error(), broute.WithCause(err))
		}
	}

	return nil
}

// Param returns the route parameter name of r after validating it against rules, e.g. "required,uuid4".
func (in *Inspector) Param(r *http.Request, name, rules string) (string, error) {
	val := broute.Param(r, name)
	if err := in.validate.Var(val, rules); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return "", unexpectedValue(name, verrs[0])
		}

		return "", errors.Wrapf(err, "validate %s", name)
	}

	return val, nil
}

func (in *Inspector) decode(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || (mt != broute.MediaTypeJSON && !strings.HasSuffix(mt, "+json")) {
			return broute.NewBadRequestError(fmt.Sprintf("unsupported content type %q", ct))
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.Wrap(err, "read request body")
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	api := sonic.ConfigStd
	if in.strict {
		api = strictJSON
	}

	if err := api.Unmarshal(body, dst); err != nil {
		return broute.NewBadRequestError("malformed request body", broute.WithCause(err))
	}

	return nil
}

var strictJSON = sonic.Config{CopyString: true, ValidateString: true, DisallowUnknownFields: true}.Froze()

// fieldError reports the first failed field of a validation error.
func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Wrap(err, "validate")
	}

	fe := verrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	return unexpectedValue(field, fe)
}

func unexpectedValue(field string, fe validator.FieldError) error {
	msg := fmt.Sprintf("%s must satisfy %q", field, fe.Tag())
	if fe.Param() != "" {
		msg = fmt.Sprintf("%s must satisfy %q with %q", field, fe.Tag(), fe.Param())
	}

	return broute.NewUnexpectedValueError(field, msg, broute.WithContext(map[string]any{
		"rule":  fe.Tag(),
		"param": fe.Param(),
	}))
}
