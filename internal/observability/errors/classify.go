package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	apperrors "github.com/pdsapp/pds/internal/errors"
	"github.com/pdsapp/pds/internal/ports"
)

// sentinels get stable metric names regardless of how they were wrapped.
var sentinels = []struct {
	err  error
	name string
}{
	{context.DeadlineExceeded, "timeout"},
	{context.Canceled, "canceled"},
	{domainauth.ErrNoIdentity, "no_identity"},
	{domainauth.ErrNoDashboard, "no_dashboard"},
	{ports.ErrNotFound, "not_found"},
}

// Classify names err for the error_class metric tag. Known sentinels,
// identity provider rejections and AppError codes get fixed names; anything
// else is named after its innermost concrete type.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for _, s := range sentinels {
		if goerrors.Is(err, s.err) {
			return s.name
		}
	}
	var pe *ports.ProviderError
	if goerrors.As(err, &pe) {
		if pe.Code == "" {
			return "provider"
		}
		return "provider_" + strings.ToLower(pe.Code)
	}
	if code := apperrors.CodeOf(err); code != "" {
		return string(code)
	}
	return typeName(innermost(err))
}

func innermost(err error) error {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.String() == "" {
		return "unknown"
	}
	return strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
}
