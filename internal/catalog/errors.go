package catalog

import pkgerrors "github.com/thevault/register/pkg/errors"

var errNoSearcher = pkgerrors.New(pkgerrors.CodeDependency, "catalog unavailable")

func errorMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return err.Error()
}
