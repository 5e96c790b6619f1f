package validators

import (
	"net/http"

	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
)

// QueryString returns the sanitized query parameter. An empty value is not an error;
// search endpoints treat it as "clear the results".
func QueryString(r *http.Request, key string, maxLen int) string {
	return SanitizeString(r.URL.Query().Get(key), maxLen)
}

// PathParam sanitizes a route parameter and rejects blanks.
func PathParam(value, field string, maxLen int) (string, error) {
	value = SanitizeString(value, maxLen)
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "path parameter is required").WithDetails(map[string]any{"field": field})
	}
	return value, nil
}
