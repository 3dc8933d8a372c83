package database

import (
	"net/url"
	"strings"
)

// ConstructDatabaseURL joins a server URL and a database name into a connection URL.
// An empty database name returns baseURL untouched. Existing query parameters are kept
// and sslmode=disable is added when no sslmode is given.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		// Fall back to plain concatenation for URLs net/url rejects
		return strings.TrimRight(baseURL, "/") + "/" + databaseName + "?sslmode=disable"
	}

	// Any path already on the base URL names a database, replace it
	parsed.Path = "/" + databaseName
	parsed.RawPath = ""

	query := parsed.Query()
	if query.Get("sslmode") == "" {
		query.Set("sslmode", "disable")
	}
	parsed.RawQuery = query.Encode()

	return parsed.String()
}
