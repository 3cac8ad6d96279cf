package db

import (
	"strings"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed
// database, typically while the service is shutting down.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is closed.
// The sql package returns its own unwrapped error for this, hence the message match.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
