// Package classifier turns errors into HTTP statuses, machine-readable
// error codes and user messages.
//
// Classification is table driven. Errors created with the apierror package
// are dispatched on their Kind; errors produced by drivers and libraries
// (gorm, the MongoDB driver, database/sql, validator, context deadlines) are
// matched by predicates. New categories are added by extending the table
// with WithRules rather than by adding branches.
//
// Anything unmatched takes the catch-all: status 500, code INTERNAL_ERROR and
// a generic message that never contains the original error text.
package classifier
