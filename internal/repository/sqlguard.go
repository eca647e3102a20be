package repository

import (
	"regexp"
)

// forbiddenKeywords matches DDL/DML statements that must never reach the
// database through the report path. Matching is word-bounded so column names
// like "update_count" pass.
var forbiddenKeywords = regexp.MustCompile(`(?i)\b(DROP|ALTER|CREATE|DELETE|INSERT|UPDATE|TRUNCATE|GRANT|REVOKE)\b`)

// IsReadOnlySQL reports whether the statement is free of DDL/DML keywords.
// The raw-SQL execution boundary refuses anything that fails this check and
// returns an empty result set instead of executing it.
func IsReadOnlySQL(sql string) bool {
	return !forbiddenKeywords.MatchString(sql)
}
