// Package fetch executes HTTP requests against the business-data API and
// turns their bodies into generic JSON mappings. It classifies every failure
// into one of a fixed set of kinds so that callers can react without parsing
// error strings.
package fetch
