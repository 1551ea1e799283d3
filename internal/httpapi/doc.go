// Package httpapi exposes snagbox over HTTP.
//
// Signup and passkey ceremony routes are public; every other route runs
// behind the combined auth middleware and is scoped to the authenticated
// user's current organization. Service errors map to statuses in one place
// (errors.go): credential failures collapse into a generic 401, business
// rule violations keep specific messages, and anything unexpected becomes a
// logged 500.
package httpapi
