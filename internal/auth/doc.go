// Package auth carries authenticated identity through request handling.
//
// The combined middleware resolves each request to an AuthContext of
// {user, organization} from one of two credentials: the browser session
// cookie, always checked first, or an Authorization bearer token as the
// fallback for legacy API clients. A request failing both paths gets a
// generic 401 with no hint of which credential was rejected.
package auth
