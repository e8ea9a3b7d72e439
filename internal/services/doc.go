// Package services implements the HTTP clients the sync runs against.
//
// # Source
//
// [KomootService] implements [Source]. [KomootService.Authenticate] performs the
// basic-auth handshake against /v006/account/email/{email}/ and keeps the returned
// user id and token; every later request authenticates with email and token.
// Listings are filtered to recorded tours and paginated with limit/page; the
// HAL body carries the tours under _embedded.tours and the page count under
// page.totalPages.
//
// # Destination
//
// [StravaService] implements [Destination] using [oauth2] with the refresh-token
// grant (credentials sent in the request body). Uploads are streamed through an
// [io.Pipe] as multipart/form-data; the content is never held in memory whole.
//
// # Errors
//
// Non-2xx responses become [*HTTPError] with a truncated body. Reads that fail
// mid-download become [*StreamReadError]. Missing credentials and calls before
// authentication use the sentinels in the shared package:
//   - [shared.ErrMissingCredentials]
//   - [shared.ErrNotAuthenticated]
//   - [shared.ErrRefreshFailed]
//
// Both clients throttle with a [rate.Limiter] and must be authenticated before
// they are shared between goroutines.
package services
