// Package server runs the short-lived local HTTP server that receives Strava's
// OAuth redirect during `stramoot auth strava`.
//
// # Router
//
// [BasicRouter] wraps [http.ServeMux] with a middleware stack. Middleware is
// applied in reverse order, so the first one added is the outermost.
// [Logging] records each request on a charmbracelet logger.
//
// # OAuth Callback
//
// [OAuthHandler] accepts exactly one callback. It checks the state token,
// confirms the granted scopes, exchanges the code through a [CodeExchanger]
// and delivers a single [OAuthResult] on its result channel.
//
// [CallbackServer] binds the router to the address from the server config
// section and shuts down once the result has been read.
package server
