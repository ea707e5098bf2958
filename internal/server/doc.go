// Package server provides HTTP routing, middleware and the local control API for a running engine.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns.
//
// # Control API
//
// [ControlHandler] exposes status, pass history, refresh and sync over HTTP so that scripts can drive a long-running
// `offline watch` without taking the directory lock themselves. [Serve] runs it until the context is done.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
