// Package querystats feeds data-access activity into the request scope.
//
// Each interceptor looks up the *scope.Scope carried by the operation
// context and records on it; operations issued without a request scope are
// ignored. GormPlugin and NewMongoMonitor count statements and their
// duration, RedisHook counts cache hits and misses.
package querystats
