// Package ratelimit throttles confirmation and password recovery requests.
//
// MemoryLimiter keeps token buckets per key in process; RedisLimiter counts
// fixed windows in Redis so several instances share one budget. Both satisfy
// Limiter, which the confirmation and recovery services consult per address
// and which Middleware applies per client IP.
package ratelimit
