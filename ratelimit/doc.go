// Package ratelimit bounds registration and mutation rates per caller
// with token buckets. Buckets start full, refill continuously over the
// configured window, and are pruned after sitting idle so the caller
// map stays bounded.
package ratelimit
