// Package redisstream carries hub traffic over Redis Streams so several
// xchat processes can share one aggregated feed.
//
// Transport name: "redis-streams". Config keys mirror Config fields in
// snake_case (addr, group, consumer, concurrency, batch_size, block,
// auto_create, dead_letter, max_len_approx, claim_min_idle, ...).
//
//	tr, err := redisstream.Open(redisstream.Defaults())
//	if err != nil { ... }
//	go xchat.Forward(ctx, hub, tr, "chat")
package redisstream
