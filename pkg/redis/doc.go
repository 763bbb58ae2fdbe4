// Package redis connects to a Redis server with go-redis and exposes a
// health probe for readiness endpoints.
//
// Redis is optional: an empty REDIS_URL leaves Config.Enabled false and the
// caller falls back to in-process alternatives.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package redis
