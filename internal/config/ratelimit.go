package config

import "time"

// RateLimitConfig configures one token-bucket limiter.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // ip, user, phone, ip_route, ip_user_route
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the general API limiter (RATE_LIMIT_*).
func LoadRateLimitConfig() RateLimitConfig {
	return loadRateLimit("RATE_LIMIT", RateLimitConfig{
		Enabled:        true,
		Capacity:       60,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_user_route",
		Prefix:         "rl",
	})
}

// LoadOTPRateLimitConfig reads the limiter in front of code requests
// (OTP_RATE_LIMIT_*).
func LoadOTPRateLimitConfig() RateLimitConfig {
	return loadRateLimit("OTP_RATE_LIMIT", RateLimitConfig{
		Enabled:        true,
		Capacity:       3,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            30 * time.Minute,
		KeyStrategy:    "phone",
		Prefix:         "rl:otp",
	})
}

// LoadOTPConfirmRateLimitConfig reads the limiter in front of code checks
// (OTP_CONFIRM_RATE_LIMIT_*). It bounds guessing across handles for one phone.
func LoadOTPConfirmRateLimitConfig() RateLimitConfig {
	return loadRateLimit("OTP_CONFIRM_RATE_LIMIT", RateLimitConfig{
		Enabled:        true,
		Capacity:       10,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            30 * time.Minute,
		KeyStrategy:    "phone",
		Prefix:         "rl:otpc",
	})
}

func loadRateLimit(prefix string, def RateLimitConfig) RateLimitConfig {
	c := RateLimitConfig{
		Enabled:        envBool(prefix+"_ENABLED", def.Enabled),
		Capacity:       envInt(prefix+"_CAPACITY", def.Capacity),
		RefillTokens:   envInt(prefix+"_REFILL_TOKENS", def.RefillTokens),
		RefillInterval: envDur(prefix+"_REFILL_INTERVAL", def.RefillInterval),
		TTL:            envDur(prefix+"_TTL", def.TTL),
		KeyStrategy:    envStr(prefix+"_KEY_STRATEGY", def.KeyStrategy),
		Prefix:         envStr(prefix+"_PREFIX", def.Prefix),
		Debug:          envBool(prefix+"_DEBUG", false),
	}
	if b := envInt(prefix+"_BURST", -1); b > 0 {
		c.Capacity = b
	}
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	// Buckets must outlive a full refill, or idle clients reset early.
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}
