package runtime

import "time"

// Policy is a job type's retry contract. Backoff is constant between attempts.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Backoff: time.Minute, Timeout: 10 * time.Minute}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	return p
}
