/*
Package resilience guards the bridge's reconnect loop.

# Overview

When the worker process dies or is restarting, the bridge keeps trying to
reconnect. Backoff spaces those attempts out and Breaker stops them
entirely for a cooldown after a run of consecutive dial failures.

# Usage

	breaker := resilience.New("worker", resilience.Settings{
		Threshold: 5,
		Cooldown:  30 * time.Second,
	})
	backoff := resilience.DefaultBackoff()

	for {
		err := breaker.Do(dial)
		if err == nil {
			backoff.Reset()
			break
		}
		time.Sleep(max(backoff.Next(), breaker.RetryAfter()))
	}

# States

	Closed --[Threshold failures]-> Open --[Cooldown]-> Half-Open --[Trials successes]-> Closed
	                                                      |
	                                                  [failure]
	                                                      v
	                                                     Open
*/
package resilience
