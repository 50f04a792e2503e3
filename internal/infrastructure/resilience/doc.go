/*
Package resilience provides a circuit breaker for calls into external
processes that can fail repeatedly, such as starting the browser.

# Usage

	breaker := resilience.New("browser-launch", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	bctx, err := resilience.Call(breaker, func() (browser.Context, error) {
		return driver.Launch(ctx, opts)
	})
	if resilience.IsRejected(err) {
		// cooling down; the launch was not attempted
	}

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                            |
	                                        [failure]
	                                            v
	                                           Open
*/
package resilience
