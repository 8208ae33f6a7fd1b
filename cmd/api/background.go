package main

import (
	"context"
	"time"
)

func (app *application) expireStalePaymentsEvery(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			n, err := app.checkout.ExpireStalePending(context.Background(), time.Now())
			if err != nil {
				app.logger.Errorf("Error expiring stale payment intents: %v", err)
				continue
			}
			if n > 0 {
				app.logger.Infof("Expired %d stale payment intents", n)
			}
		}
	}()
}
