package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var eventTypes = []string{
	"product_view",
	"product_detail_expand",
	"cart_add",
	"checkout_start",
	"search",
}

func main() {
	targetURL := flag.String("url", "http://localhost:8080/events", "Target URL for event tracking")
	storeID := flag.String("store", "load-test-store", "Store ID to emit events under")
	sessions := flag.Int("sessions", 50, "Number of distinct sessions to simulate")
	products := flag.Int("products", 20, "Number of distinct products to reference")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 1000, "Requests per second limit")
	flag.Parse()

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d, Sessions: %d, Products: %d",
		*concurrency, *duration, *rps, *sessions, *products)

	// Fixed session pool so revisit detection and lead scoring get
	// exercised, not just raw ingestion.
	sessionIDs := make([]string, *sessions)
	for i := range sessionIDs {
		sessionIDs[i] = uuid.NewString()
	}

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

			for {
				select {
				case <-ctx.Done():
					return
				default:
					limiter.Wait(ctx) // Wait for token from rate limiter

					session := sessionIDs[rng.Intn(len(sessionIDs))]
					product := fmt.Sprintf("product-%d", rng.Intn(*products))
					eventType := eventTypes[rng.Intn(len(eventTypes))]
					payload := fmt.Sprintf(`{"store_id": "%s", "event_type": "%s", "entity_type": "product", "entity_id": "%s"}`,
						*storeID, eventType, product)

					req, err := http.NewRequestWithContext(ctx, http.MethodPost, *targetURL, bytes.NewBufferString(payload))
					if err != nil {
						continue // Should not happen
					}
					req.Header.Set("Content-Type", "application/json")
					req.Header.Set("X-Session-ID", session)

					resp, err := client.Do(req)
					if err != nil {
						errorCount.Add(1)
						continue
					}

					if resp.StatusCode == http.StatusAccepted {
						successCount.Add(1)
					} else {
						errorCount.Add(1)
					}
					resp.Body.Close()
				}
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful (202 Accepted): %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
}
