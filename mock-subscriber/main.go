// mock-subscriber is a standalone endpoint for exercising deliveries
// locally. Set SECRET to the plaintext secret returned at subscription
// creation and it will verify signatures the way a real consumer should.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/bookwise/webhook-service/internal/signature"
)

var requestCount atomic.Int64

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	signingKey := ""
	if secret := os.Getenv("SECRET"); secret != "" {
		signingKey = signature.DeriveKey(secret)
	}

	// Successful endpoint — always returns 200
	http.HandleFunc("/webhook/success", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		verified := verify(r, signingKey)
		logRequest(r, count, 200, verified)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "received"})
	})

	// Slow endpoint — delays 3 seconds, useful for timeout testing
	http.HandleFunc("/webhook/slow", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		time.Sleep(3 * time.Second)
		logRequest(r, count, 200, verify(r, signingKey))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "received (slow)"})
	})

	// Failing endpoint — always returns 500, exercises the retry path
	http.HandleFunc("/webhook/fail", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(r, count, 500, verify(r, signingKey))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	})

	// Strict endpoint — 403 unless the signature checks out
	http.HandleFunc("/webhook/strict", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		verified := verify(r, signingKey)
		status := http.StatusOK
		if !verified {
			status = http.StatusForbidden
		}
		logRequest(r, count, status, verified)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]bool{"verified": verified})
	})

	// Stats endpoint — shows request count
	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"total_requests": requestCount.Load()})
	})

	log.Printf("Mock subscriber starting on :%s", port)
	log.Printf("  POST /webhook/success  -> 200 OK")
	log.Printf("  POST /webhook/slow     -> 200 OK (3s delay)")
	log.Printf("  POST /webhook/fail     -> 500 Error")
	log.Printf("  POST /webhook/strict   -> 200 if signed, 403 otherwise")
	log.Printf("  GET  /stats            -> request count")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func verify(r *http.Request, signingKey string) bool {
	if signingKey == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	return signature.Verify(body, signingKey, r.Header.Get(signature.Header))
}

func logRequest(r *http.Request, count int64, status int, verified bool) {
	fmt.Printf("[#%d] %s %s -> %d | verified=%t event=%s attempt=%s\n",
		count,
		r.Method,
		r.URL.Path,
		status,
		verified,
		r.Header.Get("X-Webhook-Event"),
		r.Header.Get("X-Webhook-Attempt"),
	)
}
