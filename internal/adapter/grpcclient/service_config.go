package grpcclient

import (
	"encoding/json"
	"fmt"
	"time"
)

const serviceName = "mandi.Backend"

// readMethods are safe to retry; writes are never retried.
var readMethods = []string{
	"getListings", "getAllListings", "getListing", "getPendingListings", "getAllListingsAdmin",
	"getCallerUserProfile", "getMyProfile", "getProfile", "getMobileNumber",
	"getConversation", "listConversations",
	"isCallerAdmin", "getAllMobileNumbers", "getAllUsersWithActivity",
	"getTotalListingsCount", "getPendingListingsCount", "getApprovedListingsCount",
	"getTotalUsersCount", "getTotalLoginsCount",
}

type methodName struct {
	Service string `json:"service"`
	Method  string `json:"method,omitempty"`
}

type retryPolicy struct {
	MaxAttempts          int      `json:"maxAttempts"`
	InitialBackoff       string   `json:"initialBackoff"`
	MaxBackoff           string   `json:"maxBackoff"`
	BackoffMultiplier    float64  `json:"backoffMultiplier"`
	RetryableStatusCodes []string `json:"retryableStatusCodes"`
}

type methodConfig struct {
	Name        []methodName `json:"name"`
	Timeout     string       `json:"timeout"`
	RetryPolicy *retryPolicy `json:"retryPolicy,omitempty"`
}

type serviceConfig struct {
	MethodConfig []methodConfig `json:"methodConfig"`
}

func protoDuration(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ServiceConfig bounds every call by callTimeout and retries reads on
// UNAVAILABLE with exponential backoff.
func ServiceConfig(callTimeout time.Duration, maxReadAttempts int, initialBackoff, maxBackoff time.Duration) (string, error) {
	reads := methodConfig{Timeout: protoDuration(callTimeout)}
	for _, m := range readMethods {
		reads.Name = append(reads.Name, methodName{Service: serviceName, Method: m})
	}
	// gRPC rejects a retry policy with fewer than two attempts.
	if maxReadAttempts >= 2 {
		reads.RetryPolicy = &retryPolicy{
			MaxAttempts:          maxReadAttempts,
			InitialBackoff:       protoDuration(initialBackoff),
			MaxBackoff:           protoDuration(maxBackoff),
			BackoffMultiplier:    2,
			RetryableStatusCodes: []string{"UNAVAILABLE"},
		}
	}

	cfg := serviceConfig{MethodConfig: []methodConfig{
		reads,
		{Name: []methodName{{Service: serviceName}}, Timeout: protoDuration(callTimeout)},
	}}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("grpcclient.ServiceConfig: %w", err)
	}
	return string(raw), nil
}
