//go:build integration

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"github.com/pashumandi/mandi-gateway/internal/usecase/support"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNatsURL string

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not construct pool: %s", err)
	}
	if err := pool.Client.Ping(); err != nil {
		log.Fatalf("Could not connect to Docker: %s", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "nats",
		Tag:        "2.10",
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start NATS resource: %s", err)
	}
	testNatsURL = fmt.Sprintf("nats://%s", resource.GetHostPort("4222/tcp"))

	if err := pool.Retry(func() error {
		nc, errRetry := nats.Connect(testNatsURL)
		if errRetry != nil {
			return errRetry
		}
		nc.Close()
		return nil
	}); err != nil {
		log.Fatalf("Could not connect to NATS: %s", err)
	}

	code := m.Run()
	if err := pool.Purge(resource); err != nil {
		log.Printf("Could not purge NATS resource: %s", err)
	}
	os.Exit(code)
}

func newBus(t *testing.T, subject string) *InvalidationBus {
	t.Helper()
	bus, err := NewInvalidationBus(&config.NATSConfig{URL: testNatsURL, Subject: subject, ConnectTimeout: 2 * time.Second}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(bus.Close)
	return bus
}

func TestInvalidationBus_PeersApplyEachOthersKeys(t *testing.T) {
	subject := fmt.Sprintf("test.invalidate.%d", time.Now().UnixNano())
	a, b := newBus(t, subject), newBus(t, subject)

	keys := []query.Key{query.NewKey("listings")}
	applied := make(chan struct{}, 1)
	peer := new(MockApplier)
	peer.On("ApplyRemote", mock.Anything, keys).Return(nil).Run(func(mock.Arguments) { applied <- struct{}{} })
	self := new(MockApplier)

	require.NoError(t, b.Subscribe(peer))
	require.NoError(t, a.Subscribe(self))
	require.NoError(t, a.nc.Flush())
	require.NoError(t, b.nc.Flush())

	require.NoError(t, a.Broadcast(context.Background(), keys))

	select {
	case <-applied:
	case <-time.After(3 * time.Second):
		t.Fatal("peer never applied the invalidation")
	}
	self.AssertNotCalled(t, "ApplyRemote", mock.Anything, mock.Anything)
}

func TestTicketPublisher(t *testing.T) {
	bus := newBus(t, "")
	subject := fmt.Sprintf("test.tickets.%d", time.Now().UnixNano())

	nc, err := nats.Connect(testNatsURL)
	require.NoError(t, err)
	defer nc.Close()
	sub, err := nc.SubscribeSync(subject)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	ticket := support.Ticket{ID: "t-1", FullName: "Ramesh", Issue: "Payment not reflected", ReceivedAt: time.Now().UTC()}
	require.NoError(t, bus.Tickets(subject).SubmitTicket(context.Background(), ticket))

	msg, err := sub.NextMsg(3 * time.Second)
	require.NoError(t, err)
	var got support.Ticket
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "t-1", got.ID)
	assert.Equal(t, "Payment not reflected", got.Issue)
}
