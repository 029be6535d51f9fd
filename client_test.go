package edms

import (
	"context"
	"testing"
	"time"

	"github.com/jinkaiteo/edms/internal/config"
	"github.com/jinkaiteo/edms/internal/events"
	"github.com/jinkaiteo/edms/internal/identity"
	"github.com/jinkaiteo/edms/internal/model"
	"github.com/jinkaiteo/edms/internal/service"
	"github.com/jinkaiteo/edms/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Notifications: config.NotificationConfig{Enabled: true, Publisher: "gochannel", Topic: "edms.notifications"},
		Emitter:       config.EmitterConfig{QueueSize: 16, MaxRetries: 1},
		Users: []identity.User{
			{ID: "alice", Roles: []identity.Role{identity.RoleAuthor}, Active: true},
			{ID: "bob", Roles: []identity.Role{identity.RoleReviewer}, Active: true},
		},
	}
}

func TestClientWiresNotifications(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := New(ctx, tester.FreshDB(t), testConfig())
	require.NoError(t, err)
	require.NotNil(t, c.Notifications)
	assert.Nil(t, c.Capabilities)

	messages, err := c.Notifications.Subscribe(ctx, "edms.notifications")
	require.NoError(t, err)

	doc, err := c.Documents.CreateDocument(ctx, "alice", service.CreateDocumentRequest{DocumentType: "SOP", Title: "Line clearance"})
	require.NoError(t, err)

	_, err = c.Workflow.ApplyTransition(ctx, doc.ID, service.ActionSubmitForReview, "alice", service.Payload{ReviewerID: "bob"})
	require.NoError(t, err)

	seen := map[string]bool{}
	timeout := time.After(5 * time.Second)
	for len(seen) < 2 {
		select {
		case msg := <-messages:
			seen[msg.Metadata.Get("action")] = true
			msg.Ack()
		case <-timeout:
			t.Fatalf("notifications not published, got %v", seen)
		}
	}
	assert.True(t, seen[string(service.ActionSubmitForReview)])

	require.NoError(t, c.Close())
}

func TestClientWithCapabilityCache(t *testing.T) {
	ctx := context.Background()
	_, server := tester.Redis(t)

	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Addr: server.Addr(), CapabilityTTL: time.Minute}
	cfg.Notifications.Enabled = false

	c, err := New(ctx, tester.FreshDB(t), cfg)
	require.NoError(t, err)
	require.NotNil(t, c.Capabilities)
	assert.Nil(t, c.Notifications)

	doc, err := c.Documents.CreateDocument(ctx, "alice", service.CreateDocumentRequest{DocumentType: "WI", Title: "Gowning"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, doc.Status)

	caps, err := c.Capabilities.GetCapabilities(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, caps)
	assert.True(t, caps.CanAuthor)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Emitter.Close(), events.ErrEmitterClosed)
}

func TestClientDeactivationReachesCachedCapabilities(t *testing.T) {
	ctx := context.Background()
	_, server := tester.Redis(t)

	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Addr: server.Addr(), CapabilityTTL: time.Minute}
	cfg.Notifications.Enabled = false

	c, err := New(ctx, tester.FreshDB(t), cfg)
	require.NoError(t, err)
	defer c.Close()

	doc, err := c.Documents.CreateDocument(ctx, "alice", service.CreateDocumentRequest{DocumentType: "SOP", Title: "Line clearance"})
	require.NoError(t, err)

	// assigning bob caches his capabilities
	_, err = c.Workflow.ApplyTransition(ctx, doc.ID, service.ActionSubmitForReview, "alice", service.Payload{ReviewerID: "bob"})
	require.NoError(t, err)
	caps, err := c.Capabilities.GetCapabilities(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, caps)
	require.True(t, caps.Active)

	c.Users.Deactivate("bob")

	caps, err = c.Capabilities.GetCapabilities(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, caps)

	_, err = c.Workflow.ApplyTransition(ctx, doc.ID, service.ActionStartReview, "bob", service.Payload{})
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestClientRejectsUnknownCodec(t *testing.T) {
	cfg := testConfig()
	cfg.Kafka = config.KafkaConfig{Brokers: []string{"localhost:9092"}, Compression: "zip"}

	_, err := New(context.Background(), tester.FreshDB(t), cfg)
	assert.Error(t, err)
}
