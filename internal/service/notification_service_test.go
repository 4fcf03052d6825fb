package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/provider-admission-api/internal/models"
	"github.com/noah-isme/provider-admission-api/pkg/jobs"
	"github.com/noah-isme/provider-admission-api/pkg/mailer"
)

type fakeMailSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailSender) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestRenderNotificationTemplates(t *testing.T) {
	subjects := make(map[string]models.ApplicationStatus)
	notes := "Please add <b>measurable</b> results"
	for _, status := range []models.ApplicationStatus{
		models.ApplicationStatusSubmitted,
		models.ApplicationStatusInReview,
		models.ApplicationStatusApproved,
		models.ApplicationStatusRejected,
	} {
		tpl, err := renderNotification(models.NotificationRequest{
			ApplicationID: "app-1",
			Status:        status,
			RecipientName: "Jane",
			ReviewerNotes: &notes,
		})
		require.NoError(t, err)
		_, dup := subjects[tpl.Subject]
		assert.False(t, dup, "duplicate subject for %s", status)
		subjects[tpl.Subject] = status
		assert.Contains(t, tpl.HTML, "Hi Jane,")

		if status == models.ApplicationStatusRejected {
			assert.Contains(t, tpl.HTML, "Please add &lt;b&gt;measurable&lt;/b&gt; results")
		} else {
			assert.NotContains(t, tpl.HTML, "measurable")
		}
	}
	assert.Len(t, subjects, 4)

	_, err := renderNotification(models.NotificationRequest{Status: "archived"})
	assert.Error(t, err)
}

func TestRenderNotificationRejectedWithoutNotes(t *testing.T) {
	tpl, err := renderNotification(models.NotificationRequest{ApplicationID: "app-1", Status: models.ApplicationStatusRejected})
	require.NoError(t, err)
	assert.NotContains(t, tpl.HTML, "Reviewer notes")
	assert.Contains(t, tpl.HTML, "Hi there,")
}

func TestMailNotifierSend(t *testing.T) {
	sender := &fakeMailSender{}
	notifier := NewMailNotifier(sender, zap.NewNop())

	ok, err := notifier.Send(context.Background(), models.NotificationRequest{
		ApplicationID:  "app-1",
		Status:         models.ApplicationStatusApproved,
		RecipientEmail: " jane@example.com ",
		RecipientName:  "Jane",
	})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"jane@example.com"}, sender.sent[0].To)
	assert.True(t, strings.Contains(sender.sent[0].Subject, "approved"))

	ok, err = notifier.Send(context.Background(), models.NotificationRequest{ApplicationID: "app-2", Status: models.ApplicationStatusApproved})
	assert.Error(t, err)
	assert.False(t, ok)

	sender.err = errors.New("relay refused")
	ok, err = notifier.Send(context.Background(), models.NotificationRequest{ApplicationID: "app-3", Status: models.ApplicationStatusSubmitted, RecipientEmail: "a@b.co"})
	assert.ErrorContains(t, err, "relay refused")
	assert.False(t, ok)
}

func TestNotificationServiceDispatchSupersededStatus(t *testing.T) {
	store := newMemoryApplicationStore()
	store.seed(models.Application{ID: "app-1", Payload: modestPayload(), Status: models.ApplicationStatusApproved})
	svc := NewNotificationService(&recordingNotifier{}, store, nil, nil, nil, nil, NotificationServiceConfig{})

	stale := &models.Application{ID: "app-1", Payload: modestPayload(), Status: models.ApplicationStatusInReview}
	sent, err := svc.Dispatch(context.Background(), stale)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.False(t, store.snapshot("app-1").NotificationSent)
}

func TestNotificationServiceRecoverPending(t *testing.T) {
	store := newMemoryApplicationStore()
	old := time.Now().UTC().Add(-time.Hour)
	store.seed(models.Application{ID: "app-old", Status: models.ApplicationStatusApproved, UpdatedAt: old})
	store.seed(models.Application{ID: "app-new", Status: models.ApplicationStatusApproved, UpdatedAt: time.Now().UTC()})
	store.seed(models.Application{ID: "app-done", Status: models.ApplicationStatusApproved, UpdatedAt: old, NotificationSent: true})
	queue := &recordingQueue{}
	svc := NewNotificationService(&recordingNotifier{}, store, queue, nil, nil, nil, NotificationServiceConfig{RetryGrace: time.Minute})

	assert.Equal(t, 1, svc.RecoverPending(context.Background()))
	assert.Equal(t, []string{"app-old"}, queue.jobs)
}

func TestNotificationServiceRecoverPendingStopsWhenQueueFull(t *testing.T) {
	store := newMemoryApplicationStore()
	old := time.Now().UTC().Add(-time.Hour)
	for _, id := range []string{"app-1", "app-2", "app-3"} {
		store.seed(models.Application{ID: id, Status: models.ApplicationStatusApproved, UpdatedAt: old})
	}
	queue := &recordingQueue{capacity: 1}
	svc := NewNotificationService(&recordingNotifier{}, store, queue, nil, nil, nil, NotificationServiceConfig{RetryGrace: time.Minute})

	assert.Equal(t, 1, svc.RecoverPending(context.Background()))
	assert.Len(t, queue.jobs, 1)
	for _, id := range []string{"app-1", "app-2", "app-3"} {
		assert.False(t, store.snapshot(id).NotificationSent)
	}
}

func TestNotificationServiceEnqueueReportsFullQueue(t *testing.T) {
	queue := &recordingQueue{capacity: 1}
	svc := NewNotificationService(&recordingNotifier{}, newMemoryApplicationStore(), queue, nil, nil, nil, NotificationServiceConfig{})

	require.NoError(t, svc.Enqueue(&models.Application{ID: "app-1", Status: models.ApplicationStatusSubmitted}))
	err := svc.Enqueue(&models.Application{ID: "app-2", Status: models.ApplicationStatusSubmitted})
	assert.ErrorIs(t, err, jobs.ErrQueueFull)
}

func TestNotificationServiceRetryLoop(t *testing.T) {
	store := newMemoryApplicationStore()
	store.seed(models.Application{ID: "app-1", Status: models.ApplicationStatusSubmitted, UpdatedAt: time.Now().UTC().Add(-time.Hour)})
	queue := &recordingQueue{}
	svc := NewNotificationService(&recordingNotifier{}, store, queue, nil, nil, nil, NotificationServiceConfig{RetryInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartRetryLoop(ctx)

	require.Eventually(t, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return len(queue.jobs) > 0
	}, time.Second, 10*time.Millisecond)
}

func TestNotificationWorkerHandle(t *testing.T) {
	store := newMemoryApplicationStore()
	store.seed(models.Application{ID: "app-1", Payload: modestPayload(), Status: models.ApplicationStatusApproved})
	notifier := &recordingNotifier{}
	svc := NewNotificationService(notifier, store, nil, nil, nil, nil, NotificationServiceConfig{})
	worker := NewNotificationWorker(svc, store, 2, zap.NewNop())
	ctx := context.Background()

	err := worker.Handle(ctx, jobs.Job{ID: "app-1", Type: NotificationJobType, Payload: models.ApplicationStatusInReview})
	require.NoError(t, err)
	assert.Empty(t, notifier.statuses())

	err = worker.Handle(ctx, jobs.Job{ID: "app-1", Type: NotificationJobType, Payload: models.ApplicationStatusApproved})
	require.NoError(t, err)
	assert.Equal(t, []models.ApplicationStatus{models.ApplicationStatusApproved}, notifier.statuses())
	assert.True(t, store.snapshot("app-1").NotificationSent)

	err = worker.Handle(ctx, jobs.Job{ID: "app-1", Type: NotificationJobType, Payload: models.ApplicationStatusApproved})
	require.NoError(t, err)
	assert.Len(t, notifier.statuses(), 1)

	notifier.err = errors.New("smtp down")
	store.seed(models.Application{ID: "app-2", Payload: modestPayload(), Status: models.ApplicationStatusRejected})
	err = worker.Handle(ctx, jobs.Job{ID: "app-2", Type: NotificationJobType, Attempt: 2})
	assert.Error(t, err)
}
