package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mail-merge/internal/models"
	"mail-merge/internal/smtp"
)

func newTestDispatcher(sender MailSender) *Dispatcher {
	return NewDispatcher(testConfig(), sender, zap.NewNop())
}

func TestSendAllPersonalizes(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)

	table := testTable(
		models.Row{"Email": "ann@example.com", "Name": "Ann", "Code": "A1"},
		models.Row{"Email": "bob@example.com", "Name": "Bob", "Code": "B2"},
	)

	run, err := d.SendAll(context.Background(), testDraft(), table, nil)
	require.NoError(t, err)

	calls := sender.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "ann@example.com", calls[0].To)
	assert.Equal(t, "Hello Ann", calls[0].Subject)
	assert.Equal(t, "<p>Hi Ann, your code is A1</p>", calls[0].HTML)
	assert.Equal(t, "bob@example.com", calls[1].To)
	assert.Equal(t, "<p>Hi Bob, your code is B2</p>", calls[1].HTML)

	assert.Equal(t, models.RunCompleted, run.State)
	assert.NotEmpty(t, run.ID)
	assert.NotNil(t, run.FinishedAt)
	sent, failed := run.Counts()
	assert.Equal(t, 2, sent)
	assert.Equal(t, 0, failed)
}

func TestSendAllSkipsInvalidEmails(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)

	table := testTable(
		models.Row{"Email": "ann@example.com", "Name": "Ann"},
		models.Row{"Email": "", "Name": "Nobody"},
		models.Row{"Email": "carl@example.com", "Name": "Carl"},
	)

	run, err := d.SendAll(context.Background(), testDraft(), table, nil)
	require.NoError(t, err)

	require.Len(t, run.Results, 2)
	assert.Equal(t, "ann@example.com", run.Results[0].Email)
	assert.Equal(t, "carl@example.com", run.Results[1].Email)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 3, run.Total)

	// 缺少欄位時保留原佔位符
	assert.Equal(t, "<p>Hi Ann, your code is {Code}</p>", sender.calls()[0].HTML)
}

func TestSendAllContinuesAfterFailure(t *testing.T) {
	sender := newFakeSender()
	sender.fail["bob@example.com"] = models.NewSendError(models.ReasonAuth, errors.New("535 authentication failed"))
	d := newTestDispatcher(sender)

	table := testTable(
		models.Row{"Email": "ann@example.com", "Name": "Ann"},
		models.Row{"Email": "bob@example.com", "Name": "Bob"},
		models.Row{"Email": "carl@example.com", "Name": "Carl"},
	)

	run, err := d.SendAll(context.Background(), testDraft(), table, nil)
	require.NoError(t, err)

	require.Len(t, run.Results, 3)
	assert.Equal(t, models.StatusSent, run.Results[0].Status)
	assert.Equal(t, models.StatusFailed, run.Results[1].Status)
	assert.Equal(t, models.ReasonAuth, run.Results[1].Reason)
	assert.Equal(t, "535 authentication failed", run.Results[1].Error)
	assert.Equal(t, "Bob", run.Results[1].Name)
	assert.Equal(t, models.StatusSent, run.Results[2].Status)

	sent, failed := run.Counts()
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, failed)
	assert.Equal(t, models.RunCompleted, run.State)
}

func TestSendAllObserver(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)

	table := testTable(
		models.Row{"Email": "ann@example.com", "Name": "Ann"},
		models.Row{"Email": "bob@example.com", "Name": "Bob"},
	)

	var snapshots []models.RunStatus
	_, err := d.SendAll(context.Background(), testDraft(), table, func(s models.RunStatus) {
		snapshots = append(snapshots, s)
	})
	require.NoError(t, err)

	// 每列發送前後各一次，結束時一次
	require.Len(t, snapshots, 5)
	assert.Equal(t, "ann@example.com", snapshots[0].Current)
	assert.Equal(t, 0, snapshots[0].Sent)
	assert.Equal(t, 1, snapshots[1].Sent)
	assert.Equal(t, "bob@example.com", snapshots[2].Current)
	assert.Equal(t, 2, snapshots[3].Sent)

	last := snapshots[4]
	assert.Equal(t, models.RunCompleted, last.State)
	assert.True(t, last.Done())
	assert.Len(t, last.Results, 2)
}

func TestSendAllValidation(t *testing.T) {
	table := testTable(models.Row{"Email": "ann@example.com"})

	tests := []struct {
		name  string
		draft func() *models.Draft
		table *models.Table
		field string
	}{
		{"Missing server", func() *models.Draft { d := testDraft(); d.Config.Server = ""; return d }, table, "smtp_server"},
		{"Missing password", func() *models.Draft { d := testDraft(); d.Config.Password = ""; return d }, table, "password"},
		{"Invalid sender", func() *models.Draft { d := testDraft(); d.Config.SenderEmail = "nope"; return d }, table, "sender_email"},
		{"Empty subject", func() *models.Draft { d := testDraft(); d.Subject = "  "; return d }, table, "subject"},
		{"Empty body", func() *models.Draft { d := testDraft(); d.Body = ""; return d }, table, "body"},
		{"No table", testDraft, nil, "recipients"},
		{"Unmapped email column", testDraft, &models.Table{Columns: []string{"Email"}}, "email_column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := newFakeSender()
			d := newTestDispatcher(sender)

			run, err := d.SendAll(context.Background(), tt.draft(), tt.table, nil)
			require.Error(t, err)
			assert.Nil(t, run)
			assert.True(t, models.IsValidationError(err))

			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Empty(t, sender.calls(), "nothing is sent when validation fails")
		})
	}
}

func TestSendAllStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := newFakeSender()
	count := 0
	sender.onSend = func(string) {
		count++
		if count == 2 {
			cancel()
		}
	}
	d := newTestDispatcher(sender)

	table := testTable(
		models.Row{"Email": "a@example.com"},
		models.Row{"Email": "b@example.com"},
		models.Row{"Email": "c@example.com"},
		models.Row{"Email": "d@example.com"},
	)

	run, err := d.SendAll(ctx, testDraft(), table, nil)
	require.NoError(t, err)

	// 進行中的那封仍完成，之後不再發送
	assert.Len(t, sender.calls(), 2)
	assert.Len(t, run.Results, 2)
	assert.Equal(t, models.StatusSent, run.Results[1].Status)
	assert.Equal(t, models.RunStopped, run.State)
}

func TestSendAllCancelInterruptsDelay(t *testing.T) {
	cfg := testConfig()
	cfg.SendDelay = 10 * time.Second
	sender := newFakeSender()
	d := NewDispatcher(cfg, sender, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender.onSend = func(string) {
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()
	}

	table := testTable(
		models.Row{"Email": "a@example.com"},
		models.Row{"Email": "b@example.com"},
	)

	start := time.Now()
	run, err := d.SendAll(ctx, testDraft(), table, nil)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Len(t, run.Results, 1)
	assert.Equal(t, models.RunStopped, run.State)
}

func TestSendAllDelayBetweenSends(t *testing.T) {
	cfg := testConfig()
	cfg.SendDelay = 50 * time.Millisecond
	sender := newFakeSender()

	var mu sync.Mutex
	var times []time.Time
	sender.onSend = func(string) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
	}
	d := NewDispatcher(cfg, sender, zap.NewNop())

	table := testTable(
		models.Row{"Email": "a@example.com"},
		models.Row{"Email": "b@example.com"},
	)

	start := time.Now()
	_, err := d.SendAll(context.Background(), testDraft(), table, nil)
	require.NoError(t, err)

	require.Len(t, times, 2)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), 50*time.Millisecond)
	// 最後一封之後不等待
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSendTest(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)

	require.NoError(t, d.SendTest(context.Background(), testDraft(), "me@example.com", ""))
	require.NoError(t, d.SendTest(context.Background(), testDraft(), "me@example.com", "Tester"))

	calls := sender.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Hello me@example.com", calls[0].Subject)
	assert.Equal(t, "Hello Tester", calls[1].Subject)
	assert.Equal(t, "<p>Hi Tester, your code is {Code}</p>", calls[1].HTML)

	err := d.SendTest(context.Background(), testDraft(), "not-an-email", "")
	assert.True(t, models.IsValidationError(err))
	assert.Len(t, sender.calls(), 2)
}

func TestSendTestReturnsSendError(t *testing.T) {
	sender := newFakeSender()
	sender.fail["me@example.com"] = models.NewSendError(models.ReasonConnection, errors.New("dial tcp: refused"))
	d := newTestDispatcher(sender)

	err := d.SendTest(context.Background(), testDraft(), "me@example.com", "")
	require.Error(t, err)
	assert.Equal(t, models.ReasonConnection, models.SendReasonOf(err))
}

func TestSendPreviewRow(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)

	table := testTable(
		models.Row{"Email": "ann@example.com", "Name": "Ann", "Code": "A1"},
		models.Row{"Email": "bob@example.com", "Name": "Bob", "Code": "B2"},
	)

	preview, err := d.SendPreviewRow(context.Background(), testDraft(), table, 1, "")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", preview.To)
	assert.Equal(t, "Hello Bob", preview.Subject)

	_, err = d.SendPreviewRow(context.Background(), testDraft(), table, 0, "me@example.com")
	require.NoError(t, err)

	calls := sender.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "bob@example.com", calls[0].To)
	assert.Equal(t, "me@example.com", calls[1].To)
	assert.Equal(t, "<p>Hi Ann, your code is A1</p>", calls[1].HTML)

	_, err = d.SendPreviewRow(context.Background(), testDraft(), table, 5, "")
	assert.True(t, models.IsValidationError(err))
}

func TestDispatcherTestConnection(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)

	require.NoError(t, d.TestConnection(context.Background(), &testDraft().Config))

	sender.connErr = models.NewSendError(models.ReasonAuth, errors.New("bad credentials"))
	err := d.TestConnection(context.Background(), &testDraft().Config)
	assert.Equal(t, models.ReasonAuth, models.SendReasonOf(err))

	cfg := testDraft().Config
	cfg.Port = 0
	assert.True(t, models.IsValidationError(d.TestConnection(context.Background(), &cfg)))
}

func TestSendAllThroughSink(t *testing.T) {
	srv, host, port := startSink(t, smtp.Options{
		AuthRequired:     true,
		Username:         "user",
		Password:         "secret",
		RejectRecipients: []string{"bounce@example.com"},
	})
	d := newTestDispatcher(newTestSMTPSender(testConfig()))

	draft := testDraft()
	draft.Config.Server = host
	draft.Config.Port = port

	table := testTable(
		models.Row{"Email": "ann@example.com", "Name": "Ann", "Code": "A1"},
		models.Row{"Email": "bounce@example.com", "Name": "Bounce", "Code": "X"},
		models.Row{"Email": "bob@example.com", "Name": "Bob", "Code": "B2"},
	)

	run, err := d.SendAll(context.Background(), draft, table, nil)
	require.NoError(t, err)

	sent, failed := run.Counts()
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, failed)
	assert.Equal(t, models.ReasonRecipient, run.Results[1].Reason)

	msgs := srv.Store().All()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello Ann", msgs[0].Subject)
	assert.Equal(t, "<p>Hi Ann, your code is A1</p>", msgs[0].HTML)
	assert.Equal(t, "Hello Bob", msgs[1].Subject)
}
