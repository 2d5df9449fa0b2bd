package invites

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"committeeDashboard/internal/dataservice"
)

type recordingService struct {
	inserted []dataservice.Row
	err      error
}

func (s *recordingService) Select(context.Context, dataservice.Query) ([]dataservice.Row, error) {
	return nil, nil
}

func (s *recordingService) Insert(_ context.Context, entity string, row dataservice.Row) (dataservice.Row, error) {
	if s.err != nil {
		return nil, s.err
	}
	row["entity"] = entity
	s.inserted = append(s.inserted, row)
	return row, nil
}

func (s *recordingService) Update(context.Context, string, string, dataservice.Row) error {
	return nil
}

func TestDeliverRecordsEachAddress(t *testing.T) {
	svc := &recordingService{}
	inline := NewInline(NewWorker(svc, nil))

	err := inline.Invite(context.Background(), Invitation{
		MeetingID:   "m1",
		Title:       "Budget",
		StartTime:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		OrganizerID: "p1",
		Emails:      []string{"Ada@Example.org", "bob@example.org"},
	})
	require.NoError(t, err)
	require.Len(t, svc.inserted, 2)

	first := svc.inserted[0]
	assert.Equal(t, "audit_logs", first["entity"])
	assert.Equal(t, "invitation_sent", first["action"])
	assert.Equal(t, "m1", first["entity_id"])
	assert.Equal(t, "p1", first["profile_id"])

	var details map[string]string
	require.NoError(t, json.Unmarshal([]byte(first["details"].(string)), &details))
	assert.Equal(t, "ada@example.org", details["email"])
	assert.Equal(t, "2026-03-02T09:00:00Z", details["start_time"])
}

func TestDeliverPropagatesWriteErrors(t *testing.T) {
	svc := &recordingService{err: errors.New("boom")}
	err := NewWorker(svc, nil).Deliver(context.Background(), Invitation{MeetingID: "m1", Emails: []string{"a@b.c"}})
	assert.ErrorContains(t, err, "boom")

	err = NewWorker(svc, nil).Deliver(context.Background(), Invitation{})
	assert.Error(t, err)
}

func TestHandleTaskSkipsRetryOnBadPayload(t *testing.T) {
	h := HandleTask(NewWorker(&recordingService{}, nil))
	err := h(context.Background(), asynq.NewTask(TaskInvite, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	payload, _ := json.Marshal(Invitation{MeetingID: "m1", Emails: []string{"a@b.c"}})
	assert.NoError(t, h(context.Background(), asynq.NewTask(TaskInvite, payload)))
}

func TestParseQueueWeights(t *testing.T) {
	assert.Equal(t, map[string]int{"invites": 3, "default": 1}, parseQueueWeights("invites=3, default"))
	assert.Empty(t, parseQueueWeights(" , "))
	assert.Equal(t, map[string]int{"low": 1}, parseQueueWeights("low=abc"))
}
