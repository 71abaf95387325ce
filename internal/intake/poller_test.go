package intake_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soporteware/helpdesk/internal/engine"
	"github.com/soporteware/helpdesk/internal/intake"
	"github.com/soporteware/helpdesk/internal/model"
	"github.com/soporteware/helpdesk/internal/store"
	"github.com/soporteware/helpdesk/tests/testutil"
)

type fakeMailbox struct {
	messages  []intake.InboundMessage
	seen      []uint32
	seenCalls int
}

func (f *fakeMailbox) FetchUnseen(context.Context, int) ([]intake.InboundMessage, error) {
	return f.messages, nil
}

func (f *fakeMailbox) MarkSeen(_ context.Context, uids []uint32) error {
	f.seen = append(f.seen, uids...)
	f.seenCalls++
	return nil
}

func newPoller(t *testing.T, mailbox *fakeMailbox) (*intake.Poller, *store.SQLiteStore, *model.Task) {
	t.Helper()
	s := testutil.NewTestStore(t)
	testutil.SeedMasterData(t, s)
	testutil.SeedDirectory(t, s)
	task := testutil.SeedTask(t, s)
	p := intake.NewPoller(mailbox, s, engine.New(s), time.Minute)
	return p, s, task
}

func TestPollAppendsReplyToTask(t *testing.T) {
	mailbox := &fakeMailbox{messages: []intake.InboundMessage{{
		UID:      7,
		Subject:  "Re: [TAREA-1001] Error al facturar",
		From:     "laura@acme.test",
		TextBody: "Sigue fallando en el entorno de pruebas.\n",
	}}}
	p, s, task := newPoller(t, mailbox)

	appended, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, appended)
	assert.Equal(t, []uint32{7}, mailbox.seen)

	events, err := s.GetEventsForTask(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	reply := events[1]
	assert.Equal(t, model.EventMessage, reply.Kind)
	assert.Equal(t, model.ActorClient, reply.Actor)
	require.NotNil(t, reply.ActorID)
	assert.Equal(t, "cuser-1", *reply.ActorID)
	assert.Equal(t, "Sigue fallando en el entorno de pruebas.", reply.Body)
}

func TestPollIgnoresUntaggedAndUnknownMessages(t *testing.T) {
	mailbox := &fakeMailbox{messages: []intake.InboundMessage{
		{UID: 1, Subject: "Boletin semanal", TextBody: "spam"},
		{UID: 2, Subject: "[TAREA-9999] no existe", From: "x@y.test", TextBody: "hola"},
		{UID: 3, Subject: "[TAREA-1001] respuesta vacia", From: "laura@acme.test", TextBody: "   "},
	}}
	p, s, task := newPoller(t, mailbox)

	appended, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, appended)
	// Everything is still marked read so the next pass skips it, and
	// the whole batch is flagged in one mailbox round trip.
	assert.Equal(t, []uint32{1, 2, 3}, mailbox.seen)
	assert.Equal(t, 1, mailbox.seenCalls)

	events, err := s.GetEventsForTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPollUnknownSenderStillAppends(t *testing.T) {
	mailbox := &fakeMailbox{messages: []intake.InboundMessage{{
		UID:      4,
		Subject:  "[TAREA-1001] desde otra cuenta",
		From:     "externo@otro.test",
		TextBody: "respuesta",
	}}}
	p, s, task := newPoller(t, mailbox)

	appended, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, appended)

	events, err := s.GetEventsForTask(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Nil(t, events[1].ActorID)
}

func TestPollDropsReplyToClosedTask(t *testing.T) {
	mailbox := &fakeMailbox{messages: []intake.InboundMessage{{
		UID:      5,
		Subject:  "[TAREA-1001] tarde",
		From:     "laura@acme.test",
		TextBody: "demasiado tarde",
	}}}
	p, s, task := newPoller(t, mailbox)

	closeEvent := model.TaskEvent{Kind: model.EventSystem, Actor: model.ActorAgent, Body: "Tarea cerrada"}
	require.NoError(t, s.CloseTask(context.Background(), task.ID, time.Now(), closeEvent))

	appended, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, appended)
	assert.Equal(t, []uint32{5}, mailbox.seen)
}

func TestPollHTMLFallbackBody(t *testing.T) {
	mailbox := &fakeMailbox{messages: []intake.InboundMessage{{
		UID:      6,
		Subject:  "[TAREA-1001] solo html",
		From:     "laura@acme.test",
		HTMLBody: "<p>respuesta html</p>",
	}}}
	p, s, task := newPoller(t, mailbox)

	appended, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, appended)

	events, err := s.GetEventsForTask(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "<p>respuesta html</p>", events[1].Body)
}
