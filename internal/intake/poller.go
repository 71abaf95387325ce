package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/soporteware/helpdesk/internal/engine"
	"github.com/soporteware/helpdesk/internal/model"
	"github.com/soporteware/helpdesk/internal/store"
)

// subjectPattern extracts the task number from a reply subject. Outbound
// notifications carry a [TAREA-<number>] tag for exactly this purpose.
var subjectPattern = regexp.MustCompile(`\[TAREA-([A-Za-z0-9-]+)\]`)

// fetchLimit caps how many messages one poll pass handles.
const fetchLimit = 50

// TaskSource provides the task and sender lookups the poller needs.
type TaskSource interface {
	GetTaskByNumber(ctx context.Context, number string) (*model.Task, error)
	GetClientUserByEmail(ctx context.Context, email string) (*model.ClientUser, error)
}

// Poller periodically reads the mailbox and turns ticket replies into
// task messages.
type Poller struct {
	mailbox  Mailbox
	tasks    TaskSource
	engine   *engine.Engine
	interval time.Duration

	stopCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewPoller creates a Poller over the given mailbox and engine.
func NewPoller(mailbox Mailbox, tasks TaskSource, eng *engine.Engine, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Poller{
		mailbox:  mailbox,
		tasks:    tasks,
		engine:   eng,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background poll loop. Calling Start twice is a
// no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()
}

// Stop halts the background loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			if _, err := p.Poll(ctx); err != nil {
				slog.Error("mailbox poll failed", "err", err)
			}
			cancel()
		}
	}
}

// Poll runs one pass: fetch unread messages, append the ones that match
// a task, and mark everything handled as read. Returns how many replies
// were appended.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	messages, err := p.mailbox.FetchUnseen(ctx, fetchLimit)
	if err != nil {
		return 0, fmt.Errorf("fetching unseen messages: %w", err)
	}

	appended := 0
	seen := make([]uint32, 0, len(messages))
	for _, msg := range messages {
		if p.handle(ctx, msg) {
			appended++
		}
		// Read even when unmatched, so a stray message does not get
		// re-examined every pass.
		seen = append(seen, msg.UID)
	}

	if err := p.mailbox.MarkSeen(ctx, seen); err != nil {
		slog.Warn("marking messages seen failed", "count", len(seen), "err", err)
	}

	return appended, nil
}

// handle appends one message to its task. Returns true when a comment
// was appended.
func (p *Poller) handle(ctx context.Context, msg InboundMessage) bool {
	match := subjectPattern.FindStringSubmatch(msg.Subject)
	if match == nil {
		slog.Debug("ignoring message without task tag", "subject", msg.Subject)
		return false
	}
	number := match[1]

	task, err := p.tasks.GetTaskByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("reply references unknown task", "number", number, "from", msg.From)
		} else {
			slog.Error("looking up task failed", "number", number, "err", err)
		}
		return false
	}

	body := strings.TrimSpace(msg.TextBody)
	if body == "" {
		body = strings.TrimSpace(msg.HTMLBody)
	}
	if body == "" {
		slog.Warn("ignoring empty reply", "number", number, "from", msg.From)
		return false
	}

	actor := model.ActorClient
	var actorID *string
	if user, err := p.tasks.GetClientUserByEmail(ctx, msg.From); err == nil {
		actorID = &user.ID
	} else if !errors.Is(err, store.ErrNotFound) {
		slog.Warn("sender lookup failed", "from", msg.From, "err", err)
	}

	_, err = p.engine.AddComment(ctx, task.ID, model.EventMessage, actor, actorID, body, true)
	if err != nil {
		if errors.Is(err, engine.ErrTaskClosed) {
			slog.Warn("reply to closed task dropped", "number", number, "from", msg.From)
		} else {
			slog.Error("appending reply failed", "number", number, "err", err)
		}
		return false
	}

	slog.Info("reply appended", "number", number, "from", msg.From)
	return true
}
