package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/4ndr3jS/TravelStory/pkg/logging"
	"github.com/4ndr3jS/TravelStory/pkg/model"
)

// Phase is the controller lifecycle state.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseOutlineGenerating Phase = "outline_generating"
	PhaseReady             Phase = "ready"
	PhaseBuffering         Phase = "buffering"
	PhaseExhausted         Phase = "exhausted"
)

var (
	// ErrNoStory is returned by cursor operations when no story exists.
	ErrNoStory = newError(KindNoRouteOrStory, "no active story", nil)
	// ErrReset is returned to a pending StartStory when the story is reset.
	ErrReset = errors.New("story reset before the outline was ready")
)

// Config bounds generation.
type Config struct {
	OutlineTimeout time.Duration
	SegmentTimeout time.Duration
	BatchSize      int
}

// DefaultConfig returns the stock timeouts and batch size.
func DefaultConfig() Config {
	return Config{
		OutlineTimeout: 60 * time.Second,
		SegmentTimeout: 45 * time.Second,
		BatchSize:      3,
	}
}

// Snapshot is a read-only view of the controller for the player and UI.
type Snapshot struct {
	Phase           Phase             `json:"phase"`
	Route           *model.Route      `json:"route,omitempty"`
	Story           *model.AudioStory `json:"story,omitempty"`
	Generating      bool              `json:"generating"`
	Progress        string            `json:"progress"`
	LastError       *ErrorInfo        `json:"last_error,omitempty"`
	Buffered        int               `json:"buffered"`
	Total           int               `json:"total"`
	CursorIndex     int               `json:"cursor_index"`
	ProgressPercent float64           `json:"progress_percent"`
	AppState        AppState          `json:"app_state"`
}

// StoryID returns the ID of the current story or "".
func (s Snapshot) StoryID() string {
	if s.Story == nil {
		return ""
	}
	return s.Story.ID
}

// session is the per-story state. It is created by StartStory or Restore and
// dropped on Reset; its context cancels in-flight generation.
type session struct {
	epoch      int
	ctx        context.Context
	cancel     context.CancelFunc
	route      *model.Route
	total      int
	story      *model.AudioStory
	cursor     Cursor
	batchStart time.Time
}

// Controller owns the story aggregate and schedules generation.
// All state below the message channel is owned by the run goroutine; public
// methods only exchange messages with it.
type Controller struct {
	cfg       Config
	outlines  OutlineGenerator
	segments  SegmentGenerator
	observers []Observer
	log       *slog.Logger
	now       func() time.Time
	newID     func() string

	msgs    chan any
	done    chan struct{}
	cancel  context.CancelFunc
	running atomic.Bool

	snapMu sync.RWMutex
	snap   Snapshot

	runCtx       context.Context
	phase        Phase
	sess         *session
	epoch        int
	generating   bool
	progress     string
	lastErr      *Error
	appState     AppState
	pendingStart chan startReply
}

// NewController creates a controller. Call Start before using it.
func NewController(outlines OutlineGenerator, segments SegmentGenerator, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.OutlineTimeout <= 0 {
		cfg.OutlineTimeout = def.OutlineTimeout
	}
	if cfg.SegmentTimeout <= 0 {
		cfg.SegmentTimeout = def.SegmentTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	c := &Controller{
		cfg:      cfg,
		outlines: outlines,
		segments: segments,
		log:      slog.With("component", "story"),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		msgs:     make(chan any),
		done:     make(chan struct{}),
		phase:    PhaseIdle,
		appState: AppStateActive,
	}
	c.snap = c.buildSnapshot()
	return c
}

// AddObserver registers an observer. It must be called before Start.
func (c *Controller) AddObserver(o Observer) {
	c.observers = append(c.observers, o)
}

// Start launches the controller goroutine.
func (c *Controller) Start(ctx context.Context) {
	if c.running.Swap(true) {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
}

// Stop terminates the controller and cancels in-flight generation.
func (c *Controller) Stop() {
	if !c.running.Load() {
		return
	}
	c.cancel()
	<-c.done
}

// Snapshot returns the latest published state without contacting the actor.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// IsGenerating reports whether a generation pass is in flight.
func (c *Controller) IsGenerating() bool {
	return c.Snapshot().Generating
}

type startMsg struct {
	route *model.Route
	reply chan startReply
}

type startReply struct {
	snap Snapshot
	err  error
}

type restoreMsg struct {
	route  *model.Route
	story  *model.AudioStory
	cursor int
	reply  chan error
}

type bufferMsg struct{ reply chan bool }

type cursorOp int

const (
	cursorAdvance cursorOp = iota
	cursorJump
)

type cursorMsg struct {
	op    cursorOp
	index int
	reply chan cursorReply
}

type cursorReply struct {
	snap Snapshot
	err  error
}

type appStateMsg struct {
	state AppState
	reply chan bool
}

type resetMsg struct{ reply chan struct{} }

type outlineResult struct {
	epoch   int
	outline []string
	err     *Error
	took    time.Duration
}

type segmentPending struct{ epoch, index int }

type segmentResult struct {
	epoch   int
	segment model.StorySegment
}

type batchDone struct {
	epoch int
	err   *Error
}

// StartStory generates the outline for route and installs a new story.
// It blocks until the outline is ready or has failed.
func (c *Controller) StartStory(ctx context.Context, route *model.Route) (Snapshot, error) {
	r, err := call(ctx, c, func(reply chan startReply) any { return startMsg{route: route, reply: reply} })
	if err != nil {
		return c.Snapshot(), err
	}
	return r.snap, r.err
}

// Restore installs a previously persisted story. The controller must be idle.
func (c *Controller) Restore(ctx context.Context, route *model.Route, st *model.AudioStory, cursor int) error {
	r, err := call(ctx, c, func(reply chan error) any {
		return restoreMsg{route: route, story: st.Clone(), cursor: cursor, reply: reply}
	})
	if err != nil {
		return err
	}
	return r
}

// BufferNext schedules the next batch. It returns false when the call was a
// no-op: no story, a pass already in flight, or the story is complete.
func (c *Controller) BufferNext() (bool, error) {
	return call(context.Background(), c, func(reply chan bool) any { return bufferMsg{reply: reply} })
}

// Advance moves the cursor to the next buffered segment.
func (c *Controller) Advance() (Snapshot, error) {
	return c.moveCursor(cursorMsg{op: cursorAdvance})
}

// JumpTo moves the cursor to the 0-based segment position i.
func (c *Controller) JumpTo(i int) (Snapshot, error) {
	return c.moveCursor(cursorMsg{op: cursorJump, index: i})
}

// ReportPlaying records that the player started the segment at position i.
func (c *Controller) ReportPlaying(i int) (Snapshot, error) {
	return c.moveCursor(cursorMsg{op: cursorJump, index: i})
}

func (c *Controller) moveCursor(m cursorMsg) (Snapshot, error) {
	r, err := call(context.Background(), c, func(reply chan cursorReply) any {
		m.reply = reply
		return m
	})
	if err != nil {
		return c.Snapshot(), err
	}
	return r.snap, r.err
}

// HandleAppState records a lifecycle transition. It returns true if the
// transition started a buffering pass.
func (c *Controller) HandleAppState(s AppState) (bool, error) {
	return call(context.Background(), c, func(reply chan bool) any { return appStateMsg{state: s, reply: reply} })
}

// Reset discards the current story and returns to Idle.
func (c *Controller) Reset() error {
	_, err := call(context.Background(), c, func(reply chan struct{}) any { return resetMsg{reply: reply} })
	return err
}

func call[R any](ctx context.Context, c *Controller, build func(chan R) any) (R, error) {
	var zero R
	if !c.running.Load() {
		return zero, ErrStopped
	}
	reply := make(chan R, 1)
	select {
	case c.msgs <- build(reply):
	case <-c.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-reply:
		return r, nil
	case <-c.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// post delivers a worker message unless the controller has stopped.
func (c *Controller) post(m any) {
	select {
	case c.msgs <- m:
	case <-c.done:
	}
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)
	c.runCtx = ctx
	c.log.Debug("Story: controller started")
	for {
		select {
		case <-ctx.Done():
			c.endSession()
			if c.pendingStart != nil {
				c.pendingStart <- startReply{snap: c.buildSnapshot(), err: ErrStopped}
				c.pendingStart = nil
			}
			c.log.Debug("Story: controller stopped")
			return
		case m := <-c.msgs:
			c.handle(m)
		}
	}
}

func (c *Controller) handle(m any) {
	switch m := m.(type) {
	case startMsg:
		c.handleStart(m)
	case restoreMsg:
		m.reply <- c.handleRestore(m)
	case bufferMsg:
		m.reply <- c.bufferNext()
	case cursorMsg:
		m.reply <- c.handleCursor(m)
	case appStateMsg:
		m.reply <- c.handleAppState(m.state)
	case resetMsg:
		c.handleReset()
		m.reply <- struct{}{}
	case outlineResult:
		c.handleOutline(m)
	case segmentPending:
		c.handleSegmentPending(m)
	case segmentResult:
		c.handleSegment(m)
	case batchDone:
		c.handleBatchDone(m)
	default:
		c.log.Error("Story: unknown message", "type", fmt.Sprintf("%T", m))
	}
}

func (c *Controller) handleStart(m startMsg) {
	if c.phase != PhaseIdle {
		m.reply <- startReply{snap: c.buildSnapshot(), err: ErrStoryActive}
		return
	}
	if err := m.route.Validate(); err != nil {
		m.reply <- startReply{snap: c.buildSnapshot(), err: fmt.Errorf("%w: %v", ErrInvalidRoute, err)}
		return
	}

	total := CalculateTotalSegments(m.route.DurationSeconds)
	s := c.newSession(m.route, total)
	c.phase = PhaseOutlineGenerating
	c.lastErr = nil
	c.progress = "Creating your story outline..."
	c.pendingStart = m.reply
	c.publish()

	c.log.Info("Story: Generating outline", "segments", total, "duration_s", m.route.DurationSeconds, "style", m.route.Style)
	go c.generateOutline(s)
}

func (c *Controller) newSession(route *model.Route, total int) *session {
	c.endSession()
	c.epoch++
	ctx, cancel := context.WithCancel(c.runCtx)
	c.sess = &session{epoch: c.epoch, ctx: ctx, cancel: cancel, route: route, total: total}
	return c.sess
}

func (c *Controller) endSession() {
	if c.sess != nil {
		c.sess.cancel()
		c.sess = nil
	}
}

func (c *Controller) generateOutline(s *session) {
	start := c.now()
	timeoutErr := newError(KindOutlineTimeout, "Story outline generation timed out", nil)
	outline, err := WithTimeout(s.ctx, c.cfg.OutlineTimeout, timeoutErr, func(ctx context.Context) ([]string, error) {
		return c.outlines.GenerateOutline(ctx, s.route, s.total)
	})

	res := outlineResult{epoch: s.epoch, outline: outline, took: time.Since(start)}
	switch {
	case err != nil:
		res.err = classify(err, KindOutlineFailure, "")
	case len(outline) != s.total:
		res.err = newError(KindOutlineFailure,
			fmt.Sprintf("outline has %d entries, expected %d", len(outline), s.total), nil)
	}
	c.post(res)
}

func (c *Controller) handleOutline(r outlineResult) {
	s := c.sess
	if s == nil || s.epoch != r.epoch || s.story != nil {
		return
	}
	reply := c.pendingStart
	c.pendingStart = nil

	if r.err != nil {
		c.log.Error("Story: Outline generation failed", "kind", r.err.Kind, "error", r.err)
		c.endSession()
		c.phase = PhaseIdle
		c.progress = ""
		c.lastErr = r.err
		snap := c.publish()
		c.emit(Event{Type: EventStoryFailed, Error: r.err.info(), Duration: r.took})
		if reply != nil {
			reply <- startReply{snap: snap, err: r.err}
		}
		return
	}

	s.story = &model.AudioStory{
		ID:                    c.newID(),
		TotalSegmentsEstimate: s.total,
		Outline:               r.outline,
		Segments:              make([]model.StorySegment, 0, s.total),
		CreatedAt:             c.now(),
	}
	c.phase = PhaseReady
	c.progress = ""
	c.publish()
	c.log.Info("Story: Outline ready", "story_id", s.story.ID, "segments", s.total, "took", r.took.Round(time.Millisecond))
	c.emit(Event{Type: EventStoryStarted, Duration: r.took})

	c.bufferNext()
	if reply != nil {
		reply <- startReply{snap: c.buildSnapshot()}
	}
}

func (c *Controller) handleRestore(m restoreMsg) error {
	if c.phase != PhaseIdle {
		return ErrStoryActive
	}
	if err := m.route.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRoute, err)
	}
	if err := validateStory(m.story); err != nil {
		return err
	}

	s := c.newSession(m.route, m.story.TotalSegmentsEstimate)
	s.story = m.story
	if len(s.story.Segments) > 0 {
		cur := min(max(m.cursor, 0), len(s.story.Segments)-1)
		_ = s.cursor.JumpTo(cur, len(s.story.Segments))
	}
	c.lastErr = nil
	c.progress = ""
	c.phase = PhaseReady
	if s.story.Complete() {
		c.phase = PhaseExhausted
	}
	c.publish()
	c.log.Info("Story: Restored", "story_id", s.story.ID, "buffered", len(s.story.Segments), "total", s.total)
	c.emit(Event{Type: EventStoryRestored})

	c.bufferNext()
	return nil
}

func validateStory(st *model.AudioStory) error {
	if st == nil {
		return errors.New("story is nil")
	}
	if st.TotalSegmentsEstimate < 1 || len(st.Outline) != st.TotalSegmentsEstimate {
		return fmt.Errorf("outline has %d entries, expected %d", len(st.Outline), st.TotalSegmentsEstimate)
	}
	if len(st.Segments) > st.TotalSegmentsEstimate {
		return fmt.Errorf("story has %d segments, more than the %d planned", len(st.Segments), st.TotalSegmentsEstimate)
	}
	for k, seg := range st.Segments {
		if seg.Index != k+1 {
			return fmt.Errorf("segment at position %d has index %d", k, seg.Index)
		}
	}
	return nil
}

type batchJob struct {
	epoch   int
	route   *model.Route
	outline []string
	texts   []string
	base    int
	size    int
	total   int
}

// bufferNext starts one bounded batch. It is the only place that sets
// generating, and it runs on the actor goroutine only.
func (c *Controller) bufferNext() bool {
	s := c.sess
	if s == nil || s.story == nil {
		return false
	}
	if c.generating {
		logging.Trace(c.log, "Story: buffer request ignored, generation in flight")
		return false
	}
	if s.story.Complete() {
		return false
	}

	job := batchJob{
		epoch:   s.epoch,
		route:   s.route,
		outline: s.story.Outline,
		texts:   make([]string, 0, len(s.story.Segments)+c.cfg.BatchSize),
		base:    len(s.story.Segments),
		size:    min(c.cfg.BatchSize, s.story.Remaining()),
		total:   s.total,
	}
	for _, seg := range s.story.Segments {
		job.texts = append(job.texts, seg.Text)
	}

	c.generating = true
	c.phase = PhaseBuffering
	c.lastErr = nil
	s.batchStart = c.now()
	c.publish()
	c.log.Info("Story: Buffering batch", "story_id", s.story.ID, "from", job.base+1, "count", job.size, "total", job.total)
	c.emit(Event{Type: EventBatchStarted})

	go c.runBatch(s.ctx, job)
	return true
}

// runBatch generates the batch strictly in order; each segment's prompt
// depends on the text of every segment before it.
func (c *Controller) runBatch(ctx context.Context, job batchJob) {
	texts := job.texts
	for i := 0; i < job.size; i++ {
		index := job.base + i + 1
		c.post(segmentPending{epoch: job.epoch, index: index})

		outline := job.outline[index-1]
		previous := strings.Join(texts, " ")
		timeoutErr := newError(KindSegmentTimeout, fmt.Sprintf("Segment %d generation timed out", index), nil)
		text, err := WithTimeout(ctx, c.cfg.SegmentTimeout, timeoutErr, func(ctx context.Context) (string, error) {
			return c.segments.GenerateSegment(ctx, job.route, index, job.total, outline, previous)
		})
		if err == nil && strings.TrimSpace(text) == "" {
			err = errors.New("generator returned empty text")
		}
		if err != nil {
			c.post(batchDone{epoch: job.epoch, err: classify(err, KindSegmentFailure, "Segment %d generation failed", index)})
			return
		}

		text = strings.TrimSpace(text)
		texts = append(texts, text)
		c.post(segmentResult{epoch: job.epoch, segment: model.StorySegment{Index: index, Text: text, GeneratedAt: c.now()}})
	}
	c.post(batchDone{epoch: job.epoch})
}

func (c *Controller) active(epoch int) *session {
	s := c.sess
	if s == nil || s.story == nil || s.epoch != epoch || !c.generating {
		return nil
	}
	return s
}

func (c *Controller) handleSegmentPending(m segmentPending) {
	s := c.active(m.epoch)
	if s == nil {
		return
	}
	c.progress = fmt.Sprintf("Generating segment %d of %d...", m.index, s.total)
	c.publish()
	c.emit(Event{Type: EventSegmentPending})
}

func (c *Controller) handleSegment(m segmentResult) {
	s := c.active(m.epoch)
	if s == nil {
		c.log.Debug("Story: dropping stale segment", "index", m.segment.Index)
		return
	}
	if want := len(s.story.Segments) + 1; m.segment.Index != want {
		c.log.Warn("Story: dropping out-of-order segment", "index", m.segment.Index, "expected", want)
		return
	}
	s.story.Segments = append(s.story.Segments, m.segment)
	c.publish()
	c.log.Debug("Story: Segment appended", "index", m.segment.Index, "total", s.total, "chars", len(m.segment.Text))
	seg := m.segment
	c.emit(Event{Type: EventSegmentAdded, Segment: &seg})
}

func (c *Controller) handleBatchDone(m batchDone) {
	s := c.active(m.epoch)
	if s == nil {
		return
	}
	c.generating = false
	c.progress = ""
	c.lastErr = m.err
	c.phase = PhaseReady
	if s.story.Complete() {
		c.phase = PhaseExhausted
	}
	took := c.now().Sub(s.batchStart)
	c.publish()

	if m.err != nil {
		c.log.Warn("Story: Batch stopped early", "kind", m.err.Kind, "error", m.err, "buffered", len(s.story.Segments))
	} else {
		c.log.Info("Story: Batch finished", "buffered", len(s.story.Segments), "total", s.total, "took", took.Round(time.Millisecond))
	}
	c.emit(Event{Type: EventBatchFinished, Error: m.err.info(), Duration: took})
	if c.phase == PhaseExhausted {
		c.emit(Event{Type: EventStoryExhausted})
	}
}

func (c *Controller) handleCursor(m cursorMsg) cursorReply {
	s := c.sess
	if s == nil || s.story == nil {
		return cursorReply{snap: c.buildSnapshot(), err: ErrNoStory}
	}
	buffered := len(s.story.Segments)
	before := s.cursor.Index()

	var err error
	switch m.op {
	case cursorAdvance:
		s.cursor.Advance(buffered)
	case cursorJump:
		err = s.cursor.JumpTo(m.index, buffered)
	}

	if s.cursor.Index() != before {
		c.publish()
		c.emit(Event{Type: EventCursorMoved})
	}

	// The refill check looks at where the cursor is, not at whether it moved.
	if s.cursor.NearEnd(buffered) && !c.generating {
		c.bufferNext()
	}
	return cursorReply{snap: c.buildSnapshot(), err: err}
}

func (c *Controller) handleAppState(state AppState) bool {
	prev := c.appState
	c.appState = state
	if prev == state {
		return false
	}
	c.publish()
	c.log.Debug("Story: App state changed", "from", prev, "to", state)

	if state != AppStateActive {
		return false
	}
	s := c.sess
	if s == nil || s.story == nil || s.story.Complete() || c.generating {
		return false
	}
	c.log.Info("Story: Resumed in foreground, buffering", "buffered", len(s.story.Segments), "total", s.total)
	return c.bufferNext()
}

func (c *Controller) handleReset() {
	storyID := c.buildSnapshot().StoryID()
	c.endSession()
	c.epoch++
	c.generating = false
	c.progress = ""
	c.lastErr = nil
	c.phase = PhaseIdle
	if c.pendingStart != nil {
		c.pendingStart <- startReply{snap: c.buildSnapshot(), err: ErrReset}
		c.pendingStart = nil
	}
	c.publish()
	c.log.Info("Story: Reset", "story_id", storyID)
	c.emit(Event{Type: EventStoryReset, StoryID: storyID})
}

func (c *Controller) buildSnapshot() Snapshot {
	snap := Snapshot{
		Phase:      c.phase,
		Generating: c.generating,
		Progress:   c.progress,
		LastError:  c.lastErr.info(),
		AppState:   c.appState,
	}
	if s := c.sess; s != nil {
		snap.Route = s.route
		snap.Total = s.total
		if s.story != nil {
			snap.Story = s.story.Clone()
			snap.Buffered = len(s.story.Segments)
			snap.CursorIndex = s.cursor.Index()
			snap.ProgressPercent = s.cursor.ProgressPercent(s.total)
		}
	}
	return snap
}

func (c *Controller) publish() Snapshot {
	snap := c.buildSnapshot()
	c.snapMu.Lock()
	c.snap = snap
	c.snapMu.Unlock()
	return snap
}

func (c *Controller) emit(e Event) {
	if len(c.observers) == 0 {
		return
	}
	e.At = c.now()
	e.Snapshot = c.Snapshot()
	if e.StoryID == "" {
		e.StoryID = e.Snapshot.StoryID()
	}
	for _, o := range c.observers {
		o.OnStoryEvent(e)
	}
}
