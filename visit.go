// Sweetheart card visits
//
// Each page load opens one websocket, and each websocket is one visit with its
// own flow state. The page only draws; the server decides which screen is
// shown, where the "No" button goes and when confetti falls.
//
// Protocol:
// - client: submit_name, evade, affirm
// - server: session_info, step, name_rejected, evasion, confetti
//
// Events for a visit are handled one at a time by its run loop, so the flow
// and evasion state need no locking. Only lastActive is shared with the
// reaper.

package main

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Messages coming from the page
type ClientMessage struct {
	Type   string  `json:"type"`             // "submit_name", "evade", "affirm"
	Name   string  `json:"name,omitempty"`   // submit_name
	Image  string  `json:"image,omitempty"`  // submit_name
	Width  float64 `json:"width,omitempty"`  // evade
	Height float64 `json:"height,omitempty"` // evade
}

// SessionInfoMessage is sent immediately on connect.
type SessionInfoMessage struct {
	Type         string `json:"type"` // "session_info"
	VisitID      string `json:"visit_id"`
	PresetImage  string `json:"preset_image"`
	MaxImageSize int64  `json:"max_image_size"`
}

// StepMessage tells the page which screen to show, and with what.
type StepMessage struct {
	Type  string `json:"type"` // "step"
	Step  string `json:"step"` // "entry", "question", "celebration"
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// NameRejectedMessage is shown under the name input until it is edited.
type NameRejectedMessage struct {
	Type    string `json:"type"` // "name_rejected"
	Message string `json:"message"`
}

// EvasionMessage places both buttons. Position is null while docked.
type EvasionMessage struct {
	Type          string    `json:"type"` // "evasion"
	AffirmScale   float64   `json:"affirm_scale"`
	NegativeScale float64   `json:"negative_scale"`
	Position      *Position `json:"position"`
	Pulse         bool      `json:"pulse"`
}

type ConfettiMessage struct {
	Type   string  `json:"type"` // "confetti"
	Bursts []Burst `json:"bursts"`
}

func newEvasionMessage(s EvasionState, pulse bool) EvasionMessage {
	return EvasionMessage{
		Type:          "evasion",
		AffirmScale:   s.AffirmScale,
		NegativeScale: s.NegativeScale,
		Position:      s.Position,
		Pulse:         pulse,
	}
}

type Visit struct {
	id      string
	cfg     *Config
	metrics *Metrics
	conn    *websocket.Conn

	send   chan any
	events chan ClientMessage

	ctx    context.Context
	cancel context.CancelFunc

	clock      Clock
	rng        *rand.Rand
	evasionCfg EvasionConfig

	flow    *Flow
	evasion *Evasion

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time
}

func newVisit(parent context.Context, cfg *Config, m *Metrics, conn *websocket.Conn) *Visit {
	ctx, cancel := context.WithCancel(parent)
	now := time.Now()

	return &Visit{
		id:         uuid.NewString(),
		cfg:        cfg,
		metrics:    m,
		conn:       conn,
		send:       make(chan any, 32),
		events:     make(chan ClientMessage),
		ctx:        ctx,
		cancel:     cancel,
		clock:      wallClock{},
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		evasionCfg: defaultEvasionConfig(),
		flow:       newFlow(newAllowList(cfg.acceptedNames)),
		createdAt:  now,
		lastActive: now,
	}
}

func (v *Visit) touch() {
	v.mu.Lock()
	v.lastActive = time.Now()
	v.mu.Unlock()
}

func (v *Visit) idleSince() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.lastActive
}

// close ends the visit. Any running celebration is abandoned.
func (v *Visit) close() {
	v.cancel()
	if v.conn != nil {
		_ = v.conn.Close()
	}
}

// queue hands a message to the write pump, giving up once the visit ends.
func (v *Visit) queue(msg any) {
	select {
	case v.send <- msg:
	case <-v.ctx.Done():
	}
}

func (v *Visit) greet() {
	v.queue(SessionInfoMessage{
		Type:         "session_info",
		VisitID:      v.id,
		PresetImage:  v.cfg.presetImagePath(),
		MaxImageSize: v.cfg.maxImageSize,
	})
	v.queue(v.stepMessage())
}

func (v *Visit) stepMessage() StepMessage {
	return StepMessage{
		Type:  "step",
		Step:  v.flow.Step().String(),
		Name:  v.flow.DisplayName(),
		Image: v.flow.ImageRef(),
	}
}

func (v *Visit) run() {
	for {
		select {
		case <-v.ctx.Done():
			return
		case msg := <-v.events:
			v.handle(msg)
		}
	}
}

func (v *Visit) handle(msg ClientMessage) {
	switch msg.Type {
	case "submit_name":
		v.handleSubmitName(msg)
	case "evade":
		v.handleEvade(msg)
	case "affirm":
		v.handleAffirm()
	default:
		// ignore unknown types
	}
}

func (v *Visit) handleSubmitName(msg ClientMessage) {
	image := normalizeImageRef(msg.Image, v.cfg.presetImagePath())

	err := v.flow.SubmitName(msg.Name, image)

	var rejected *NameRejectedError
	switch {
	case errors.As(err, &rejected):
		v.metrics.NamesRejected.Inc()
		logf(v.cfg, "VISIT: Rejected name %q in %s", msg.Name, v.id)

		v.queue(NameRejectedMessage{
			Type:    "name_rejected",
			Message: rejected.Message,
		})

		return
	case err != nil:
		return
	}

	v.metrics.NamesAccepted.Inc()
	if image != "" && image != v.cfg.presetImagePath() {
		v.metrics.ImagesSubmitted.Inc()
	}
	logf(v.cfg, "VISIT: Accepted name %q in %s (image: %s)", v.flow.DisplayName(), v.id, humanReadableSize(int64(len(image))))

	// Entering the question screen always starts from a docked "No".
	v.evasion = newEvasion(v.evasionCfg, v.rng)

	v.queue(v.stepMessage())
	v.queue(newEvasionMessage(v.evasion.State(), false))
}

func (v *Visit) handleEvade(msg ClientMessage) {
	if v.flow.Step() != StepQuestion || v.evasion == nil {
		return
	}

	state := v.evasion.Trigger(Bounds{Width: msg.Width, Height: msg.Height})
	v.metrics.Evasions.Inc()

	v.queue(newEvasionMessage(state, true))
}

func (v *Visit) handleAffirm() {
	if err := v.flow.ConfirmAffirmative(); err != nil {
		return
	}

	v.evasion = nil
	v.metrics.Affirmations.Inc()
	logf(v.cfg, "VISIT: %q said yes in %s", v.flow.DisplayName(), v.id)

	v.queue(v.stepMessage())

	go v.celebrate()
}

func (v *Visit) celebrate() {
	c := newCelebration(v.clock, v.cfg.celebrationDuration, v.cfg.frameInterval)

	c.Run(v.ctx, EmitterFunc(func(bursts []Burst) {
		v.metrics.ConfettiFrames.Inc()
		v.queue(ConfettiMessage{
			Type:   "confetti",
			Bursts: bursts,
		})
	}))
}

// pongWait is how long a visit may go without hearing anything, pongs
// included, before its socket is considered dead.
func (v *Visit) pongWait() time.Duration {
	return 3 * v.cfg.pingInterval
}

func (v *Visit) readPump() {
	defer v.close()

	v.conn.SetReadLimit(v.cfg.maxImageSize)
	_ = v.conn.SetReadDeadline(time.Now().Add(v.pongWait()))
	v.conn.SetPongHandler(func(string) error {
		v.touch()
		return v.conn.SetReadDeadline(time.Now().Add(v.pongWait()))
	})

	for {
		var msg ClientMessage
		if err := v.conn.ReadJSON(&msg); err != nil {
			return
		}

		v.touch()
		_ = v.conn.SetReadDeadline(time.Now().Add(v.pongWait()))

		select {
		case v.events <- msg:
		case <-v.ctx.Done():
			return
		}
	}
}

func (v *Visit) writePump() {
	ticker := time.NewTicker(v.cfg.pingInterval)
	defer func() {
		ticker.Stop()
		v.close()
	}()

	for {
		select {
		case <-v.ctx.Done():
			return
		case <-ticker.C:
			if err := v.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout)); err != nil {
				return
			}
		case msg := <-v.send:
			_ = v.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := v.conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// VisitManager tracks connected visits so idle ones can be reaped.
type VisitManager struct {
	mu          sync.Mutex
	visits      map[string]*Visit
	idleTimeout time.Duration
	metrics     *Metrics
}

func newVisitManager(ctx context.Context, idleTimeout time.Duration, m *Metrics) *VisitManager {
	vm := &VisitManager{
		visits:      make(map[string]*Visit),
		idleTimeout: idleTimeout,
		metrics:     m,
	}
	if idleTimeout > 0 {
		go vm.reaperLoop(ctx)
	}
	return vm
}

func (vm *VisitManager) add(v *Visit) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.visits[v.id] = v
	vm.metrics.VisitsStarted.Inc()
	vm.metrics.VisitsLive.Inc()
}

func (vm *VisitManager) remove(v *Visit) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if _, ok := vm.visits[v.id]; ok {
		delete(vm.visits, v.id)
		vm.metrics.VisitsLive.Dec()
	}
}

func (vm *VisitManager) count() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	return len(vm.visits)
}

// reap disconnects visits that have been idle since before cutoff.
func (vm *VisitManager) reap(cutoff time.Time) int {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	reaped := 0

	for id, v := range vm.visits {
		if v.idleSince().Before(cutoff) {
			delete(vm.visits, id)
			vm.metrics.VisitsLive.Dec()
			vm.metrics.VisitsReaped.Inc()
			go v.close()
			reaped++
		}
	}

	return reaped
}

func (vm *VisitManager) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(vm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			vm.reap(time.Now().Add(-vm.idleTimeout))
		}
	}
}

func serveWS(ctx context.Context, cfg *Config, vm *VisitManager, m *Metrics) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		v := newVisit(ctx, cfg, m, conn)
		vm.add(v)
		defer vm.remove(v)

		logf(cfg, "VISIT: Opened %s for %s", v.id, realIP(r))

		go v.writePump()
		go v.run()

		v.greet()
		v.readPump()

		logf(cfg, "VISIT: Closed %s after %s", v.id, time.Since(v.createdAt).Round(time.Millisecond))
	}
}
