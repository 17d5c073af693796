// Package studio models the client side of an editing session: collecting a
// scene and products, submitting prompts, showing results and keeping the
// history until the user resets.
package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"scene-studio/internal/compose"
	"scene-studio/internal/editor"
	"scene-studio/internal/history"
)

type State string

const (
	Idle          State = "idle"
	Submitting    State = "submitting"
	ShowingResult State = "showing_result"
	Failed        State = "failed"
)

var (
	ErrBusy         = errors.New("an edit is already in progress")
	ErrEmptyPrompt  = errors.New("prompt is empty")
	ErrSlotsFull    = errors.New("both product slots are taken")
	ErrSessionReset = errors.New("session was reset while the edit was running")
)

// Editor performs one edit round trip.
type Editor interface {
	Edit(ctx context.Context, req editor.Request) (editor.Result, error)
}

// View is a consistent copy of the session for rendering.
type View struct {
	State       State
	Scene       string
	SceneSize   *compose.SceneSize
	Products    []string
	Result      string
	Description string
	Error       string
	History     []history.Entry
	UpdatedAt   time.Time
}

type Session struct {
	mu sync.Mutex

	state       State
	scene       string
	sceneSize   *compose.SceneSize
	products    [compose.MaxProductImages]string
	result      string
	description string
	lastErr     string
	log         history.Log

	// generation changes on Reset so an edit started before it is dropped.
	generation uint64
	updatedAt  time.Time
	now        func() time.Time
}

func NewSession() *Session {
	s := &Session{state: Idle, now: time.Now}
	s.updatedAt = s.now()
	return s
}

// SetScene replaces the scene. A previous result is dropped so the next edit
// starts from the new scene; the history is kept.
func (s *Session) SetScene(dataURL string, size *compose.SceneSize) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Submitting {
		return ErrBusy
	}
	s.scene = dataURL
	s.sceneSize = cloneSize(size)
	s.result = ""
	s.description = ""
	s.state = Idle
	s.touchLocked()
	return nil
}

// SetProduct stores a product image in slot 0 or 1. An empty value clears it.
func (s *Session) SetProduct(slot int, dataURL string) error {
	if slot < 0 || slot >= compose.MaxProductImages {
		return fmt.Errorf("product slot %d out of range", slot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Submitting {
		return ErrBusy
	}
	s.products[slot] = dataURL
	s.touchLocked()
	return nil
}

// AddProduct fills the first free product slot and returns its index.
func (s *Session) AddProduct(dataURL string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Submitting {
		return -1, ErrBusy
	}
	for i, p := range s.products {
		if p == "" {
			s.products[i] = dataURL
			s.touchLocked()
			return i, nil
		}
	}
	return -1, ErrSlotsFull
}

func (s *Session) ClearProducts() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = [compose.MaxProductImages]string{}
	s.touchLocked()
}

// Submit edits the latest generated image if there is one, otherwise the
// scene. On success the result and a history turn are recorded; on failure
// the session moves to Failed and the user may submit again.
func (s *Session) Submit(ctx context.Context, ed Editor, prompt string) (editor.Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return editor.Result{}, ErrEmptyPrompt
	}

	s.mu.Lock()
	if s.state == Submitting {
		s.mu.Unlock()
		return editor.Result{}, ErrBusy
	}
	target := s.editTargetLocked()
	products := s.productsLocked()
	req := editor.Request{
		Prompt:        prompt,
		Image:         target,
		ProductImages: products,
		SceneSize:     cloneSize(s.sceneSize),
	}
	s.state = Submitting
	s.lastErr = ""
	generation := s.generation
	s.touchLocked()
	s.mu.Unlock()

	res, err := ed.Edit(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation {
		return editor.Result{}, ErrSessionReset
	}
	s.touchLocked()
	if err != nil {
		s.state = Failed
		s.lastErr = err.Error()
		return editor.Result{}, err
	}

	s.result = res.Image
	s.description = res.Description
	turn := history.Turn(prompt, target, products, res.Description, res.Image)
	s.log = s.log.Append(turn[:]...)
	s.state = ShowingResult
	return res, nil
}

// Reset discards everything, history included.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Idle
	s.scene = ""
	s.sceneSize = nil
	s.products = [compose.MaxProductImages]string{}
	s.result = ""
	s.description = ""
	s.lastErr = ""
	s.log = history.Log{}
	s.generation++
	s.touchLocked()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EditTarget is the image the next submission will edit.
func (s *Session) EditTarget() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editTargetLocked()
}

func (s *Session) History() history.Log {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return View{
		State:       s.state,
		Scene:       s.scene,
		SceneSize:   cloneSize(s.sceneSize),
		Products:    s.productsLocked(),
		Result:      s.result,
		Description: s.description,
		Error:       s.lastErr,
		History:     s.log.Entries(),
		UpdatedAt:   s.updatedAt,
	}
}

func (s *Session) editTargetLocked() string {
	if s.result != "" {
		return s.result
	}
	return s.scene
}

func (s *Session) productsLocked() []string {
	out := make([]string, 0, len(s.products))
	for _, p := range s.products {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) touchLocked() {
	s.updatedAt = s.now()
}

func cloneSize(size *compose.SceneSize) *compose.SceneSize {
	if size == nil {
		return nil
	}
	c := *size
	return &c
}
