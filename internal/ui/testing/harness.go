// Package testing drives Bubbletea models step by step in unit tests.
package testing

import (
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/sebdah/goldie/v2"
)

// maxCommandDepth bounds command chains so tick loops terminate
const maxCommandDepth = 10

// TestHarness feeds messages to a model, runs the commands it returns and
// asserts on the model and its view after every step.
//
//	uitesting.NewTestHarness(t, view).
//		Step(uitesting.TestStep[*UploadView]{
//			Name:       "first report",
//			Msg:        ReportMsg{Report: report},
//			ViewGolden: "upload_half_done",
//			ViewAssert: func(t *testing.T, view string) {
//				assert.Contains(t, view, "50%")
//			},
//		}).
//		Run(t)
type TestHarness[T tea.Model] struct {
	model    T
	steps    []TestStep[T]
	expected []TestStep[T]
	next     int
	goldie   *goldie.Goldie
}

// TestStep is one message and the assertions that follow it
type TestStep[T tea.Model] struct {
	Name string

	// Msg is sent to Update. Nil only renders the current state.
	Msg tea.Msg

	// ExpectedMsgType restricts an Expect step to one message type
	ExpectedMsgType tea.Msg

	// MessageAssert inspects an intercepted message before Update sees it
	MessageAssert func(t *testing.T, msg tea.Msg)

	// ViewGolden compares the view with testdata/<ViewGolden>.golden.
	// Regenerate with go test -update.
	ViewGolden string

	ViewAssert  func(t *testing.T, view string)
	ModelAssert func(t *testing.T, m T)

	// CmdAssert receives the command Update returned, before it runs
	CmdAssert func(t *testing.T, cmd tea.Cmd)

	// SkipCommands leaves the returned command unexecuted
	SkipCommands bool
}

// NewTestHarness pins the color profile to ASCII so views compare as plain text
func NewTestHarness[T tea.Model](t *testing.T, model T) *TestHarness[T] {
	t.Helper()
	lipgloss.SetColorProfile(termenv.Ascii)
	return &TestHarness[T]{
		model: model,
		goldie: goldie.New(t,
			goldie.WithFixtureDir("testdata"),
			goldie.WithNameSuffix(".golden"),
		),
	}
}

// Step queues a message to send
func (h *TestHarness[T]) Step(step TestStep[T]) *TestHarness[T] {
	h.steps = append(h.steps, step)
	return h
}

// Expect queues a step that intercepts the next message produced by a command
func (h *TestHarness[T]) Expect(step TestStep[T]) *TestHarness[T] {
	h.expected = append(h.expected, step)
	return h
}

// Run calls Init and then every step in order
func (h *TestHarness[T]) Run(t *testing.T) {
	t.Helper()
	h.next = 0

	h.process(t, h.model.Init(), 0)

	for _, step := range h.steps {
		t.Run(step.Name, func(t *testing.T) {
			if step.Msg != nil {
				cmd := h.update(t, step.Msg)
				if step.CmdAssert != nil {
					step.CmdAssert(t, cmd)
				}
				if !step.SkipCommands {
					h.process(t, cmd, 0)
				}
			}
			h.assert(t, step)
		})
	}

	if h.next < len(h.expected) {
		t.Errorf("expected step %q never received a message", h.expected[h.next].Name)
	}
}

// Model returns the model as left by the last step
func (h *TestHarness[T]) Model() T {
	return h.model
}

func (h *TestHarness[T]) update(t *testing.T, msg tea.Msg) tea.Cmd {
	t.Helper()
	updated, cmd := h.model.Update(msg)
	m, ok := updated.(T)
	if !ok {
		t.Fatalf("model %T is not %T", updated, h.model)
	}
	h.model = m
	return cmd
}

func (h *TestHarness[T]) process(t *testing.T, cmd tea.Cmd, depth int) {
	t.Helper()
	if cmd == nil || depth >= maxCommandDepth {
		return
	}

	msg := cmd()
	switch msg := msg.(type) {
	case nil:
		return
	case tea.BatchMsg:
		for _, c := range msg {
			h.process(t, c, depth+1)
		}
		return
	}
	if isQuit(msg) {
		return
	}

	if h.next < len(h.expected) && matches(msg, h.expected[h.next]) {
		step := h.expected[h.next]
		h.next++
		if step.MessageAssert != nil {
			step.MessageAssert(t, msg)
		}
		h.update(t, msg)
		t.Run(step.Name, func(t *testing.T) { h.assert(t, step) })
		return
	}

	h.process(t, h.update(t, msg), depth+1)
}

func (h *TestHarness[T]) assert(t *testing.T, step TestStep[T]) {
	t.Helper()
	if step.ViewGolden != "" || step.ViewAssert != nil {
		view := normalizeView(h.model.View())
		if step.ViewGolden != "" {
			h.goldie.Assert(t, step.ViewGolden, []byte(view))
		}
		if step.ViewAssert != nil {
			step.ViewAssert(t, view)
		}
	}
	if step.ModelAssert != nil {
		step.ModelAssert(t, h.model)
	}
}

func isQuit(msg tea.Msg) bool {
	_, ok := msg.(tea.QuitMsg)
	return ok
}

func matches[T tea.Model](msg tea.Msg, step TestStep[T]) bool {
	if step.ExpectedMsgType != nil {
		return reflect.TypeOf(msg) == reflect.TypeOf(step.ExpectedMsgType)
	}
	switch msg.(type) {
	case tea.KeyMsg, tea.MouseMsg, tea.WindowSizeMsg:
		return false
	}
	return true
}

func normalizeView(view string) string {
	return strings.TrimSpace(strings.ReplaceAll(view, "\r\n", "\n"))
}
