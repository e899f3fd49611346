package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bugsnag/bugsnag-go/v2"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/turbo360/crewupload/internal/auth"
	"github.com/turbo360/crewupload/internal/ui"
	"github.com/turbo360/crewupload/internal/upload"
	crewBugsnag "github.com/turbo360/crewupload/pkg/bugsnag"
	"github.com/turbo360/crewupload/pkg/config"
)

// UploadState is the phase of an upload run
type UploadState int

const (
	StateQueueing UploadState = iota
	StateUploading
	StateFinished
	StateCancelled
	StateFailed
)

// maxListedErrors caps the failures shown under the progress bar
const maxListedErrors = 5

// Engine is the part of the upload scheduler the view drives
type Engine interface {
	Add(files ...upload.File) []string
	StartAll()
	PauseAll()
}

type UploadConfig struct {
	ui.DisplayConfig

	Engine  Engine
	Files   []upload.File
	Session *config.Session

	Out io.Writer
}

// EventMsg carries a task lifecycle event from the bus
type EventMsg struct {
	Event upload.Event
}

// ReportMsg carries an aggregate progress report from the bus
type ReportMsg struct {
	Report upload.Report
}

// Sender is satisfied by *tea.Program
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramListener forwards bus output into a running Bubbletea program
type ProgramListener struct {
	sender Sender
}

// NewProgramListener creates a bus listener that sends to s
func NewProgramListener(s Sender) *ProgramListener {
	return &ProgramListener{sender: s}
}

func (l *ProgramListener) OnEvent(ev upload.Event) {
	l.sender.Send(EventMsg{Event: ev})
}

func (l *ProgramListener) OnReport(r upload.Report) {
	l.sender.Send(ReportMsg{Report: r})
}

// UploadView queues files on the engine, starts the run and renders progress until the run settles
type UploadView struct {
	ctx context.Context

	state    UploadState
	spinner  *ui.SpinnerModel
	overall  progress.Model
	perFile  progress.Model
	report   upload.Report
	tasks    map[string]upload.Snapshot
	order    []string
	failures []upload.Snapshot
	done     int

	authExpired        bool
	lastPrintedPercent int
	err                error

	conf UploadConfig
}

// NewUploadView creates the upload view
func NewUploadView(ctx context.Context, conf UploadConfig) *UploadView {
	if conf.Out == nil {
		conf.Out = os.Stdout
	}
	return &UploadView{
		ctx:     ctx,
		state:   StateQueueing,
		spinner: ui.NewSpinner(),
		overall: progress.New(
			progress.WithSolidFill(ui.ProgressColor),
			progress.WithWidth(50),
			progress.WithoutPercentage(),
			progress.WithColorProfile(lipgloss.ColorProfile()),
		),
		perFile: progress.New(
			progress.WithSolidFill(ui.ProgressColor),
			progress.WithWidth(20),
			progress.WithoutPercentage(),
			progress.WithColorProfile(lipgloss.ColorProfile()),
		),
		tasks: make(map[string]upload.Snapshot),
		conf:  conf,
	}
}

// Error returns the error if any occurred during execution
func (m *UploadView) Error() error {
	return m.err
}

func (m *UploadView) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), m.start)
}

func (m *UploadView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case ui.SignalCancelMsg:
		return m.onCancel()

	case pausedMsg:
		return m.onPaused()

	case runStartedMsg:
		return m.onStarted(v)

	case EventMsg:
		return m.onEvent(v.Event)

	case ReportMsg:
		return m.onReport(v.Report)

	case *ui.UIError:
		return m.onError(v)

	case tea.KeyMsg:
		return m.onKey(v)

	default:
		return m.onDefault(msg)
	}
}

func (m *UploadView) onCancel() (tea.Model, tea.Cmd) {
	if m.finished() {
		return m, nil
	}
	m.state = StateCancelled
	m.err = ui.NewUserCancelledError()
	return m, m.pause
}

// pausedMsg reports that every task has been paused
type pausedMsg struct{}

// pause blocks until in-flight chunks stop
func (m *UploadView) pause() tea.Msg {
	m.conf.Engine.PauseAll()
	return pausedMsg{}
}

func (m *UploadView) onPaused() (tea.Model, tea.Cmd) {
	if m.conf.SimpleOutput() {
		fmt.Fprintf(m.conf.Out, "\nUpload paused by user\n")
	}
	return m, tea.Quit
}

func (m *UploadView) onStarted(msg runStartedMsg) (tea.Model, tea.Cmd) {
	m.state = StateUploading
	if m.conf.SimpleOutput() {
		fmt.Fprintf(m.conf.Out, "Uploading %d files (%s)...\n", msg.files, ui.FormatBytes(msg.bytes))
	}
	return m, nil
}

func (m *UploadView) onEvent(ev upload.Event) (tea.Model, tea.Cmd) {
	switch ev.Type {
	case upload.EventRemoved:
		delete(m.tasks, ev.TaskID)
		return m, nil
	case upload.EventAuthExpired:
		m.authExpired = true
		return m, nil
	}

	if _, ok := m.tasks[ev.TaskID]; !ok {
		m.order = append(m.order, ev.TaskID)
	}
	m.tasks[ev.TaskID] = ev.Task

	switch ev.Type {
	case upload.EventCompleted:
		m.done++
		if m.conf.SimpleOutput() {
			fmt.Fprintf(m.conf.Out, "✓ Uploaded %s (%d/%d)\n", ev.Task.Name, m.done, len(m.conf.Files))
		}
	case upload.EventError:
		m.done++
		m.failures = append(m.failures, ev.Task)
		if m.conf.SimpleOutput() {
			fmt.Fprintf(m.conf.Out, "✗ Failed %s: %s\n", ev.Task.Name, ev.Message)
		}
	}
	return m, nil
}

func (m *UploadView) onReport(r upload.Report) (tea.Model, tea.Cmd) {
	m.report = r

	if m.conf.SimpleOutput() && r.Total > 0 {
		decile := (int(r.Percent) / 10) * 10
		if decile > m.lastPrintedPercent {
			m.lastPrintedPercent = decile
			fmt.Fprintf(m.conf.Out, "Progress: %d%% (%s / %s, %s)\n",
				decile, ui.FormatBytes(r.Uploaded), ui.FormatBytes(r.Total), ui.FormatSpeed(r.Speed))
		}
	}

	if !r.Final || m.finished() {
		return m, nil
	}
	return m.onSettled(r)
}

func (m *UploadView) onSettled(r upload.Report) (tea.Model, tea.Cmd) {
	files, failed := r.Completed+r.Failed, r.Failed
	if r.Batch != nil {
		files, failed = r.Batch.Files, r.Batch.Failed
	}

	switch {
	case m.authExpired:
		m.state = StateFailed
		m.err = ui.NewAuthError(auth.ErrSessionExpired)
	case failed > 0:
		m.state = StateFailed
		m.err = ui.NewUploadFailedError(failed, files)
	default:
		m.state = StateFinished
	}
	if uiErr, ok := m.err.(*ui.UIError); ok {
		uiErr.SilentExit = true
	}

	for _, f := range m.failures {
		if m.authExpired {
			break
		}
		crewBugsnag.NotifyWithMetadata(m.ctx, errors.New(f.Error), bugsnag.SeverityWarning, bugsnag.MetaData{
			"upload": {
				"file_size":    f.Size,
				"content_type": f.ContentType,
				"offset":       f.Offset,
				"retries":      f.RetryCount,
			},
		})
	}

	if m.conf.SimpleOutput() {
		fmt.Fprintln(m.conf.Out, m.summaryLine())
		if m.err != nil {
			fmt.Fprintf(m.conf.Out, "Error: %s\n", m.err.Error())
		}
	}
	return m, tea.Quit
}

func (m *UploadView) onError(err *ui.UIError) (tea.Model, tea.Cmd) {
	err.SilentExit = true
	m.err = err
	m.state = StateFailed

	if m.conf.SimpleOutput() {
		fmt.Fprintf(m.conf.Out, "Error: %s\n", err.Error())
	}
	return m, tea.Quit
}

func (m *UploadView) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.conf.SimpleOutput() {
		return m, nil
	}

	switch msg.String() {
	case "q", "esc", tea.KeyCtrlC.String():
		return m.onCancel()
	}
	return m, nil
}

func (m *UploadView) onDefault(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.conf.SimpleOutput() || m.finished() {
		return m, nil
	}

	spinnerModel, cmd := m.spinner.Update(msg)
	m.spinner = spinnerModel.(*ui.SpinnerModel) //nolint:errcheck // Type assertion guaranteed by SpinnerModel structure
	return m, cmd
}

func (m *UploadView) finished() bool {
	return m.state == StateFinished || m.state == StateFailed || m.state == StateCancelled
}

type runStartedMsg struct {
	files int
	bytes int64
}

func (m *UploadView) start() tea.Msg {
	if len(m.conf.Files) == 0 {
		return ui.NewFileSystemError(errors.New("no files found to upload"))
	}

	var total int64
	for _, f := range m.conf.Files {
		total += f.Size
	}
	m.conf.Engine.Add(m.conf.Files...)
	m.conf.Engine.StartAll()
	return runStartedMsg{files: len(m.conf.Files), bytes: total}
}

func (m *UploadView) summaryLine() string {
	r := m.report
	switch {
	case m.state == StateFinished:
		line := fmt.Sprintf("✓ Uploaded %d files (%s)", r.Completed, ui.FormatBytes(r.Total))
		if r.Batch != nil {
			line += " in " + ui.FormatDuration(r.Batch.CompletedAt.Sub(r.Batch.StartedAt))
		}
		return line
	case m.state == StateCancelled:
		return ui.YellowStyle.Render(fmt.Sprintf("Upload paused with %d of %d files uploaded", r.Completed, len(m.conf.Files)))
	case m.authExpired:
		return fmt.Sprintf("✗ Upload stopped: %d of %d files completed", r.Completed, r.Completed+r.Failed)
	default:
		return fmt.Sprintf("✗ %d files uploaded, %d failed", r.Completed, r.Failed)
	}
}

func (m *UploadView) View() string {
	if m.conf.SimpleOutput() {
		return ""
	}

	var output strings.Builder

	if s := m.conf.Session; s != nil {
		output.WriteString(ui.RenderFields([]ui.Field{
			{Label: "Project", Value: s.ProjectName},
			{Label: "Crew", Value: s.CrewName},
		}))
		output.WriteString("\n\n")
	}

	switch m.state {
	case StateQueueing:
		output.WriteString(fmt.Sprintf("%s Queueing %d files...\n", m.spinner.View(), len(m.conf.Files)))
		return output.String()

	case StateUploading:
		output.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(),
			ui.CyanStyle.Render(fmt.Sprintf("↑ Uploading %d of %d files", min(m.done+1, len(m.conf.Files)), len(m.conf.Files)))))

	default:
		output.WriteString(m.summaryLine())
		output.WriteString("\n\n")
	}

	r := m.report
	output.WriteString(fmt.Sprintf("  %s %s\n", m.overall.ViewAs(r.Percent/100), ui.BoldStyle.Render(ui.FormatPercent(r.Percent))))

	stats := []string{fmt.Sprintf("%s / %s", ui.FormatBytes(r.Uploaded), ui.FormatBytes(r.Total))}
	if m.state == StateUploading && r.Speed > 0 {
		remaining := r.Total - r.Uploaded
		finish := time.Now().Add(time.Duration(float64(remaining) / r.Speed * float64(time.Second)))
		stats = append(stats, ui.FormatSpeed(r.Speed),
			fmt.Sprintf("ETA %s (done at %s)", ui.FormatTimeRemaining(remaining, r.Speed), ui.FormatTimeOfDay(finish)))
	}
	output.WriteString("  " + ui.StatsStyle.Render(strings.Join(stats, " • ")) + "\n")

	if m.state == StateUploading {
		active := m.activeTasks()
		if len(active) > 0 {
			output.WriteString("\n")
		}
		for _, t := range active {
			output.WriteString(fmt.Sprintf("  %s %s %-9s %s  %s\n",
				m.perFile.ViewAs(t.Progress()),
				ui.FormatPercent(t.Progress()*100),
				ui.ColorizeStatus(string(t.Status)),
				ui.StatsStyle.Render(ui.FormatSpeed(t.Speed)),
				t.Name))
		}
	}

	if len(m.failures) > 0 {
		output.WriteString("\n")
		for i, f := range m.failures {
			if i == maxListedErrors {
				output.WriteString(ui.RedStyle.Render(fmt.Sprintf("  ... and %d more", len(m.failures)-maxListedErrors)) + "\n")
				break
			}
			output.WriteString(fmt.Sprintf("  %s %s: %s\n", ui.RedStyle.Render("✗"), f.Name, f.Error))
		}
	}

	switch m.state {
	case StateUploading:
		output.WriteString("\n" + ui.HelpStyle.Render("Press q to pause and quit") + "\n")
	case StateFailed:
		if m.err != nil {
			output.WriteString("\n" + ui.FormatError(m.err))
		}
	}

	return output.String()
}

func (m *UploadView) activeTasks() []upload.Snapshot {
	var active []upload.Snapshot
	for _, id := range m.order {
		if t, ok := m.tasks[id]; ok && (t.Status == upload.StatusUploading || t.Status == upload.StatusPaused) {
			active = append(active, t)
		}
	}
	return active
}
