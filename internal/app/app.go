package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/ainoa/noc-console/internal/command"
	"github.com/ainoa/noc-console/internal/model"
	"github.com/ainoa/noc-console/internal/reconcile"
	"github.com/ainoa/noc-console/internal/session"
	"github.com/ainoa/noc-console/internal/theme"
	"github.com/ainoa/noc-console/internal/views/debug"
	"github.com/ainoa/noc-console/internal/views/incidents"
	"github.com/ainoa/noc-console/internal/views/simulate"
	"github.com/ainoa/noc-console/internal/views/status"
	"github.com/ainoa/noc-console/internal/views/tiles"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayHelp
)

// Connector is the part of the session the UI drives.
type Connector interface {
	Connect()
}

// Commands issues out-of-band requests.
type Commands interface {
	ApprovePlan(ctx context.Context, eventID string) (*command.ApproveResult, error)
	RunSimulation(ctx context.Context, in command.SimulationInput) (*command.SimulationResult, error)
}

type approveDoneMsg struct {
	eventID string
	result  *command.ApproveResult
	err     error
}

type simulateDoneMsg struct {
	result *command.SimulationResult
	err    error
}

type exportDoneMsg struct {
	eventID string
	path    string
	err     error
}

// Options wires the model to its collaborators.
type Options struct {
	Bridge        *Bridge
	Session       Connector
	Commands      Commands
	ExportDir     string
	Simulation    command.SimulationInput // scenario used with no incident selected
	MarkdownStyle string                  // glamour style for explanations
	Now           func() time.Time
}

// Model is the root Bubble Tea model. It owns the reconciler; every
// mutation happens inside Update.
type Model struct {
	bridge    *Bridge
	conn      Connector
	cmds      Commands
	ctx       context.Context
	cancel    context.CancelFunc
	exportDir string
	now       func() time.Time

	keys   KeyMap
	help   help.Model
	width  int
	height int

	store       *reconcile.Store
	simDefaults command.SimulationInput
	overlay     Overlay
	notice      string
	noticeErr   bool

	statusBar status.Model
	tiles     tiles.Model
	incidents incidents.Model
	sim       simulate.Model
	debug     debug.Model
}

// New creates the root model.
func New(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	list := incidents.New()
	if opts.MarkdownStyle != "" {
		list = incidents.NewWithStyle(opts.MarkdownStyle)
	}
	return Model{
		bridge:      opts.Bridge,
		conn:        opts.Session,
		cmds:        opts.Commands,
		ctx:         ctx,
		cancel:      cancel,
		exportDir:   opts.ExportDir,
		now:         opts.Now,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		store:       reconcile.NewStore(),
		simDefaults: opts.Simulation,
		statusBar:   status.New(),
		tiles:       tiles.New(),
		incidents:   list,
		sim:         simulate.New(opts.Simulation),
		debug:       debug.New(),
	}
}

// Init starts listening to the stream bridge.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.statusBar.Init()}
	if m.bridge != nil {
		cmds = append(cmds, m.bridge.Wait())
	}
	return tea.Batch(cmds...)
}

// Store exposes the reconciler for inspection.
func (m Model) Store() *reconcile.Store {
	return m.store
}

// Notice returns the last command outcome line.
func (m Model) Notice() string {
	return m.notice
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.tiles.Width = msg.Width
		m.incidents.Width = msg.Width
		m.sim.Width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case PayloadMsg:
		rm := m.store.Apply(msg.Payload)
		cmd := m.applyRender(rm)
		meta := m.store.Meta()
		m.statusBar.LastUpdated = meta.LastUpdated
		m.statusBar.TraceID = meta.TraceID
		return m, tea.Batch(cmd, m.waitBridge())

	case StatusMsg:
		m.statusBar.Conn = msg.Status
		m.logStatus(msg.Status)
		return m, m.waitBridge()

	case DropMsg:
		m.debug.Addf(debug.KindParse, "dropped frame: %v", msg.Err)
		return m, m.waitBridge()

	case approveDoneMsg:
		if msg.err != nil {
			log.Error().Err(msg.err).Str("event_id", msg.eventID).Msg("approve failed")
			m.setNotice(fmt.Sprintf("Approval failed for %s: %v", msg.eventID, msg.err), true)
			m.debug.Addf(debug.KindError, "approve %s: %v", msg.eventID, msg.err)
			return m, nil
		}
		log.Info().Str("event_id", msg.eventID).Str("status", msg.result.Status).Msg("plan approved")
		m.setNotice("Plan approved for "+msg.eventID, false)
		m.debug.Addf(debug.KindCommand, "approve %s: %s", msg.eventID, msg.result.Status)
		return m, nil

	case simulateDoneMsg:
		m.sim.Finish(msg.result, msg.err)
		if msg.err != nil {
			log.Error().Err(msg.err).Msg("simulation failed")
			m.setNotice("Simulation failed: "+msg.err.Error(), true)
			m.debug.Addf(debug.KindError, "simulate: %v", msg.err)
			return m, nil
		}
		gen := m.store.Generation()
		log.Info().Str("trace_id", msg.result.TraceID).Bool("stale", msg.result.Stale(gen)).Msg("simulation complete")
		m.debug.Addf(debug.KindCommand, "simulate %s (issued at gen %d, now %d)", msg.result.TraceID, msg.result.IssuedAt, gen)
		m.setNotice("Simulation complete", false)
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			log.Error().Err(msg.err).Str("event_id", msg.eventID).Msg("export failed")
			m.setNotice("Export failed: "+msg.err.Error(), true)
			m.debug.Addf(debug.KindError, "export %s: %v", msg.eventID, msg.err)
			return m, nil
		}
		m.setNotice("Exported "+msg.path, false)
		m.debug.Addf(debug.KindCommand, "export %s -> %s", msg.eventID, msg.path)
		return m, nil

	case tiles.FrameMsg:
		var cmd tea.Cmd
		m.tiles, cmd = m.tiles.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.statusBar, cmd = m.statusBar.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) waitBridge() tea.Cmd {
	if m.bridge == nil {
		return nil
	}
	return m.bridge.Wait()
}

func (m *Model) applyRender(rm reconcile.RenderModel) tea.Cmd {
	m.incidents.SetRows(rm.Incidents)
	open := 0
	for _, r := range rm.Incidents {
		if r.Incident.Status == model.StatusOpen {
			open++
		}
	}
	m.statusBar.SetCounts(len(rm.Tiles), len(rm.Incidents), open)
	return m.tiles.SetTiles(rm.Tiles)
}

func (m *Model) logStatus(st session.Status) {
	switch st.State {
	case session.StateReconnecting:
		m.debug.Addf(debug.KindStream, "closed (%v); retry %d in %s", st.Err, st.Attempt, st.Delay)
	case session.StateClosed:
		if st.Err != nil && !errors.Is(st.Err, session.ErrClosed) {
			m.debug.Addf(debug.KindError, "closed: %v", st.Err)
			return
		}
		m.debug.Add(debug.KindStream, "closed")
	default:
		m.debug.Add(debug.KindStream, st.State.String())
	}
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug) && m.overlay == OverlayDebug,
			key.Matches(msg, m.keys.Help) && m.overlay == OverlayHelp:
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Quit):
			m.cancel()
			return m, tea.Quit
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.debug.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.debug.ScrollDown(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Filter):
			m.debug.CycleFilter()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.incidents.MoveUp()

	case key.Matches(msg, m.keys.Down):
		m.incidents.MoveDown()

	case key.Matches(msg, m.keys.Toggle):
		if inc, ok := m.incidents.Selected(); ok && m.store.ToggleDrawer(inc.EventID) {
			m.incidents.SetRows(m.store.Project().Incidents)
		}

	case key.Matches(msg, m.keys.Approve):
		return m, m.approveSelected()

	case key.Matches(msg, m.keys.Export):
		return m, m.exportSelected()

	case key.Matches(msg, m.keys.Simulate):
		return m, m.runSimulation()

	case key.Matches(msg, m.keys.TrafficUp):
		m.sim.AdjustMultiplier(1)
	case key.Matches(msg, m.keys.TrafficDown):
		m.sim.AdjustMultiplier(-1)
	case key.Matches(msg, m.keys.CapacityUp):
		m.sim.AdjustCapacity(1)
	case key.Matches(msg, m.keys.CapacityDn):
		m.sim.AdjustCapacity(-1)

	case key.Matches(msg, m.keys.Reconnect):
		if m.conn != nil {
			m.conn.Connect()
			m.debug.Add(debug.KindStream, "manual reconnect")
		}

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
	}

	return m, nil
}

func (m *Model) approveSelected() tea.Cmd {
	inc, ok := m.incidents.Selected()
	if !ok {
		m.setNotice("No incident selected", true)
		return nil
	}
	if m.cmds == nil {
		return nil
	}
	ctx, id, cmds := m.ctx, inc.EventID, m.cmds
	m.setNotice("Approving "+id+"…", false)
	return func() tea.Msg {
		res, err := cmds.ApprovePlan(ctx, id)
		return approveDoneMsg{eventID: id, result: res, err: err}
	}
}

func (m *Model) exportSelected() tea.Cmd {
	inc, ok := m.incidents.Selected()
	if !ok {
		m.setNotice("No incident selected", true)
		return nil
	}
	snap, ok := command.ExportSnapshot(m.store, inc.EventID, m.now())
	if !ok {
		m.setNotice(inc.EventID+" is no longer present", true)
		return nil
	}
	dir := m.exportDir
	return func() tea.Msg {
		path, err := command.WriteSnapshot(dir, snap)
		return exportDoneMsg{eventID: snap.Incident.EventID, path: path, err: err}
	}
}

func (m *Model) runSimulation() tea.Cmd {
	if m.cmds == nil {
		return nil
	}
	if inc, ok := m.incidents.Selected(); ok {
		m.sim.SetScenario(inc.EventID, inc.Region, inc.SiteID)
	} else {
		m.sim.SetScenario(m.simDefaults.EventID, m.simDefaults.Region, m.simDefaults.SiteID)
	}
	in := m.sim.Begin(m.store.Generation())
	ctx, cmds := m.ctx, m.cmds
	return func() tea.Msg {
		res, err := cmds.RunSimulation(ctx, in)
		return simulateDoneMsg{result: res, err: err}
	}
}

// View renders the full console.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayDebug:
		return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), m.debug.View(m.width, m.height-3))
	case OverlayHelp:
		h := m.help
		h.ShowAll = true
		return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), "", h.View(m.keys))
	}

	notice := ""
	if m.notice != "" {
		color := theme.ColorHealthy
		if m.noticeErr {
			color = theme.ColorDanger
		}
		notice = lipgloss.NewStyle().Foreground(color).Render("  " + m.notice)
	}

	sections := []string{
		m.statusBar.View(),
		m.tiles.View(),
		m.incidents.View(),
		m.sim.View(m.store.Generation()),
		notice,
		"  " + m.help.View(m.keys),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
