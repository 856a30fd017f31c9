package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"dockdash/internal/action"
	"dockdash/internal/config"
	"dockdash/internal/docker"
	"dockdash/internal/state"
)

type focusArea int

const (
	focusList focusArea = iota
	focusLog
)

const notificationTTL = 5 * time.Second

type storeChangedMsg struct{}

type tickMsg time.Time

type noticeMsg struct {
	text   string
	failed bool
}

type notification struct {
	text    string
	failed  bool
	expires time.Time
}

// confirmation is a destructive request waiting for the operator. run is
// called at most once.
type confirmation struct {
	prompt string
	run    func() (state.PendingAction, error)
}

type popup struct {
	title    string
	viewport viewport.Model
}

type snapshotStore interface {
	Snapshot() *state.Snapshot
	Changed() <-chan struct{}
	DrainCompleted() []state.PendingAction
}

type actionSubmitter interface {
	Submit(p state.Process, kind state.ActionKind) (state.PendingAction, error)
	SubmitCompose(restart bool) (state.PendingAction, error)
}

type logAttacher interface {
	Attach(ctx context.Context, p state.Process) uint64
	Detach()
	Target() string
}

// deps are the workers the dashboard dispatches to. The model itself never
// blocks; openURL and copyText only run inside commands.
type deps struct {
	ctx      context.Context
	store    snapshotStore
	actions  actionSubmitter
	logs     logAttacher
	host     string
	openURL  func(string) error
	copyText func(string) error
}

type sidebarRow struct {
	text  string
	index int
}

type model struct {
	cfg           config.Config
	d             deps
	snap          *state.Snapshot
	selected      int
	selectedID    string
	focus         focusArea
	viewport      viewport.Model
	width         int
	height        int
	sidebarWidth  int
	autoScroll    bool
	keys          keyMap
	help          help.Model
	spinner       spinner.Model
	showHelp      bool
	confirm       *confirmation
	popup         *popup
	notes         []notification
	attachedState state.Lifecycle
	composeAsked  bool
	now           func() time.Time
}

func newModel(cfg config.Config, d deps) model {
	if d.ctx == nil {
		d.ctx = context.Background()
	}
	if d.copyText == nil {
		d.copyText = copyToClipboard
	}
	m := model{
		cfg:          cfg,
		d:            d,
		snap:         d.store.Snapshot(),
		focus:        focusList,
		viewport:     viewport.New(0, 0),
		autoScroll:   true,
		keys:         defaultKeyMap(),
		help:         help.New(),
		spinner:      spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		composeAsked: !cfg.AutoCompose(),
		now:          time.Now,
	}
	m.sync()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(listenStore(m.d.store.Changed()), tick(m.interval()), m.spinner.Tick)
}

// listenStore waits for one change notification. It is re-armed after every
// delivery, so at most one is outstanding.
func listenStore(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return storeChangedMsg{}
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) interval() time.Duration {
	if d := m.cfg.RefreshInterval(); d > 0 {
		return d
	}
	return time.Second
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		m.refreshViewport()
		return m, nil

	case storeChangedMsg:
		m.sync()
		return m, listenStore(m.d.store.Changed())

	case tickMsg:
		m.expireNotes()
		return m, tick(m.interval())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case noticeMsg:
		m.notify(msg.text, msg.failed)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+z" {
		return m, tea.Suspend
	}
	if m.popup != nil {
		switch key {
		case "esc", "q", "enter", "i":
			m.popup = nil
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.popup.viewport, cmd = m.popup.viewport.Update(msg)
		return m, cmd
	}
	if m.showHelp {
		switch key {
		case "esc", "q", "?":
			m.showHelp = false
		case "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	if m.focus == focusLog && m.confirm == nil {
		switch key {
		case "home", "g":
			m.viewport.GotoTop()
			m.autoScroll = m.viewport.AtBottom()
			return m, nil
		case "end", "G":
			m.viewport.GotoBottom()
			m.autoScroll = true
			return m, nil
		case "up", "down", "k", "j", "pgup", "pgdown", "ctrl+u", "ctrl+d":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			m.autoScroll = m.viewport.AtBottom()
			return m, cmd
		}
	}

	return m.dispatch(m.keys.decode(msg, m.confirm != nil))
}

func (m model) dispatch(in decoded) (tea.Model, tea.Cmd) {
	switch in.intent {
	case intentQuit:
		return m, tea.Quit
	case intentHelp:
		m.showHelp = true
	case intentFocus:
		if m.focus == focusList {
			m.focus = focusLog
		} else {
			m.focus = focusList
		}
	case intentNext:
		m.moveSelection(1)
	case intentPrev:
		m.moveSelection(-1)
	case intentAction:
		m.requestAction(in.action)
	case intentConfirm:
		if c := m.confirm; c != nil {
			m.confirm = nil
			m.report(c.run())
		}
	case intentCancel:
		if m.confirm != nil {
			m.confirm = nil
			return m, nil
		}
		m.focus = focusList
		m.autoScroll = true
		m.viewport.GotoBottom()
	case intentOpen:
		return m, m.openEndpoint(in.port)
	case intentCopy:
		return m, m.copyEndpoint()
	}
	return m, nil
}

func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.popup != nil {
		var cmd tea.Cmd
		m.popup.viewport, cmd = m.popup.viewport.Update(msg)
		return m, cmd
	}
	if m.confirm != nil || m.showHelp {
		return m, nil
	}
	if msg.X >= m.sidebarWidth {
		m.focus = focusLog
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.autoScroll = m.viewport.AtBottom()
		return m, cmd
	}

	m.focus = focusList
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.moveSelection(-1)
	case msg.Button == tea.MouseButtonWheelDown:
		m.moveSelection(1)
	case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
		if idx, ok := m.rowAt(msg.Y); ok {
			m.selectIndex(idx)
		}
	}
	return m, nil
}

// sync takes a fresh snapshot and reconciles selection, the log attachment
// and notifications with it.
func (m *model) sync() {
	for _, a := range m.d.store.DrainCompleted() {
		m.complete(a)
	}
	m.snap = m.d.store.Snapshot()
	m.fixSelection()
	m.syncLog()
	m.maybeOfferCompose()
	m.refreshViewport()
}

func (m *model) complete(a state.PendingAction) {
	switch {
	case a.State == state.ActionFailed:
		m.notify(fmt.Sprintf("%s failed: %s", a.Label(), a.Reason), true)
	case a.Kind == state.ActionInspect:
		m.openPopup("inspect "+a.TargetName, a.Output)
	default:
		m.notify(a.Label()+": ok", false)
	}
}

func (m *model) fixSelection() {
	procs := m.snap.Processes
	if len(procs) == 0 {
		m.selected, m.selectedID = 0, ""
		return
	}
	for i, p := range procs {
		if p.ID == m.selectedID {
			m.selected = i
			return
		}
	}
	m.selected = clampInt(m.selected, 0, len(procs)-1)
	m.selectedID = procs[m.selected].ID
}

// syncLog keeps the log stream on the selected process. A stream that ended
// is reopened once the process is running again.
func (m *model) syncLog() {
	p, ok := m.selectedProcess()
	if !ok {
		m.d.logs.Detach()
		return
	}
	if m.d.logs.Target() != p.ID {
		m.attach(p)
		return
	}
	if m.snap.Log.Target != p.ID || !m.snap.Log.Ended {
		return
	}
	if p.State != state.Running {
		m.attachedState = p.State
	} else if m.attachedState != state.Running {
		m.attach(p)
	}
}

func (m *model) attach(p state.Process) {
	m.d.logs.Attach(m.d.ctx, p)
	m.attachedState = p.State
	m.autoScroll = true
}

func (m *model) maybeOfferCompose() {
	if m.composeAsked || m.snap.PollCount == 0 || m.confirm != nil {
		return
	}
	m.composeAsked = true
	m.confirm = m.composeConfirmation(m.stackRunning())
}

func (m model) composeConfirmation(restart bool) *confirmation {
	verb := "Start"
	if restart {
		verb = "Restart"
	}
	actions := m.d.actions
	return &confirmation{
		prompt: fmt.Sprintf("%s the compose stack for profile %q?", verb, m.cfg.Profile),
		run:    func() (state.PendingAction, error) { return actions.SubmitCompose(restart) },
	}
}

func (m model) stackRunning() bool {
	for _, p := range m.snap.Processes {
		if p.Kind != state.KindContainer || p.State != state.Running {
			continue
		}
		for _, name := range m.cfg.StackContainers {
			if p.Name == name {
				return true
			}
		}
	}
	return false
}

func (m *model) requestAction(kind state.ActionKind) {
	if kind == state.ActionComposeUp {
		if m.stackRunning() {
			m.confirm = m.composeConfirmation(true)
			return
		}
		m.report(m.d.actions.SubmitCompose(false))
		return
	}

	p, ok := m.selectedProcess()
	if !ok {
		return
	}
	if !action.Supported(p, kind) {
		m.notify(fmt.Sprintf("%s is not available for %s", kind, p.Name), true)
		return
	}
	if kind.Destructive() {
		actions := m.d.actions
		m.confirm = &confirmation{
			prompt: destructivePrompt(p, kind),
			run:    func() (state.PendingAction, error) { return actions.Submit(p, kind) },
		}
		return
	}
	m.report(m.d.actions.Submit(p, kind))
}

func destructivePrompt(p state.Process, kind state.ActionKind) string {
	if kind == state.ActionReset {
		return fmt.Sprintf("Reset %s? It is stopped and removed, and its named volumes are deleted.", p.Name)
	}
	return fmt.Sprintf("Remove %s? Running containers are killed first.", p.Name)
}

func (m *model) report(a state.PendingAction, err error) {
	switch {
	case err == nil:
	case errors.Is(err, state.ErrConflict):
		m.notify(fmt.Sprintf("%s is busy: %s in progress", a.TargetName, a.Kind), true)
	default:
		m.notify(err.Error(), true)
	}
}

func (m model) openEndpoint(index int) tea.Cmd {
	p, ok := m.selectedProcess()
	if !ok {
		return nil
	}
	url, err := docker.Endpoint(p, index, m.d.host)
	if err != nil {
		return noticeCmd(err.Error(), true)
	}
	open := m.d.openURL
	return func() tea.Msg {
		if open == nil {
			return noticeMsg{text: "no browser available", failed: true}
		}
		if err := open(url); err != nil {
			return noticeMsg{text: fmt.Sprintf("open %s: %v", url, err), failed: true}
		}
		return noticeMsg{text: "opened " + url}
	}
}

func (m model) copyEndpoint() tea.Cmd {
	p, ok := m.selectedProcess()
	if !ok {
		return nil
	}
	url, err := docker.Endpoint(p, -1, m.d.host)
	if err != nil {
		return noticeCmd(err.Error(), true)
	}
	copyText := m.d.copyText
	return func() tea.Msg {
		if err := copyText(url); err != nil {
			return noticeMsg{text: fmt.Sprintf("copy: %v", err), failed: true}
		}
		return noticeMsg{text: "copied " + url}
	}
}

func noticeCmd(text string, failed bool) tea.Cmd {
	return func() tea.Msg { return noticeMsg{text: text, failed: failed} }
}

func (m *model) notify(text string, failed bool) {
	m.notes = append(m.notes, notification{text: text, failed: failed, expires: m.now().Add(notificationTTL)})
}

func (m *model) expireNotes() {
	now := m.now()
	kept := m.notes[:0]
	for _, n := range m.notes {
		if now.Before(n.expires) {
			kept = append(kept, n)
		}
	}
	m.notes = kept
}

func (m *model) openPopup(title, body string) {
	width := clampInt(m.width-8, 20, 100)
	height := clampInt(m.height-10, 3, 40)
	vp := viewport.New(width, height)
	vp.SetContent(body)
	m.popup = &popup{title: title, viewport: vp}
}

func (m *model) setSize(width, height int) {
	// Avoid writing to the bottom row, which can trigger terminal scroll.
	if height > 1 {
		height--
	}
	m.width = width
	m.height = height
	m.help.Width = width

	minPaneWidth := 20
	sidebarWidth := max(m.cfg.SidebarWidth, minPaneWidth)
	if width < minPaneWidth*2 {
		sidebarWidth = width / 2
	}
	outputWidth := width - sidebarWidth
	if outputWidth < minPaneWidth {
		outputWidth = minPaneWidth
		sidebarWidth = max(width-outputWidth, 10)
	}
	m.sidebarWidth = sidebarWidth

	mainHeight := max(height-2, 5)
	frameWidth, frameHeight := outputStyle.GetFrameSize()
	contentWidth := max(outputWidth-frameWidth, 10)
	contentHeight := max(mainHeight-frameHeight-3, 1)

	m.viewport.Width = max(contentWidth-2, 1)
	m.viewport.Height = contentHeight
	if m.popup != nil {
		m.popup.viewport.Width = clampInt(width-8, 20, 100)
		m.popup.viewport.Height = clampInt(height-10, 3, 40)
	}
}

func (m *model) refreshViewport() {
	p, ok := m.selectedProcess()
	if !ok {
		m.viewport.SetContent("No containers or tasks yet.")
		return
	}
	lv := m.snap.Log
	if lv.Target != p.ID {
		m.viewport.SetContent("Waiting for output...")
		return
	}

	lines := make([]string, 0, len(lv.Lines)+1)
	lines = append(lines, lv.Lines...)
	if lv.Ended {
		if lv.Err != "" {
			lines = append(lines, failedStyle.Render("-- "+lv.Err+" --"))
		} else {
			lines = append(lines, sectionStyle.Render("-- stream ended --"))
		}
	}
	if len(lines) == 0 {
		m.viewport.SetContent("No output yet.")
		return
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if m.autoScroll {
		m.viewport.GotoBottom()
	}
}

func (m *model) moveSelection(delta int) {
	if len(m.snap.Processes) == 0 {
		return
	}
	m.selectIndex(clampInt(m.selected+delta, 0, len(m.snap.Processes)-1))
}

func (m *model) selectIndex(i int) {
	if i < 0 || i >= len(m.snap.Processes) {
		return
	}
	m.selected = i
	m.selectedID = m.snap.Processes[i].ID
	m.autoScroll = true
	m.syncLog()
	m.refreshViewport()
	m.viewport.GotoBottom()
}

func (m model) selectedProcess() (state.Process, bool) {
	if m.snap == nil || m.selected < 0 || m.selected >= len(m.snap.Processes) {
		return state.Process{}, false
	}
	return m.snap.Processes[m.selected], true
}

// rowAt maps a screen row to a process index. The header and the sidebar
// border sit above the first row.
func (m model) rowAt(y int) (int, bool) {
	line := y - 2
	rows := m.sidebarRows()
	if line < 0 || line >= len(rows) || rows[line].index < 0 {
		return 0, false
	}
	return rows[line].index, true
}

func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	mainHeight := m.height - 2
	if mainHeight < 1 {
		return footer
	}

	main := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(mainHeight), m.renderOutput(mainHeight))
	view := lipgloss.JoinVertical(lipgloss.Left, header, main, footer)
	base := fitView(view, m.width, m.height)

	switch {
	case m.popup != nil:
		return overlayView(base, m.renderPopup())
	case m.confirm != nil:
		return overlayView(base, m.renderConfirm())
	case m.showHelp:
		return overlayView(base, m.renderCheatsheet())
	}
	return base
}

func (m model) renderHeader() string {
	parts := []string{titleStyle.Render(m.cfg.Title), "profile " + m.cfg.Profile}
	if m.snap.Context != "" {
		parts = append(parts, m.snap.Context)
	}
	if m.snap.LastPoll.IsZero() {
		parts = append(parts, "waiting for first refresh")
	} else {
		parts = append(parts, "refreshed "+m.snap.LastPoll.Format("15:04:05"))
	}
	line := strings.Join(parts, "  ·  ")
	if m.snap.Warning != "" {
		line += "  " + warningStyle.Render("! "+m.snap.Warning)
	}
	return fitWidth(" "+line, m.width)
}

func (m model) renderFooter() string {
	if len(m.notes) == 0 {
		return m.help.ShortHelpView(m.keys.ShortHelp())
	}
	texts := make([]string, 0, len(m.notes))
	for _, n := range m.notes {
		if n.failed {
			texts = append(texts, failedStyle.Render(n.text))
		} else {
			texts = append(texts, n.text)
		}
	}
	return fitWidth(" "+strings.Join(texts, "  ·  "), m.width)
}

func (m model) sidebarRows() []sidebarRow {
	var rows []sidebarRow
	section := ""
	for i, p := range m.snap.Processes {
		title := "Containers"
		if p.Kind == state.KindTask {
			title = "Tasks"
		}
		if title != section {
			if section != "" {
				rows = append(rows, sidebarRow{index: -1})
			}
			rows = append(rows, sidebarRow{text: sectionStyle.Render(title), index: -1})
			section = title
		}
		rows = append(rows, sidebarRow{index: i})
	}
	if len(rows) == 0 {
		rows = append(rows, sidebarRow{text: sectionStyle.Render("No containers"), index: -1})
	}
	return rows
}

func (m model) renderSidebar(height int) string {
	borderWidth, borderHeight := borderSize(sidebarStyle)
	contentWidth := max(m.sidebarWidth-borderWidth, 1)
	contentHeight := max(height-borderHeight, 1)
	_, padRightW, _, padLeftW := sidebarStyle.GetPadding()
	innerWidth := max(contentWidth-padLeftW-padRightW, 1)

	rows := m.sidebarRows()
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.index < 0 {
			lines = append(lines, row.text)
			continue
		}
		line := m.renderRow(m.snap.Processes[row.index], innerWidth)
		if row.index == m.selected {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}

	panel := sidebarStyle.Width(contentWidth).Height(contentHeight)
	if m.focus == focusList {
		panel = panel.BorderForeground(colorAccent)
	} else {
		panel = panel.BorderForeground(colorMuted)
	}
	return panel.Render(strings.Join(lines, "\n"))
}

func (m model) renderRow(p state.Process, width int) string {
	status := p.State.String()
	if a, ok := m.snap.InFlight(p.ID); ok {
		status = m.spinner.View() + " " + a.Kind.String()
	} else if p.Kind == state.KindTask && p.State == state.Exited && p.ExitCode != 0 {
		status = fmt.Sprintf("exit %d", p.ExitCode)
	}
	icon := lifecycleStyle(p.State).Render(lifecycleIcon(p.State))

	nameWidth := max(width-ansi.StringWidth(status)-3, 1)
	name := padRight(ansi.Truncate(p.Name, nameWidth, "…"), nameWidth)
	line := fmt.Sprintf("%s %s %s", icon, name, status)
	if p.PendingRemoval {
		return goneStyle.Render(fillWidth(ansi.Strip(line), width))
	}
	return fillWidth(line, width)
}

func (m model) renderOutput(height int) string {
	width := max(m.width-m.sidebarWidth, 20)
	borderWidth, borderHeight := borderSize(outputStyle)
	contentWidth := max(width-borderWidth, 1)
	contentHeight := max(height-borderHeight, 1)
	innerWidth := max(contentWidth-2, 1)

	header := "Logs"
	if p, ok := m.selectedProcess(); ok {
		header = fmt.Sprintf("Logs: %s", p.Name)
		if !m.autoScroll {
			header += sectionStyle.Render("  (scrolled, end to follow)")
		}
	}

	statusLine := m.statusBarLine()
	statusText := statusBarStyle.Width(contentWidth).Render(fitWidth(statusLine, contentWidth))
	statusSpacer := statusBarStyle.Width(contentWidth).Render(strings.Repeat(" ", contentWidth))
	headerLine := outputContentStyle.Render(fitWidth(header, innerWidth))
	viewportLine := outputContentStyle.Render(m.viewport.View())
	content := strings.Join([]string{statusText, statusSpacer, headerLine, viewportLine}, "\n")

	panel := outputStyle.Width(contentWidth).Height(contentHeight)
	if m.focus == focusLog {
		panel = panel.BorderForeground(colorAccent)
	} else {
		panel = panel.BorderForeground(colorMuted)
	}
	return panel.Render(content)
}

func (m model) statusBarLine() string {
	p, ok := m.selectedProcess()
	if !ok {
		return "idle"
	}
	parts := []string{lifecycleStyle(p.State).Render(p.State.String())}
	if p.Status != "" && p.Status != p.State.String() {
		parts = append(parts, p.Status)
	}
	if p.Image != "" {
		parts = append(parts, p.Image)
	}
	if ports := p.PublishedTCP(); len(ports) > 0 {
		labels := make([]string, 0, len(ports))
		for i, port := range ports {
			labels = append(labels, fmt.Sprintf("%d:%d", i+1, port.Public))
		}
		parts = append(parts, "ports "+strings.Join(labels, " "))
	}
	if a, ok := m.snap.InFlight(p.ID); ok {
		parts = append(parts, actionStyle(a.State).Render(m.spinner.View()+" "+a.Kind.String()+" "+a.State.String()))
	}
	if p.PendingRemoval {
		parts = append(parts, "gone from last refresh")
	}
	return " " + strings.Join(parts, "  ·  ")
}

func (m model) renderModal(title, body, hint string) string {
	content := strings.Join([]string{modalTitleStyle.Render(title), "", body, "", modalHintStyle.Render(hint)}, "\n")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modalStyle.Render(content))
}

func (m model) renderConfirm() string {
	body := lipgloss.NewStyle().Width(clampInt(m.width-12, 20, 60)).Render(m.confirm.prompt)
	return m.renderModal("Confirm", body, "y/enter: confirm  ·  n/esc: cancel")
}

func (m model) renderPopup() string {
	return m.renderModal(m.popup.title, m.popup.viewport.View(), "↑/↓: scroll  ·  esc: close")
}

func (m model) renderCheatsheet() string {
	return m.renderModal("Keys", m.help.FullHelpView(m.keys.FullHelp()), "Press ? or Esc to close")
}

func fitView(view string, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	lines := strings.Split(view, "\n")
	for i, line := range lines {
		lines[i] = fillWidth(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	padLine := strings.Repeat(" ", width)
	for len(lines) < height {
		lines = append(lines, padLine)
	}
	return strings.Join(lines, "\n")
}

func fitWidth(line string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(line, width, "")
}

func borderSize(style lipgloss.Style) (int, int) {
	frameWidth, frameHeight := style.GetFrameSize()
	padTop, padRight, padBottom, padLeft := style.GetPadding()
	return max(frameWidth-padLeft-padRight, 0), max(frameHeight-padTop-padBottom, 0)
}

func padRight(text string, width int) string {
	if pad := width - ansi.StringWidth(text); pad > 0 {
		return text + strings.Repeat(" ", pad)
	}
	return text
}

func fillWidth(line string, width int) string {
	if width <= 0 {
		return ""
	}
	return padRight(ansi.Truncate(line, width, ""), width)
}

// overlayView replaces base rows wherever the overlay row has visible text.
func overlayView(base, overlay string) string {
	baseLines := strings.Split(base, "\n")
	overlayLines := strings.Split(overlay, "\n")

	out := make([]string, len(baseLines))
	for i := range baseLines {
		if i >= len(overlayLines) || strings.TrimSpace(ansi.Strip(overlayLines[i])) == "" {
			out[i] = baseLines[i]
			continue
		}
		out[i] = overlayLines[i]
	}
	return strings.Join(out, "\n")
}

func clampInt(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// copyToClipboard uses the system clipboard and falls back to an OSC 52
// sequence, which most terminals forward to the local clipboard.
func copyToClipboard(text string) error {
	if err := clipboard.WriteAll(text); err == nil {
		return nil
	}
	seq := osc52.New(text)
	term := strings.ToLower(os.Getenv("TERM"))
	if strings.Contains(term, "screen") || strings.Contains(term, "tmux") || os.Getenv("TMUX") != "" {
		seq = seq.Screen()
	}
	if os.Getenv("DOCKDASH_OSC52_TMUX") == "1" {
		seq = seq.Tmux()
	}
	_, err := fmt.Fprint(os.Stderr, seq.String())
	return err
}
