// Command tradewatch is the interactive terminal dashboard: screener,
// watchlist, news, and a paper-trading account, driven by the reactive
// session/directory/watchlist stores.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tradewatch/internal/api"
	"tradewatch/internal/config"
	"tradewatch/internal/credstore"
	"tradewatch/internal/directory"
	"tradewatch/internal/model"
	"tradewatch/internal/portfolio"
	"tradewatch/internal/session"
	"tradewatch/internal/util"
	"tradewatch/internal/watchlist"
)

// Styles.
var (
	symbolStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	symbolHlStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	symbolWlStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	gainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	colHeadStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	priceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	errStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	highlightBG   = lipgloss.Color("236")
)

// hlStyle returns a copy of s with the highlight background applied when
// hl is true.
func hlStyle(s lipgloss.Style, hl bool) lipgloss.Style {
	if hl {
		return s.Background(highlightBG)
	}
	return s
}

// Views.
const (
	viewScreener = iota
	viewWatchlist
	viewNews
	viewCount
)

var viewNames = [viewCount]string{"screener", "watchlist", "news"}

// Messages.
type sessionMsg session.Snapshot
type directoryMsg directory.Snapshot
type watchlistMsg watchlist.Snapshot

type newsLoadedMsg struct {
	articles []model.Article
	err      error
}

type summaryLoadedMsg struct {
	summary *model.IndexSummary
	err     error
}

type toggleDoneMsg struct {
	symbol string
	err    error
}

type tradeDoneMsg struct {
	order *model.Order
	err   error
}

type initDoneMsg struct{ err error }

type appModel struct {
	cfg    *config.Config
	client *api.Client
	sess   *session.Store
	dir    *directory.Cache
	wl     *watchlist.Synchronizer
	sim    *portfolio.Simulator
	cancel context.CancelFunc

	// Latest store snapshots.
	sessSnap session.Snapshot
	dirSnap  directory.Snapshot
	wlSnap   watchlist.Snapshot
	articles []model.Article
	summary  *model.IndexSummary

	// Subscription channels, re-armed after every receipt.
	sessCh <-chan session.Snapshot
	dirCh  <-chan directory.Snapshot
	wlCh   <-chan watchlist.Snapshot

	view          int
	selected      int
	status        string
	viewport      viewport.Model
	ready         bool
	width, height int
}

func (m appModel) Init() tea.Cmd {
	ctx := context.Background()
	return tea.Batch(
		waitSession(m.sessCh),
		waitDirectory(m.dirCh),
		waitWatchlist(m.wlCh),
		func() tea.Msg {
			if err := m.sess.Initialize(ctx); err != nil {
				return initDoneMsg{err: err}
			}
			if err := m.dir.Load(ctx); err != nil {
				return initDoneMsg{err: err}
			}
			return initDoneMsg{}
		},
		loadNews(m.client),
		loadSummary(m.client),
	)
}

func waitSession(ch <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return sessionMsg(snap)
	}
}

func waitDirectory(ch <-chan directory.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return directoryMsg(snap)
	}
}

func waitWatchlist(ch <-chan watchlist.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return watchlistMsg(snap)
	}
}

func loadNews(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		articles, err := client.GetNews(ctx, 1, 30)
		return newsLoadedMsg{articles: articles, err: err}
	}
}

func loadSummary(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		summary, err := client.GetNasdaqSummary(ctx)
		return summaryLoadedMsg{summary: summary, err: err}
	}
}

// rows returns the instrument list backing the current view.
func (m *appModel) rows() []model.Instrument {
	switch m.view {
	case viewWatchlist:
		return m.wlSnap.Entries
	default:
		return m.dirSnap.Instruments
	}
}

func (m *appModel) clampSelection() {
	rows := m.rows()
	if m.selected >= len(rows) {
		m.selected = len(rows) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "tab":
			m.view = (m.view + 1) % viewCount
			m.selected = 0
			m.refreshContent()
			return m, nil

		case "up", "down":
			if msg.String() == "up" {
				m.selected--
			} else {
				m.selected++
			}
			m.clampSelection()
			m.refreshContent()
			m.ensureVisible()
			return m, nil

		case " ":
			rows := m.rows()
			if m.view == viewNews || len(rows) == 0 {
				return m, nil
			}
			inst := rows[m.selected]
			wl := m.wl
			if m.wl.Contains(inst.Symbol) {
				return m, func() tea.Msg {
					ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
					defer cancel()
					return toggleDoneMsg{symbol: inst.Symbol, err: wl.Remove(ctx, inst.Symbol)}
				}
			}
			return m, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return toggleDoneMsg{symbol: inst.Symbol, err: wl.Add(ctx, inst)}
			}

		case "b", "s":
			rows := m.rows()
			if m.view == viewNews || len(rows) == 0 {
				return m, nil
			}
			inst := rows[m.selected]
			sim := m.sim
			side := msg.String()
			return m, func() tea.Msg {
				var order *model.Order
				var err error
				if side == "b" {
					order, err = sim.Buy(inst.Symbol, 1, inst.Price)
				} else {
					order, err = sim.Sell(inst.Symbol, 1, inst.Price)
				}
				return tradeDoneMsg{order: order, err: err}
			}

		case "r":
			m.dir.Invalidate()
			dir, wl := m.dir, m.wl
			return m, tea.Batch(
				func() tea.Msg {
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					if err := dir.Load(ctx); err != nil {
						return initDoneMsg{err: err}
					}
					return initDoneMsg{err: wl.Refresh(ctx)}
				},
				loadSummary(m.client),
			)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 2
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refreshContent()
		return m, nil

	case sessionMsg:
		m.sessSnap = session.Snapshot(msg)
		m.refreshContent()
		return m, waitSession(m.sessCh)

	case directoryMsg:
		m.dirSnap = directory.Snapshot(msg)
		m.clampSelection()
		m.refreshContent()
		return m, waitDirectory(m.dirCh)

	case watchlistMsg:
		m.wlSnap = watchlist.Snapshot(msg)
		m.clampSelection()
		m.refreshContent()
		return m, waitWatchlist(m.wlCh)

	case summaryLoadedMsg:
		// Header decoration only; a miss just leaves it blank.
		if msg.err == nil {
			m.summary = msg.summary
		}
		return m, nil

	case newsLoadedMsg:
		if msg.err != nil {
			m.status = "news: " + msg.err.Error()
		} else {
			m.articles = msg.articles
		}
		m.refreshContent()
		return m, nil

	case toggleDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s: %v", msg.symbol, msg.err)
		} else {
			m.status = ""
		}
		m.refreshContent()
		return m, nil

	case tradeDoneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = fmt.Sprintf("filled %s %s x%.0f @ %.2f",
				msg.order.Side, msg.order.Symbol, msg.order.Qty, msg.order.Price)
		}
		m.refreshContent()
		return m, nil

	case initDoneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		m.refreshContent()
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// ensureVisible scrolls the viewport so the selected row stays on
// screen. Row 0 of the table is the column header.
func (m *appModel) ensureVisible() {
	if !m.ready || m.view == viewNews {
		return
	}
	line := m.selected + 1
	yOff := m.viewport.YOffset
	vpH := m.viewport.Height
	if line < yOff {
		m.viewport.SetYOffset(line)
	} else if line >= yOff+vpH {
		m.viewport.SetYOffset(line - vpH + 1)
	}
}

func (m *appModel) refreshContent() {
	if m.ready {
		m.viewport.SetContent(m.renderContent())
	}
}

func (m *appModel) renderContent() string {
	if m.view == viewNews {
		return m.renderNews()
	}
	return m.renderTable()
}

func (m *appModel) renderTable() string {
	rows := m.rows()
	var b strings.Builder

	b.WriteString(colHeadStyle.Render(fmt.Sprintf("  %-8s %-24s %10s %9s %8s  %s",
		"SYMBOL", "NAME", "PRICE", "CHANGE", "CHG%", "SECTOR")))
	b.WriteString("\n")

	if len(rows) == 0 {
		switch {
		case m.view == viewWatchlist && !m.sessSnap.Authenticated:
			b.WriteString(dimStyle.Render("  log in with watchctl to see your watchlist"))
		case m.dirSnap.Err != nil && !m.dirSnap.Loaded:
			b.WriteString(errStyle.Render("  directory unavailable — press r to retry"))
		default:
			b.WriteString(dimStyle.Render("  (empty)"))
		}
		b.WriteString("\n")
		return b.String()
	}

	for i, inst := range rows {
		hl := i == m.selected
		marker := " "
		symStyle := symbolStyle
		if m.wlSnap.Entries != nil && m.wl.Contains(inst.Symbol) {
			marker = "*"
			symStyle = symbolWlStyle
		}
		if hl {
			symStyle = symbolHlStyle
		}

		chStyle := gainStyle
		if inst.Change < 0 {
			chStyle = lossStyle
		}

		name := inst.Name
		if len(name) > 24 {
			name = name[:24]
		}

		b.WriteString(fmt.Sprintf("%s %s %s %s %s %s  %s\n",
			hlStyle(dimStyle, hl).Render(marker),
			hlStyle(symStyle, hl).Render(fmt.Sprintf("%-8s", inst.Symbol)),
			hlStyle(dimStyle, hl).Render(fmt.Sprintf("%-24s", name)),
			hlStyle(priceStyle, hl).Render(fmt.Sprintf("%10.2f", inst.Price)),
			hlStyle(chStyle, hl).Render(fmt.Sprintf("%+9.2f", inst.Change)),
			hlStyle(chStyle, hl).Render(fmt.Sprintf("%+7.2f%%", inst.ChangePercent)),
			hlStyle(dimStyle, hl).Render(inst.Sector),
		))
	}
	return b.String()
}

func (m *appModel) renderNews() string {
	var b strings.Builder
	if len(m.articles) == 0 {
		b.WriteString(dimStyle.Render("  no news loaded"))
		b.WriteString("\n")
		return b.String()
	}
	for _, a := range m.articles {
		b.WriteString(symbolStyle.Render(a.Title))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s — %s", a.Source, a.PublishedAt.Format("Jan 2 15:04"))))
		b.WriteString("\n")
		if a.Summary != "" {
			b.WriteString("  " + a.Summary + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m appModel) View() string {
	if !m.ready {
		return "loading..."
	}

	who := "anonymous"
	if m.sessSnap.Authenticated && m.sessSnap.Identity != nil {
		who = m.sessSnap.Identity.Name
		if who == "" {
			who = m.sessSnap.Identity.Email
		}
	}
	acct := m.sim.Account(func(sym string) (float64, bool) {
		inst, ok := m.dir.Get(sym)
		return inst.Price, ok
	})
	index := ""
	if m.summary != nil {
		index = fmt.Sprintf(" · NASDAQ %.2f %+.2f%%", m.summary.Last, m.summary.ChangePercent)
	}
	header := headerStyle.Render(fmt.Sprintf(" tradewatch · %s · %s · cash %.2f equity %.2f%s ",
		viewNames[m.view], who, acct.Cash, acct.Equity, index))

	footer := dimStyle.Render(" tab:view  up/down:select  space:watch  b:buy  s:sell  r:refresh  q:quit ")
	if m.status != "" {
		footer = errStyle.Render(" " + m.status + " ")
	}

	return header + "\n" + m.viewport.View() + "\n" + footer
}

func main() {
	configPath := flag.String("config", "tradewatch.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	// Keep log output off the TUI's alternate screen.
	logPath := filepath.Join(filepath.Dir(cfg.Storage.DBPath), "tradewatch.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := util.NewLoggerTo(logFile, cfg.Logging.Level, cfg.Logging.Format)

	client := api.NewClient(cfg.API.BaseURL,
		api.WithLogger(logger),
		api.WithTimeout(time.Duration(cfg.API.TimeoutSeconds)*time.Second),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	creds, err := credstore.Open(cfg.Storage.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening credential store: %v\n", err)
		os.Exit(1)
	}
	defer creds.Close()

	sess := session.NewStore(creds, client, logger)
	dir := directory.NewCache(client, logger)
	wl := watchlist.NewSynchronizer(client, sess, dir, logger)
	sim := portfolio.NewSimulator(cfg.Portfolio.StartingCash)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wl.Run(ctx)

	sessCh, cancelSess := sess.Subscribe()
	defer cancelSess()
	dirCh, cancelDir := dir.Subscribe()
	defer cancelDir()
	wlCh, cancelWl := wl.Subscribe()
	defer cancelWl()

	m := appModel{
		cfg:    cfg,
		client: client,
		sess:   sess,
		dir:    dir,
		wl:     wl,
		sim:    sim,
		cancel: cancel,
		sessCh: sessCh,
		dirCh:  dirCh,
		wlCh:   wlCh,
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		logger.Error("tui exited", "err", err)
		os.Exit(1)
	}
}
