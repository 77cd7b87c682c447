// Command reelforge-meter is a terminal meter bridge: it polls a running
// reelforge-server/reelforge-host control plane over HTTP and renders
// transport position and playing state, master volume and voice-pool
// occupancy as a live bubbletea TUI.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type CLI struct {
	Addr string `help:"Control-plane base URL" default:"http://127.0.0.1:7878"`
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	barFilled  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barEmpty   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle = lipgloss.NewStyle().Width(14)
)

const tickInterval = 150 * time.Millisecond
const barWidth = 40

type statusResp struct {
	PositionSeconds float64 `json:"position_seconds"`
	Playing         bool    `json:"playing"`
}

type voiceStatsResp struct {
	Active int `json:"active"`
	Max    int `json:"max"`
}

type masterVolumeResp struct {
	Linear float64 `json:"linear"`
}

type model struct {
	addr      string
	client    *http.Client
	status    statusResp
	voices    voiceStatsResp
	master    masterVolumeResp
	lastError string
}

type tickMsg time.Time

type fetchedMsg struct {
	status statusResp
	voices voiceStatsResp
	master masterVolumeResp
	err    error
}

func newModel(addr string) model {
	return model{addr: addr, client: &http.Client{Timeout: 2 * time.Second}}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), m.fetch())
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) fetch() tea.Cmd {
	return func() tea.Msg {
		var status statusResp
		var voices voiceStatsResp
		var master masterVolumeResp

		if err := getJSON(m.client, m.addr+"/transport/status", &status); err != nil {
			return fetchedMsg{err: err}
		}
		if err := getJSON(m.client, m.addr+"/voices/stats", &voices); err != nil {
			return fetchedMsg{err: err}
		}
		if err := getJSON(m.client, m.addr+"/mixer/master-volume", &master); err != nil {
			return fetchedMsg{err: err}
		}
		return fetchedMsg{status: status, voices: voices, master: master}
	}
}

func getJSON(client *http.Client, url string, dest interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(tick(), m.fetch())
	case fetchedMsg:
		if msg.err != nil {
			m.lastError = msg.err.Error()
			return m, nil
		}
		m.lastError = ""
		m.status = msg.status
		m.voices = msg.voices
		m.master = msg.master
	}
	return m, nil
}

func (m model) View() string {
	s := titleStyle.Render("reelforge meter") + "\n\n"
	s += fmt.Sprintf("%s %s\n", labelStyle.Render("position"), formatSeconds(m.status.PositionSeconds))
	s += fmt.Sprintf("%s %v\n", labelStyle.Render("playing"), m.status.Playing)
	s += fmt.Sprintf("%s %s\n", labelStyle.Render("master"), bar(m.master.Linear, 1.5))
	s += fmt.Sprintf("%s %d / %d\n", labelStyle.Render("voices"), m.voices.Active, m.voices.Max)
	if m.lastError != "" {
		s += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("error: "+m.lastError) + "\n"
	}
	s += "\n(q to quit)"
	return s
}

func bar(value, max float64) string {
	if max <= 0 {
		max = 1
	}
	frac := value / max
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * barWidth)
	return barFilled.Render(repeat("█", filled)) + barEmpty.Render(repeat("░", barWidth-filled))
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func formatSeconds(sec float64) string {
	d := time.Duration(sec * float64(time.Second))
	return d.Truncate(time.Millisecond * 10).String()
}

func main() {
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("reelforge-meter"),
		kong.Description("Terminal meter bridge for a running reelforge control plane"),
		kong.UsageOnError(),
	)

	p := tea.NewProgram(newModel(cli.Addr), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "meter error:", err)
		os.Exit(1)
	}
}
