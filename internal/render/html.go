package render

import (
	htmlpkg "html"
	"strconv"
	"strings"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
)

// PlayerList generates HTML for the player list
func PlayerList(v *View) string {
	var b strings.Builder
	b.WriteString(`<h2>Players (`)
	b.WriteString(strconv.Itoa(len(v.Players)))
	b.WriteString(`/`)
	b.WriteString(strconv.Itoa(v.MaxPlayers))
	b.WriteString(`)</h2><ul class="player-list">`)
	for _, p := range v.Players {
		b.WriteString(`<li class="player-item`)
		if !p.IsAlive {
			b.WriteString(` eliminated`)
		}
		b.WriteString(`"><span class="player-name">`)
		b.WriteString(htmlpkg.EscapeString(p.Name))
		b.WriteString(`</span>`)
		if p.IsHost {
			b.WriteString(`<span class="badge-pill">host</span>`)
		}
		if p.IsYou {
			b.WriteString(`<span class="badge-pill">you</span>`)
		}
		if p.Role != "" {
			b.WriteString(`<span class="badge-pill badge-`)
			b.WriteString(string(p.Role))
			b.WriteString(`">`)
			b.WriteString(string(p.Role))
			b.WriteString(`</span>`)
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul>`)
	return b.String()
}

// HostControls generates HTML for host controls
func HostControls(v *View, minPlayers int) string {
	if v.Me == nil || !v.Me.IsHost {
		if v.Status == models.RoomWaiting {
			return `<p>Waiting for host to start the game...</p>`
		}
		return ""
	}

	var b strings.Builder
	b.WriteString(`<div class="button-stack">`)
	switch v.Status {
	case models.RoomWaiting:
		if v.CanStart {
			button(&b, v.Code, "start", "Start Game", "btn-primary")
		} else {
			b.WriteString(`<p>Waiting for players to join...</p><p class="text-muted">Need at least `)
			b.WriteString(strconv.Itoa(minPlayers))
			b.WriteString(` players to start</p>`)
		}
	case models.RoomPlaying:
		button(&b, v.Code, "exit", "Back to Lobby", "btn-secondary")
	case models.RoomFinished:
		button(&b, v.Code, "restart", "Play Again", "btn-primary")
		button(&b, v.Code, "exit", "Back to Lobby", "btn-secondary")
	}
	b.WriteString(`</div>`)
	return b.String()
}

func button(b *strings.Builder, code, action, label, class string) {
	b.WriteString(`<form hx-post="/rooms/`)
	b.WriteString(code)
	b.WriteString(`/`)
	b.WriteString(action)
	b.WriteString(`"><button type="submit" class="btn `)
	b.WriteString(class)
	b.WriteString(`">`)
	b.WriteString(label)
	b.WriteString(`</button></form>`)
}

// ClueList generates HTML for the clues given so far this round
func ClueList(v *View) string {
	if v.Round == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<h3>Round `)
	b.WriteString(strconv.Itoa(v.Round.Number))
	b.WriteString(`</h3><ul class="clue-list">`)
	for _, c := range v.Round.Clues {
		b.WriteString(`<li><span class="player-name">`)
		b.WriteString(htmlpkg.EscapeString(c.PlayerName))
		b.WriteString(`</span> `)
		b.WriteString(htmlpkg.EscapeString(c.Text))
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul>`)
	return b.String()
}

// VoteCount generates HTML for vote count display
func VoteCount(count, total int) string {
	var b strings.Builder
	b.WriteString(`<p class="ready-count">`)
	b.WriteString(strconv.Itoa(count))
	b.WriteString(`/`)
	b.WriteString(strconv.Itoa(total))
	b.WriteString(` players have voted</p>`)
	return b.String()
}

// VotedConfirmation generates HTML for "you voted" confirmation
func VotedConfirmation() string {
	return `<div class="card">
		<p class="vote-status">✓ You voted</p>
		<p class="text-muted">Waiting for other players to vote...</p>
	</div>`
}

// Result generates HTML announcing the end of the game
func Result(v *View) string {
	if v.Status != models.RoomFinished {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<div class="card result"><h2>`)
	switch v.Winner {
	case models.WinnerCrew:
		b.WriteString(`The crew wins!`)
	case models.WinnerImpostors:
		b.WriteString(`The impostors win!`)
	default:
		b.WriteString(`Nobody wins this time`)
	}
	b.WriteString(`</h2>`)
	if v.SecretWord != "" {
		b.WriteString(`<p>The word was <strong>`)
		b.WriteString(htmlpkg.EscapeString(v.SecretWord))
		b.WriteString(`</strong></p>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}
