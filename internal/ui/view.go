// Package ui renders the grid in the terminal and turns keyboard events into
// game inputs. It is a pure mirror of the reconciled player set.
package ui

import (
	"fmt"
	"strconv"

	"github.com/mattn/go-runewidth"
	"github.com/nsf/termbox-go"

	"gridwalk/internal/game"
)

// Each grid cell is two terminal columns wide so the field is roughly square.
const tileWidth = 2

type marker struct {
	pos   game.Position
	local bool
}

type View struct {
	localID int64
	players map[int64]marker
}

func Init(localID int64) (*View, error) {
	if err := termbox.Init(); err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	termbox.SetInputMode(termbox.InputEsc)
	return &View{
		localID: localID,
		players: make(map[int64]marker),
	}, nil
}

func (v *View) Close() {
	termbox.Close()
}

func (v *View) Upsert(id int64, pos game.Position, local bool) {
	v.players[id] = marker{pos: pos, local: local}
}

func (v *View) Remove(id int64) {
	delete(v.players, id)
}

// Render redraws the whole scene. Called from the session loop after every
// state change.
func (v *View) Render(connected bool) {
	_ = termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)

	drawBorder(game.GridWidth*tileWidth, game.GridHeight)

	for id, m := range v.players {
		cx := 1 + int(m.pos.X)*tileWidth
		cy := 1 + int(m.pos.Y)
		if m.local {
			termbox.SetCell(cx, cy, '@', termbox.ColorRed|termbox.AttrBold, termbox.ColorDefault)
		} else {
			termbox.SetCell(cx, cy, 'o', termbox.ColorBlue, termbox.ColorDefault)
			drawText(cx+1, cy, strconv.FormatInt(id, 10), termbox.ColorBlue)
		}
	}

	state := "offline"
	if connected {
		state = "online"
	}
	local := v.players[v.localID]
	status := fmt.Sprintf("pos (%d, %d) | %s | wasd/arrows move, q quits",
		int(local.pos.X), int(local.pos.Y), state)
	drawText(0, game.GridHeight+2, status, termbox.ColorDefault)

	_ = termbox.Flush()
}

// Poll converts keyboard events into inputs until the player quits or the
// terminal goes away. Runs on its own goroutine; termbox's PollEvent blocks.
func (v *View) Poll(inputs chan<- game.Input) {
	for {
		switch ev := termbox.PollEvent(); ev.Type {
		case termbox.EventKey:
			switch {
			case ev.Key == termbox.KeyEsc || ev.Key == termbox.KeyCtrlC || ev.Ch == 'q':
				inputs <- game.Quit{}
				return
			case ev.Ch == 'w' || ev.Key == termbox.KeyArrowUp:
				inputs <- game.Move{DY: -1}
			case ev.Ch == 's' || ev.Key == termbox.KeyArrowDown:
				inputs <- game.Move{DY: 1}
			case ev.Ch == 'a' || ev.Key == termbox.KeyArrowLeft:
				inputs <- game.Move{DX: -1}
			case ev.Ch == 'd' || ev.Key == termbox.KeyArrowRight:
				inputs <- game.Move{DX: 1}
			}
		case termbox.EventError:
			inputs <- game.Quit{}
			return
		}
	}
}

func drawBorder(w, h int) {
	for x := 0; x <= w+1; x++ {
		termbox.SetCell(x, 0, '─', termbox.ColorWhite, termbox.ColorDefault)
		termbox.SetCell(x, h+1, '─', termbox.ColorWhite, termbox.ColorDefault)
	}
	for y := 0; y <= h+1; y++ {
		termbox.SetCell(0, y, '│', termbox.ColorWhite, termbox.ColorDefault)
		termbox.SetCell(w+1, y, '│', termbox.ColorWhite, termbox.ColorDefault)
	}
	termbox.SetCell(0, 0, '┌', termbox.ColorWhite, termbox.ColorDefault)
	termbox.SetCell(w+1, 0, '┐', termbox.ColorWhite, termbox.ColorDefault)
	termbox.SetCell(0, h+1, '└', termbox.ColorWhite, termbox.ColorDefault)
	termbox.SetCell(w+1, h+1, '┘', termbox.ColorWhite, termbox.ColorDefault)
}

func drawText(x, y int, text string, fg termbox.Attribute) {
	for _, r := range text {
		termbox.SetCell(x, y, r, fg, termbox.ColorDefault)
		x += runewidth.RuneWidth(r)
	}
}
