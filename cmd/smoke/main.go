// Command smoke plays scripted games against a running relay. Two players
// connect, pair up in a room and alternate moves until the host completes
// five in a row. Each further game restarts the same room. The command exits
// non-zero on the first frame that does not match the protocol.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/gomoku-relay/game/protocol"
	"github.com/wricardo/gomoku-relay/game/rules"
)

// Options controls a smoke run
type Options struct {
	URL       string
	Games     int
	BoardSize int
	Timeout   time.Duration
}

// Report summarizes a completed run
type Report struct {
	RoomID  string
	Games   int
	Moves   int
	Elapsed time.Duration
	// MeanEcho is the average time from PlaceStone to both players seeing it
	MeanEcho time.Duration
}

func main() {
	cmd := &cli.Command{
		Name:  "smoke",
		Usage: "play scripted games against a gomoku relay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "relay WebSocket endpoint",
				Value:   "ws://localhost:12345/ws",
				Sources: cli.EnvVars("RELAY_WS_URL"),
			},
			&cli.IntFlag{Name: "games", Usage: "games to play", Value: 1},
			&cli.IntFlag{Name: "size", Usage: "board size tracked by the players", Value: 15},
			&cli.DurationFlag{Name: "timeout", Usage: "wait per frame", Value: 5 * time.Second},
			&cli.BoolFlag{Name: "v", Usage: "verbose output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logrus.New()
			if cmd.Bool("v") {
				log.SetLevel(logrus.DebugLevel)
			}

			report, err := Run(ctx, Options{
				URL:       cmd.String("url"),
				Games:     cmd.Int("games"),
				BoardSize: cmd.Int("size"),
				Timeout:   cmd.Duration("timeout"),
			}, log)
			if err != nil {
				return err
			}

			fmt.Printf("room:       %s\n", report.RoomID)
			fmt.Printf("games:      %d\n", report.Games)
			fmt.Printf("moves:      %d\n", report.Moves)
			fmt.Printf("mean echo:  %s\n", report.MeanEcho)
			fmt.Printf("elapsed:    %s\n", report.Elapsed.Round(time.Millisecond))
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "smoke: %v\n", err)
		os.Exit(1)
	}
}

// Run connects two players and plays opts.Games games
func Run(ctx context.Context, opts Options, log logrus.FieldLogger) (Report, error) {
	if opts.Games < 1 {
		return Report{}, fmt.Errorf("games must be at least 1")
	}
	if opts.BoardSize < rules.WinLength {
		return Report{}, fmt.Errorf("board size must be at least %d", rules.WinLength)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	start := time.Now()

	host, err := dial(ctx, opts.URL, "host", opts.Timeout)
	if err != nil {
		return Report{}, err
	}
	defer host.close()

	guest, err := dial(ctx, opts.URL, "guest", opts.Timeout)
	if err != nil {
		return Report{}, err
	}
	defer guest.close()

	log.WithFields(logrus.Fields{"host": host.id, "guest": guest.id}).Debug("players connected")

	roomID, err := pair(host, guest)
	if err != nil {
		return Report{}, err
	}
	log.WithField("room", roomID).Debug("room paired")

	report := Report{RoomID: roomID}
	var echo time.Duration
	for game := 0; game < opts.Games; game++ {
		if game > 0 {
			if err := restart(host, guest); err != nil {
				return report, err
			}
		}

		moves, latency, err := playGame(host, guest, opts.BoardSize)
		if err != nil {
			return report, fmt.Errorf("game %d: %w", game+1, err)
		}
		report.Games++
		report.Moves += moves
		echo += latency
		log.WithFields(logrus.Fields{"game": game + 1, "moves": moves}).Info("game finished")
	}

	report.Elapsed = time.Since(start)
	if report.Moves > 0 {
		report.MeanEcho = echo / time.Duration(report.Moves)
	}
	return report, nil
}

// pair creates a room as host and joins it as guest
func pair(host, guest *player) (string, error) {
	if err := host.send(protocol.CreateRoom{}); err != nil {
		return "", err
	}
	var created protocol.RoomCreated
	if err := host.expect(protocol.TypeRoomCreated, &created); err != nil {
		return "", err
	}

	if err := guest.send(protocol.JoinRoom{RoomID: created.RoomID}); err != nil {
		return "", err
	}
	for _, p := range []*player{host, guest} {
		var start protocol.GameStart
		if err := p.expect(protocol.TypeGameStart, &start); err != nil {
			return "", err
		}
		if start.RoomID != created.RoomID || start.HostID != host.id || start.GuestID != guest.id {
			return "", fmt.Errorf("%s: unexpected gameStart %+v", p.name, start)
		}
	}
	return created.RoomID, nil
}

func restart(host, guest *player) error {
	if err := host.send(protocol.RestartGame{}); err != nil {
		return err
	}
	var relayed struct {
		RestartGame protocol.RestartGame
	}
	if err := guest.expect(string(protocol.KindRestartGame), &relayed); err != nil {
		return err
	}
	if relayed.RestartGame.PlayerID != host.id {
		return fmt.Errorf("guest: restart attributed to %q, want %q", relayed.RestartGame.PlayerID, host.id)
	}
	return nil
}

// playGame has the host fill row 0 and the guest row 1 until the host wins
func playGame(host, guest *player, size int) (int, time.Duration, error) {
	board := rules.NewBoard(size)
	var latency time.Duration

	for turn := 0; ; turn++ {
		mover, stone, row := host, rules.Black, 0
		if turn%2 == 1 {
			mover, stone, row = guest, rules.White, 1
		}
		col := turn / 2

		sent := time.Now()
		if err := mover.send(protocol.PlaceStone{Row: row, Col: col}); err != nil {
			return turn, latency, err
		}
		for _, p := range []*player{host, guest} {
			var placed protocol.StonePlaced
			if err := p.expect(protocol.TypePlaceStone, &placed); err != nil {
				return turn, latency, err
			}
			if placed.PlayerID != mover.id || placed.Row != row || placed.Col != col {
				return turn, latency, fmt.Errorf("%s: unexpected placeStone %+v", p.name, placed)
			}
		}
		latency += time.Since(sent)
		board[row][col] = stone

		if rules.CheckWin(board, row, col, stone) {
			if err := mover.send(protocol.GameOver{Winner: stone}); err != nil {
				return turn + 1, latency, err
			}
			opponent := guest
			if mover == guest {
				opponent = host
			}
			var over struct {
				GameOver protocol.GameOver
			}
			if err := opponent.expect(string(protocol.KindGameOver), &over); err != nil {
				return turn + 1, latency, err
			}
			if over.GameOver.Winner != stone {
				return turn + 1, latency, fmt.Errorf("%s: game over names %s, want %s", opponent.name, over.GameOver.Winner, stone)
			}
			return turn + 1, latency, nil
		}
	}
}

type player struct {
	name    string
	id      string
	conn    *websocket.Conn
	timeout time.Duration
}

func dial(ctx context.Context, url, name string, timeout time.Duration) (*player, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: dial %s: %w", name, url, err)
	}

	p := &player{name: name, conn: conn, timeout: timeout}
	var init protocol.Init
	if err := p.expect(protocol.TypeInit, &init); err != nil {
		conn.Close()
		return nil, err
	}
	p.id = init.PlayerID
	return p, nil
}

func (p *player) close() {
	p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	p.conn.Close()
}

func (p *player) send(ev protocol.Event) error {
	p.conn.SetWriteDeadline(time.Now().Add(p.timeout))
	if err := p.conn.WriteJSON(protocol.Tagged{Event: ev}); err != nil {
		return fmt.Errorf("%s: send %s: %w", p.name, ev.Kind(), err)
	}
	return nil
}

// next reads one frame and returns its flat type or tagged variant name
func (p *player) next() (string, []byte, error) {
	p.conn.SetReadDeadline(time.Now().Add(p.timeout))
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		return "", nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", data, fmt.Errorf("undecodable frame %q: %w", data, err)
	}
	if raw, ok := probe["type"]; ok {
		var kind string
		if err := json.Unmarshal(raw, &kind); err != nil {
			return "", data, fmt.Errorf("frame type is not a string: %s", data)
		}
		return kind, data, nil
	}
	for kind := range probe {
		return kind, data, nil
	}
	return "", data, fmt.Errorf("empty frame")
}

// expect reads the next frame, which must be kind, and decodes it into v
func (p *player) expect(kind string, v any) error {
	got, data, err := p.next()
	if err != nil {
		return fmt.Errorf("%s waiting for %s: %w", p.name, kind, err)
	}
	if got == protocol.TypeError && kind != protocol.TypeError {
		var e protocol.ErrorMessage
		json.Unmarshal(data, &e)
		return fmt.Errorf("%s: server error %s: %s", p.name, e.Code, e.Message)
	}
	if got != kind {
		return fmt.Errorf("%s: expected %s, got %s: %s", p.name, kind, got, data)
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(data, v)
}
