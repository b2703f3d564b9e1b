package app

import (
	"chat_relay/internal/model"
	"chat_relay/internal/utils/log"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

type (
	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		baseURL    *url.URL
		httpClient *http.Client

		user string
		peer string

		conn   *websocket.Conn
		connMu sync.Mutex
	}

	// incoming is any payload the relay may write to a client.
	incoming struct {
		From    string `json:"from"`
		Content string `json:"content"`
		Error   string `json:"error"`
	}
)

func NewApp(relayURL string) (*App, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}

	return &App{
		app:        tview.NewApplication(),
		baseURL:    u,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Run loads the conversation history, connects to the relay and blocks
// rendering the UI until the user quits.
func (c *App) Run(user, peer string) error {
	c.user = user
	c.peer = peer

	history, err := c.getHistory(user, peer)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	c.conn, err = c.dial(user)
	if err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}

	c.buildUI()
	for _, env := range history {
		fmt.Fprintln(c.chatbox, formatHistory(env, c.user))
	}
	c.chatbox.ScrollToEnd()

	go c.listen()
	return c.app.SetRoot(c.layout(), true).SetFocus(c.input).Run()
}

func (c *App) Stop() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.app.Stop()
}

func (c *App) buildUI() {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" Chat with %s ", c.peer))

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}

		text := c.input.GetText()
		if text == "" {
			return
		}
		c.input.SetText("")

		go func(msg string) {
			if err := c.SendMessage(msg); err != nil {
				c.app.Suspend(func() {
					log.Error("send message failed", zap.Error(err))
				})
			}
		}(text)
	})
}

func (c *App) layout() tview.Primitive {
	return tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)
}

func (c *App) listen() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug("relay connection closed", zap.Error(err))
			c.app.QueueUpdateDraw(func() {
				fmt.Fprintln(c.chatbox, "[red]disconnected from relay[-]")
			})
			return
		}

		line, err := formatIncoming(data)
		if err != nil {
			log.Debug("unreadable relay payload", zap.Error(err))
			continue
		}

		c.app.QueueUpdateDraw(func() {
			fmt.Fprintln(c.chatbox, line)
			c.chatbox.ScrollToEnd()
		})
	}
}

// SendMessage writes one message for the current peer. The chat box is
// updated when the relay echoes it back.
func (c *App) SendMessage(msg string) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn.WriteJSON(model.Inbound{To: c.peer, Msg: msg})
}

func formatHistory(env model.Envelope, user string) string {
	if env.From == user {
		return fmt.Sprintf("[yellow]You:[-] %s", tview.Escape(env.Content))
	}
	return fmt.Sprintf("[green]%s:[-] %s", tview.Escape(env.From), tview.Escape(env.Content))
}

func formatIncoming(data []byte) (string, error) {
	var in incoming
	if err := json.Unmarshal(data, &in); err != nil {
		return "", err
	}

	switch {
	case in.Error != "":
		return fmt.Sprintf("[red]not sent (%s):[-] %s", tview.Escape(in.Error), tview.Escape(in.Content)), nil
	case in.From == model.EchoSender:
		return fmt.Sprintf("[yellow]You:[-] %s", tview.Escape(in.Content)), nil
	default:
		return fmt.Sprintf("[green]%s:[-] %s", tview.Escape(in.From), tview.Escape(in.Content)), nil
	}
}
