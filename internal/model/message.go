package model

import "time"

// EchoSender is the "from" value used when a sender's own message is echoed back.
const EchoSender = "eu"

type (
	// Record is one persisted message. It is never mutated once appended.
	Record struct {
		ID        string
		From      string
		To        string
		Content   string
		Timestamp time.Time
	}

	// Inbound is the only payload shape a client may send.
	Inbound struct {
		To  string `json:"to" validate:"required"`
		Msg string `json:"msg" validate:"required"`
	}

	// Envelope travels over the fanout bus and down to clients.
	Envelope struct {
		From    string `json:"from"`
		Content string `json:"content"`
	}

	// Notice tells a sender that their message was not recorded.
	Notice struct {
		Error   string `json:"error"`
		Content string `json:"content"`
	}
)

func (r Record) Envelope() Envelope {
	return Envelope{From: r.From, Content: r.Content}
}
