package model

// Message is a chat message relayed over the broadcast channel.
//
// The hub decodes incoming frames into this struct and re-encodes it for
// delivery, so unknown fields are dropped but known fields pass through
// unchanged. Timestamp is whatever string the sender produced.
type Message struct {
	MessageText string `json:"messageText"`
	Timestamp   string `json:"timestamp"`
	SenderID    string `json:"senderId"`
	Sender      string `json:"sender"`
	Receiver    string `json:"receiver"`
}
